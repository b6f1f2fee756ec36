package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Alias1177/SignalScanner/internal/model"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB represents a database connection holding the signal log
type DB struct {
	*sql.DB
	driver string
}

// ConnectionParams holds connection parameters. Host..SSLMode apply to
// PostgreSQL, Path to SQLite.
type ConnectionParams struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string
}

// New creates a new database connection
func New(params ConnectionParams) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch params.Driver {
	case DriverPostgres:
		// Create PostgreSQL connection string
		connStr := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
		)
		db, err = sql.Open(DriverPostgres, connStr)
	case DriverSQLite, "":
		params.Driver = DriverSQLite
		if dir := filepath.Dir(params.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating sqlite directory: %w", err)
			}
		}
		db, err = sql.Open(DriverSQLite, params.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", params.Driver)
	}
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if params.Driver == DriverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, driver: params.Driver}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_log (
			id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			open_time BIGINT NOT NULL,
			types TEXT NOT NULL,
			messages TEXT NOT NULL,
			metrics TEXT NOT NULL,
			origin_id TEXT,
			created_at BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating signal_log: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS signal_log_open_time_idx ON signal_log (open_time)`)
	if err != nil {
		return fmt.Errorf("creating signal_log index: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $n for PostgreSQL
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Append writes one record to the signal log
func (db *DB) Append(ctx context.Context, rec model.SignalRecord) error {
	types := make([]string, len(rec.Types))
	for i, t := range rec.Types {
		types[i] = string(t)
	}

	metrics := make(map[string]float64, len(rec.Metrics))
	for k, v := range rec.Metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			metrics[k] = v
		}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	messages := rec.Messages
	if messages == nil {
		messages = []string{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}

	var originID sql.NullString
	if rec.OriginID != nil {
		originID = sql.NullString{String: rec.OriginID.String(), Valid: true}
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = db.ExecContext(ctx, db.rebind(`
		INSERT INTO signal_log (
			id, pair, timeframe, open_time, types, messages, metrics, origin_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		rec.ID.String(), rec.Pair, rec.Interval, rec.OpenTime.UnixMilli(),
		strings.Join(types, ","), string(messagesJSON), string(metricsJSON),
		originID, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting signal %s: %w", rec.ID, err)
	}
	return nil
}

// Emit appends rec; it lets the store act as a signal emitter
func (db *DB) Emit(ctx context.Context, rec model.SignalRecord) error {
	return db.Append(ctx, rec)
}

// ReadSince returns records whose bar opened at or after since, oldest first
func (db *DB) ReadSince(ctx context.Context, since time.Time) ([]model.SignalRecord, error) {
	rows, err := db.QueryContext(ctx, db.rebind(`
		SELECT id, pair, timeframe, open_time, types, messages, metrics, origin_id, created_at
		FROM signal_log
		WHERE open_time >= ?
		ORDER BY open_time ASC, created_at ASC
	`), since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying signal log: %w", err)
	}
	defer rows.Close()

	var records []model.SignalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading signal log: %w", err)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (model.SignalRecord, error) {
	var (
		rec                   model.SignalRecord
		id, types             string
		messages, metrics     string
		originID              sql.NullString
		openTime, createdTime int64
	)
	if err := rows.Scan(&id, &rec.Pair, &rec.Interval, &openTime, &types, &messages, &metrics, &originID, &createdTime); err != nil {
		return rec, fmt.Errorf("scanning signal: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return rec, fmt.Errorf("parsing signal id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.OpenTime = time.UnixMilli(openTime).UTC()
	rec.CreatedAt = time.UnixMilli(createdTime).UTC()

	if types != "" {
		for _, t := range strings.Split(types, ",") {
			rec.Types = append(rec.Types, model.SignalType(t))
		}
	}
	if err := json.Unmarshal([]byte(messages), &rec.Messages); err != nil {
		return rec, fmt.Errorf("decoding messages of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(metrics), &rec.Metrics); err != nil {
		return rec, fmt.Errorf("decoding metrics of %s: %w", id, err)
	}
	if originID.Valid {
		origin, err := uuid.Parse(originID.String)
		if err != nil {
			return rec, fmt.Errorf("parsing origin id %q: %w", originID.String, err)
		}
		rec.OriginID = &origin
	}

	return rec, nil
}

// Cleanup keeps the newest maxRows records and deletes the rest.
// It returns the number of deleted rows.
func (db *DB) Cleanup(ctx context.Context, maxRows int) (int64, error) {
	if maxRows <= 0 {
		return 0, nil
	}

	res, err := db.ExecContext(ctx, db.rebind(`
		DELETE FROM signal_log
		WHERE id NOT IN (
			SELECT id FROM signal_log
			ORDER BY open_time DESC, created_at DESC
			LIMIT ?
		)
	`), maxRows)
	if err != nil {
		return 0, fmt.Errorf("cleaning signal log: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
