package continuation

import (
	"sort"

	"github.com/Alias1177/SignalScanner/internal/model"
)

// Excluded returns the indices of cross records already superseded by a
// strictly newer record of the same pair: a cross in either direction, or the
// continuation that the cross type produces. The set is built once per scan.
func Excluded(records []model.SignalRecord) map[int]bool {
	byPair := make(map[string][]int)
	for i, rec := range records {
		byPair[rec.Pair] = append(byPair[rec.Pair], i)
	}

	excluded := make(map[int]bool)
	for _, idx := range byPair {
		sort.SliceStable(idx, func(a, b int) bool {
			return records[idx[a]].OpenTime.Before(records[idx[b]].OpenTime)
		})

		var newerCross, newerWeak, newerStrong bool
		// walk newest to oldest one timestamp at a time so equal open times
		// never supersede each other
		for end := len(idx); end > 0; {
			begin := end - 1
			for begin > 0 && records[idx[begin-1]].OpenTime.Equal(records[idx[end-1]].OpenTime) {
				begin--
			}
			group := idx[begin:end]

			for _, i := range group {
				rec := records[i]
				if rec.Has(model.SignalLongShort) && (newerCross || newerWeak) {
					excluded[i] = true
				}
				if rec.Has(model.SignalLongLong) && (newerCross || newerStrong) {
					excluded[i] = true
				}
			}
			for _, i := range group {
				rec := records[i]
				newerCross = newerCross || rec.Has(model.SignalLongShort) || rec.Has(model.SignalLongLong)
				newerWeak = newerWeak || rec.Has(model.SignalFollowThroughWeak)
				newerStrong = newerStrong || rec.Has(model.SignalFollowThroughStrong)
			}

			end = begin
		}
	}

	return excluded
}

// Candidates returns the indices of cross records still open for a
// continuation, in snapshot order
func Candidates(records []model.SignalRecord) []int {
	excluded := Excluded(records)

	var out []int
	for i, rec := range records {
		if excluded[i] {
			continue
		}
		if rec.Has(model.SignalLongShort) || rec.Has(model.SignalLongLong) {
			out = append(out, i)
		}
	}
	return out
}
