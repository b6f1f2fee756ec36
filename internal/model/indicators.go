package model

// Indicator series names
const (
	MA21  = "MA21"
	MA34  = "MA34"
	MA233 = "MA233"
	VOL8  = "VOL8"
	VOL21 = "VOL21"
	DIF   = "DIF"
	DEA   = "DEA"
	MACD  = "MACD"
	UP    = "UP"
	MB    = "MB"
	DN    = "DN"
)

// IndicatorSet maps an indicator name to a series aligned with the bars.
// Entries without enough history hold NaN.
type IndicatorSet map[string][]float64

// At returns the value of name at index i, NaN when missing or out of range
func (s IndicatorSet) At(name string, i int) float64 {
	series, ok := s[name]
	if !ok || i < 0 || i >= len(series) {
		return nan
	}
	return series[i]
}
