package models

import "fmt"

// Source tells where a monthly rate in a projection came from.
type Source string

const (
	SourceKnown  Source = "known"
	SourceFill   Source = "fill"
	SourceAnchor Source = "anchor"
)

var monthAbbrev = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// Estimate is a monthly inflation rate (percent) for a given year and month.
type Estimate struct {
	Year        int
	Month       int
	MonthlyRate float64
	Label       string
	Source      Source
}

// NewEstimate builds an estimate with its display label filled in.
func NewEstimate(year, month int, rate float64, source Source) Estimate {
	return Estimate{
		Year:        year,
		Month:       month,
		MonthlyRate: rate,
		Label:       Label(year, month),
		Source:      source,
	}
}

// Label returns the short "mon-yy" tag used in the published series, e.g. "mar-25".
func Label(year, month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return fmt.Sprintf("%s-%02d", monthAbbrev[month-1], year%100)
}

// Before reports whether e sorts before o in (year, month) order.
func (e Estimate) Before(o Estimate) bool {
	if e.Year != o.Year {
		return e.Year < o.Year
	}
	return e.Month < o.Month
}

// Series is a projection ordered by (year, month).
type Series []Estimate

// Years returns the distinct years covered by the series, in order.
func (s Series) Years() []int {
	var years []int
	for i, e := range s {
		if i == 0 || e.Year != s[i-1].Year {
			years = append(years, e.Year)
		}
	}
	return years
}

// AnnualRate compounds the monthly rates of year and returns the result as a percent.
// The second value is the number of months found for that year.
func (s Series) AnnualRate(year int) (float64, int) {
	acc := 1.0
	n := 0
	for _, e := range s {
		if e.Year != year {
			continue
		}
		acc *= 1 + e.MonthlyRate/100
		n++
	}
	return (acc - 1) * 100, n
}
