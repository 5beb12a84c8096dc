// Package projection extrapolates a month-by-month inflation series from a
// sparse survey of monthly point estimates and annual year-over-year anchors.
package projection

import (
	"errors"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

var (
	// ErrNoMissingMonths is returned when a fill is requested for a year that has no months left.
	ErrNoMissingMonths = errors.New("projection: no missing months to fill")
	// ErrNonPositiveBase is returned when a growth factor is zero or negative, i.e. a rate of -100% or less.
	ErrNonPositiveBase = errors.New("projection: growth factor must be positive")
)

var (
	monthlyPeriod = regexp.MustCompile(`^(\d{4})-(\d{2})-\d{2}$`)
	annualPeriod  = regexp.MustCompile(`^\d{4}$`)
)

type Builder struct {
	logger *log.Logger
}

// New returns a Builder that reports skipped rows and rejected anchors to logger.
// A nil logger discards everything.
func New(logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Builder{logger: logger}
}

// Build runs the projection with a discarding logger.
func Build(rows []models.SurveyRow) models.Series {
	return New(nil).Build(rows)
}

// Build turns raw survey rows into an ordered monthly projection. It never fails:
// rows it cannot use are skipped and an input without monthly estimates yields
// an empty series.
func (b *Builder) Build(rows []models.SurveyRow) models.Series {
	known, anchors := b.collect(rows)
	if len(known) == 0 {
		b.logger.Debug("no monthly estimates in survey", "rows", len(rows), "anchors", len(anchors))
		return models.Series{}
	}

	sort.SliceStable(known, func(i, j int) bool { return known[i].Before(known[j]) })

	current := known[0].Year
	if known[0].Month == 12 {
		current++
	}

	byYear := make(map[int][]models.Estimate)
	for _, e := range known {
		byYear[e.Year] = append(byYear[e.Year], e)
	}

	out := make(models.Series, 0, len(known)+12*len(anchors))
	out = append(out, known...)

	if anchor, ok := anchors[current]; ok && len(byYear[current]) > 0 {
		out = append(out, b.fillYear(current, byYear[current], anchor)...)
	}

	years := make([]int, 0, len(anchors))
	for y := range anchors {
		if y > current {
			years = append(years, y)
		}
	}
	sort.Ints(years)

	for _, y := range years {
		if months := byYear[y]; len(months) > 0 {
			// Known months win; the anchor only solves the rest of the year.
			out = append(out, b.fillYear(y, months, anchors[y])...)
			continue
		}
		out = append(out, b.synthesizeYear(y, anchors[y])...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// collect classifies and deduplicates the rows. Monthly estimates come back in
// input order; anchors are keyed by year.
func (b *Builder) collect(rows []models.SurveyRow) ([]models.Estimate, map[int]float64) {
	seen := make(map[string]struct{})
	months := make(map[[2]int]struct{})
	anchors := make(map[int]float64)
	var known []models.Estimate

	for i, row := range rows {
		c := Classify(row)
		if c.Kind == KindIgnored {
			b.logger.Debug("skipping survey row", "row", i, "period", row.Period, "reference", row.Reference, "median", row.Median)
			continue
		}

		if _, dup := seen[c.Key]; dup {
			b.logger.Debug("duplicate survey row", "row", i, "key", c.Key)
			continue
		}
		seen[c.Key] = struct{}{}

		switch c.Kind {
		case KindMonthly:
			ym := [2]int{c.Year, c.Month}
			if _, dup := months[ym]; dup {
				b.logger.Debug("month already estimated", "row", i, "year", c.Year, "month", c.Month)
				continue
			}
			months[ym] = struct{}{}
			known = append(known, models.NewEstimate(c.Year, c.Month, c.Value, models.SourceKnown))
		case KindAnnual:
			anchors[c.Year] = c.Value
		}
	}
	return known, anchors
}

// fillYear solves one flat rate for the months after the last known one so the
// year compounds to anchor.
func (b *Builder) fillYear(year int, known []models.Estimate, anchor float64) []models.Estimate {
	last := known[len(known)-1].Month
	if last == 12 {
		return nil
	}

	product := 1.0
	for _, e := range known {
		product *= 1 + e.MonthlyRate/100
	}

	r, err := FillRate(product, anchor, 12-last)
	if err != nil {
		b.logger.Warn("rejecting annual anchor", "year", year, "anchor", anchor, "known_product", product, "err", err)
		return nil
	}

	rate := round2(r * 100)
	out := make([]models.Estimate, 0, 12-last)
	for m := last + 1; m <= 12; m++ {
		out = append(out, models.NewEstimate(year, m, rate, models.SourceFill))
	}
	return out
}

func (b *Builder) synthesizeYear(year int, anchor float64) []models.Estimate {
	m, err := MonthlyEquivalent(anchor)
	if err != nil {
		b.logger.Warn("rejecting annual anchor", "year", year, "anchor", anchor, "err", err)
		return nil
	}

	rate := round2(m)
	out := make([]models.Estimate, 0, 12)
	for month := 1; month <= 12; month++ {
		out = append(out, models.NewEstimate(year, month, rate, models.SourceAnchor))
	}
	return out
}

// FillRate returns the constant monthly rate r (as a fraction) such that
// knownProduct * (1+r)^missing equals 1 + anchor/100.
func FillRate(knownProduct, anchor float64, missing int) (float64, error) {
	if missing <= 0 {
		return 0, ErrNoMissingMonths
	}
	target := 1 + anchor/100
	if target <= 0 || knownProduct <= 0 {
		return 0, ErrNonPositiveBase
	}
	return math.Pow(target/knownProduct, 1/float64(missing)) - 1, nil
}

// MonthlyEquivalent returns, in percent, the monthly rate that compounds twelve
// times into anchor.
func MonthlyEquivalent(anchor float64) (float64, error) {
	base := 1 + anchor/100
	if base <= 0 {
		return 0, ErrNonPositiveBase
	}
	return (math.Pow(base, 1.0/12) - 1) * 100, nil
}

// round2 rounds half to even on the exact binary value, which is what the
// published series has always used.
func round2(x float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return v
}

// Kind is how a survey row is used by the projection.
type Kind string

const (
	KindIgnored Kind = "ignored"
	KindMonthly Kind = "monthly"
	KindAnnual  Kind = "annual"
)

// Classified is a survey row after classification. Month is zero for annual rows.
type Classified struct {
	Kind  Kind
	Key   string
	Year  int
	Month int
	Value float64
}

// Classify decides whether row is a monthly estimate, an annual anchor or
// neither, and extracts its values.
func Classify(row models.SurveyRow) Classified {
	value, err := strconv.ParseFloat(strings.TrimSpace(row.Median), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return Classified{Kind: KindIgnored}
	}

	period := strings.TrimSpace(row.Period)
	ref := strings.ToLower(row.Reference)
	key := period + "_" + ref

	if m := monthlyPeriod.FindStringSubmatch(period); m != nil && strings.Contains(ref, "mensual") {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return Classified{Kind: KindIgnored}
		}
		return Classified{Kind: KindMonthly, Key: key, Year: year, Month: month, Value: value}
	}
	if annualPeriod.MatchString(period) && strings.Contains(ref, "i.a.") {
		year, _ := strconv.Atoi(period)
		return Classified{Kind: KindAnnual, Key: key, Year: year, Value: value}
	}
	return Classified{Kind: KindIgnored}
}
