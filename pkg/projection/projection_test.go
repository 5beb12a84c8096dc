package projection

import (
	"errors"
	"math"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

func row(period, reference, median string) models.SurveyRow {
	return models.SurveyRow{Period: period, Reference: reference, Median: median}
}

func assertOrdered(t *testing.T, s models.Series) {
	t.Helper()
	for i := 1; i < len(s); i++ {
		if !s[i-1].Before(s[i]) {
			t.Fatalf("series not strictly increasing at %d: %+v then %+v", i, s[i-1], s[i])
		}
	}
}

func compound(s models.Series, year int) float64 {
	acc := 1.0
	for _, e := range s {
		if e.Year == year {
			acc *= 1 + e.MonthlyRate/100
		}
	}
	return acc
}

func TestBuildFillsCurrentYear(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2025-01-01", "mensual", "2.0"),
		row("2025-02-01", "mensual", "2.0"),
		row("2025", "i.a.", "30.0"),
	})

	if len(series) != 12 {
		t.Fatalf("expected 12 months, got %d", len(series))
	}
	assertOrdered(t, series)

	for i, e := range series {
		if e.Year != 2025 || e.Month != i+1 {
			t.Errorf("position %d: expected 2025-%02d, got %d-%02d", i, i+1, e.Year, e.Month)
		}
	}
	if series[0].MonthlyRate != 2.0 || series[1].MonthlyRate != 2.0 {
		t.Errorf("known months changed: %v %v", series[0].MonthlyRate, series[1].MonthlyRate)
	}
	for _, e := range series[2:] {
		if e.MonthlyRate != 2.25 {
			t.Errorf("%s: expected fill 2.25, got %v", e.Label, e.MonthlyRate)
		}
		if e.Source != models.SourceFill {
			t.Errorf("%s: expected source fill, got %s", e.Label, e.Source)
		}
	}
	if series[2].Label != "mar-25" || series[11].Label != "dic-25" {
		t.Errorf("unexpected labels %q %q", series[2].Label, series[11].Label)
	}

	if got := compound(series, 2025); math.Abs(got-1.30)/1.30 > 1e-2 {
		t.Errorf("anchor not reproduced: got %v", got)
	}
}

func TestBuildFutureYears(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2025-10-01", "Precios minoristas var. % mensual", "2.1"),
		row("2025", "var. % i.a.", "30"),
		row("2027", "var. % i.a.", "-2"),
		row("2026", "var. % i.a.", "25"),
	})
	assertOrdered(t, series)

	// oct-25 known, nov and dic filled, then two synthesized years.
	if len(series) != 3+24 {
		t.Fatalf("expected %d months, got %d", 3+24, len(series))
	}

	tests := []struct {
		year int
		rate float64
	}{
		{2026, 1.88},
		{2027, -0.17},
	}
	for _, tt := range tests {
		var n int
		for _, e := range series {
			if e.Year != tt.year {
				continue
			}
			n++
			if e.MonthlyRate != tt.rate {
				t.Errorf("%s: expected %v, got %v", e.Label, tt.rate, e.MonthlyRate)
			}
			if e.Source != models.SourceAnchor {
				t.Errorf("%s: expected source anchor, got %s", e.Label, e.Source)
			}
		}
		if n != 12 {
			t.Errorf("year %d: expected 12 months, got %d", tt.year, n)
		}
		anchor := map[int]float64{2026: 1.25, 2027: 0.98}[tt.year]
		if got := math.Pow(1+tt.rate/100, 12); math.Abs(got-anchor)/anchor > 1e-2 {
			t.Errorf("year %d: compounded %v, want %v", tt.year, got, anchor)
		}
	}
}

func TestBuildDecemberStartsNextYear(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2024-12-01", "mensual", "2.5"),
		row("2025-01-01", "mensual", "2.0"),
		row("2025-02-01", "mensual", "3.0"),
		row("2024", "i.a.", "118"),
		row("2025", "i.a.", "20"),
	})
	assertOrdered(t, series)

	if len(series) != 13 {
		t.Fatalf("expected Dec 2024 plus 12 months of 2025, got %d", len(series))
	}
	if series[0].Year != 2024 || series[0].Month != 12 {
		t.Errorf("first entry should be dic-24, got %s", series[0].Label)
	}
	for _, e := range series[3:] {
		if e.MonthlyRate != 1.34 {
			t.Errorf("%s: expected fill 1.34, got %v", e.Label, e.MonthlyRate)
		}
	}
	if got := compound(series, 2025); math.Abs(got-1.20)/1.20 > 1e-2 {
		t.Errorf("anchor 2025 not reproduced: %v", got)
	}
}

func TestBuildCurrentYearAnchorWithoutKnownMonths(t *testing.T) {
	// December closes 2024, so 2025 is the current year but nothing is known for it.
	series := Build([]models.SurveyRow{
		row("2024-12-01", "mensual", "2.5"),
		row("2025", "i.a.", "20"),
		row("2026", "i.a.", "25"),
	})
	assertOrdered(t, series)

	if len(series) != 13 {
		t.Fatalf("expected dic-24 plus 2026, got %d entries", len(series))
	}
	for _, e := range series {
		if e.Year == 2025 {
			t.Fatalf("2025 should not be synthesized, got %s", e.Label)
		}
	}
}

func TestBuildLastKnownDecember(t *testing.T) {
	var rows []models.SurveyRow
	for m := 1; m <= 12; m++ {
		rows = append(rows, row(models.Label(2025, m), "ignored label", "1"))
	}
	rows = append(rows,
		row("2025-01-01", "mensual", "1.5"),
		row("2025-12-01", "mensual", "1.8"),
		row("2025", "i.a.", "30"),
	)

	series := Build(rows)
	if len(series) != 2 {
		t.Fatalf("expected only the two known months, got %d", len(series))
	}
	for _, e := range series {
		if e.Source != models.SourceKnown {
			t.Errorf("%s: unexpected source %s", e.Label, e.Source)
		}
	}
}

func TestBuildNoMonthlyRows(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2025", "i.a.", "30"),
		row("2026", "i.a.", "20"),
		row("Período", "Referencia", "Mediana"),
	})
	if series == nil || len(series) != 0 {
		t.Fatalf("expected empty non-nil series, got %#v", series)
	}
}

func TestBuildDeduplicates(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2025-01-01", "Mensual", "2.0"),
		row("2025-01-01", "mensual", "9.0"),
		row("2025", "i.a.", "30"),
		row("2025", "I.A.", "50"),
	})
	if series[0].MonthlyRate != 2.0 {
		t.Errorf("second duplicate should be ignored, got %v", series[0].MonthlyRate)
	}
	if got := compound(series, 2025); math.Abs(got-1.30)/1.30 > 1e-2 {
		t.Errorf("first anchor should win, compounded %v", got)
	}
}

func TestBuildSameMonthDifferentKeys(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2025-03-01", "mensual", "2.0"),
		row("2025-03-31", "mensual", "4.0"),
		row("2025-03-01", "núcleo mensual", "3.0"),
	})
	if len(series) != 1 || series[0].MonthlyRate != 2.0 {
		t.Fatalf("expected the first March estimate only, got %+v", series)
	}
}

func TestBuildIgnoresIrrelevantRows(t *testing.T) {
	base := []models.SurveyRow{
		row("2025-01-01", "mensual", "2.0"),
		row("2025-02-01", "mensual", "2.0"),
		row("2025", "i.a.", "30.0"),
	}
	noisy := []models.SurveyRow{
		row("Período", "Referencia", "Mediana"),
		row("2025-03-01", "mensual", ""),
		row("2025-03-01", "mensual", "n/d"),
		row("2025-03-01", "mensual", "NaN"),
		row("2025-03-01 00:00:00", "mensual", "7"),
		row("2025-04", "mensual", "7"),
		row("2026", "mensual", "7"),
		row("2025-05-01", "i.a.", "7"),
		row("2026", "var. % anual", "7"),
		row("25", "i.a.", "7"),
		row("2025-13-01", "mensual", "7"),
	}
	rows := append(append([]models.SurveyRow{}, noisy[:5]...), base...)
	rows = append(rows, noisy[5:]...)

	want := Build(base)
	got := Build(rows)
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestBuildOutOfOrderInput(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2026", "i.a.", "25"),
		row("2025-05-01", "mensual", "2.4"),
		row("2025-03-01", "mensual", "2.6"),
		row("2025", "i.a.", "28"),
		row("2025-04-01", "mensual", "2.5"),
	})
	assertOrdered(t, series)
	if series[0].Month != 3 || series[0].MonthlyRate != 2.6 {
		t.Errorf("expected mar-25 first, got %+v", series[0])
	}
	if len(series) != 10+12 {
		t.Errorf("expected 22 entries, got %d", len(series))
	}
}

func TestBuildKnownMonthsInFutureAnchorYear(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2025-10-01", "mensual", "2.0"),
		row("2025-11-01", "mensual", "2.0"),
		row("2025-12-01", "mensual", "2.0"),
		row("2026-01-01", "mensual", "2.0"),
		row("2026-02-01", "mensual", "3.0"),
		row("2025", "i.a.", "30"),
		row("2026", "i.a.", "20"),
	})
	assertOrdered(t, series)

	var months2026 int
	for _, e := range series {
		if e.Year == 2026 {
			months2026++
		}
	}
	if months2026 != 12 {
		t.Fatalf("expected 12 months in 2026, got %d", months2026)
	}
	if got := compound(series, 2026); math.Abs(got-1.20)/1.20 > 1e-2 {
		t.Errorf("anchor 2026 not reproduced: %v", got)
	}
}

func TestBuildRejectsNonPositiveAnchor(t *testing.T) {
	series := New(log.Default()).Build([]models.SurveyRow{
		row("2025-01-01", "mensual", "2.0"),
		row("2025", "i.a.", "-100"),
		row("2026", "i.a.", "-150"),
		row("2027", "i.a.", "10"),
	})
	assertOrdered(t, series)

	for _, e := range series {
		if math.IsNaN(e.MonthlyRate) {
			t.Fatalf("%s: NaN rate leaked into output", e.Label)
		}
		if e.Year == 2026 || (e.Year == 2025 && e.Month > 1) {
			t.Errorf("%s: rejected anchor produced a month", e.Label)
		}
	}
	if len(series) != 1+12 {
		t.Errorf("expected known month plus 2027, got %d", len(series))
	}
}

func TestBuildDeflation(t *testing.T) {
	series := Build([]models.SurveyRow{
		row("2025-01-01", "mensual", "-0.5"),
		row("2025", "i.a.", "0"),
	})
	if len(series) != 12 {
		t.Fatalf("expected 12 months, got %d", len(series))
	}
	if got := compound(series, 2025); math.Abs(got-1) > 1e-2 {
		t.Errorf("zero anchor not reproduced: %v", got)
	}
	if series[1].MonthlyRate <= 0 {
		t.Errorf("fill should compensate deflation, got %v", series[1].MonthlyRate)
	}
}

func TestFillRate(t *testing.T) {
	if _, err := FillRate(1.0404, 30, 0); !errors.Is(err, ErrNoMissingMonths) {
		t.Errorf("expected ErrNoMissingMonths, got %v", err)
	}
	if _, err := FillRate(1.0404, -100, 3); !errors.Is(err, ErrNonPositiveBase) {
		t.Errorf("expected ErrNonPositiveBase for anchor, got %v", err)
	}
	if _, err := FillRate(0, 30, 3); !errors.Is(err, ErrNonPositiveBase) {
		t.Errorf("expected ErrNonPositiveBase for product, got %v", err)
	}

	r, err := FillRate(1.0404, 30, 10)
	if err != nil {
		t.Fatalf("FillRate failed: %v", err)
	}
	if got := 1.0404 * math.Pow(1+r, 10); math.Abs(got-1.30) > 1e-12 {
		t.Errorf("unrounded fill should reproduce anchor exactly, got %v", got)
	}
}

func TestMonthlyEquivalent(t *testing.T) {
	if _, err := MonthlyEquivalent(-100); !errors.Is(err, ErrNonPositiveBase) {
		t.Errorf("expected ErrNonPositiveBase, got %v", err)
	}
	m, err := MonthlyEquivalent(30)
	if err != nil {
		t.Fatalf("MonthlyEquivalent failed: %v", err)
	}
	if round2(m) != 2.21 {
		t.Errorf("expected 2.21, got %v", round2(m))
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{2.252586145092228, 2.25},
		{1.8769265121506118, 1.88},
		{-0.1682142552739574, -0.17},
		{2.675, 2.67}, // 2.675 is stored just below the midpoint
		{0.125, 0.12}, // exact tie rounds to even
		{0, 0},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   models.SurveyRow
		want Classified
	}{
		{"monthly", row("2025-03-01", "Var. % MENSUAL", " 2.1 "), Classified{Kind: KindMonthly, Key: "2025-03-01_var. % mensual", Year: 2025, Month: 3, Value: 2.1}},
		{"annual", row("2026", "var. % i.a.; dic-26", "15.5"), Classified{Kind: KindAnnual, Key: "2026_var. % i.a.; dic-26", Year: 2026, Value: 15.5}},
		{"annual period with monthly reference", row("2026", "var. % mensual", "1.2"), Classified{Kind: KindIgnored}},
		{"monthly period with annual reference", row("2025-03-01", "i.a.", "30"), Classified{Kind: KindIgnored}},
		{"invalid month", row("2025-13-01", "mensual", "2"), Classified{Kind: KindIgnored}},
		{"unparseable median", row("2025-03-01", "mensual", "s/d"), Classified{Kind: KindIgnored}},
		{"nan median", row("2025-03-01", "mensual", "NaN"), Classified{Kind: KindIgnored}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("Classify(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
