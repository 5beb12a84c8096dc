// Package preview renders projections and survey rows for the terminal.
package preview

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/k0kubun/pp/v3"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
	"github.com/MaxiNavarro97/proyectAR/pkg/projection"
)

type styles struct {
	known  lipgloss.Style
	fill   lipgloss.Style
	anchor lipgloss.Style
	year   lipgloss.Style
	muted  lipgloss.Style
}

// newStyles binds the styles to w so colours are dropped when w is not a terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		known:  r.NewStyle(),
		fill:   r.NewStyle().Foreground(lipgloss.Color("11")),            // yellow
		anchor: r.NewStyle().Foreground(lipgloss.Color("12")),            // blue
		year:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")), // green
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),             // gray
	}
}

func (st styles) forSource(src models.Source) lipgloss.Style {
	switch src {
	case models.SourceFill:
		return st.fill
	case models.SourceAnchor:
		return st.anchor
	}
	return st.known
}

// Series prints one line per month grouped by year, each year closed by the
// rate its months compound to.
func Series(w io.Writer, series models.Series) error {
	st := newStyles(w)
	var b strings.Builder

	if len(series) == 0 {
		b.WriteString(st.muted.Render("no monthly estimates") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, year := range series.Years() {
		for _, e := range series {
			if e.Year != year {
				continue
			}
			line := fmt.Sprintf("  %-7s %7.2f%%  %s", e.Label, e.MonthlyRate, sourceName(e.Source))
			b.WriteString(st.forSource(e.Source).Render(line) + "\n")
		}
		annual, months := series.AnnualRate(year)
		summary := fmt.Sprintf("%d  %.2f%% compounded over %d month(s)", year, annual, months)
		b.WriteString(st.year.Render(summary) + "\n\n")
	}

	counts := map[models.Source]int{}
	for _, e := range series {
		counts[e.Source]++
	}
	b.WriteString(st.muted.Render(fmt.Sprintf("%d known, %d filled, %d from annual anchors",
		counts[models.SourceKnown], counts[models.SourceFill], counts[models.SourceAnchor])) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func sourceName(src models.Source) string {
	if src == "" {
		return "published"
	}
	return string(src)
}

// Rows dumps every survey row next to its classification.
func Rows(w io.Writer, rows []models.SurveyRow, color bool) error {
	printer := pp.New()
	printer.SetOutput(w)
	printer.SetColoringEnabled(color)

	type classifiedRow struct {
		Row            models.SurveyRow
		Classification projection.Classified
	}
	out := make([]classifiedRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, classifiedRow{Row: r, Classification: projection.Classify(r)})
	}
	_, err := printer.Println(out)
	return err
}
