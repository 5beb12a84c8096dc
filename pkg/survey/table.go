package survey

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// columns holds the positions of the survey columns inside a sheet row.
type columns struct {
	period, reference, median int
}

// findHeader returns the index of the first row naming all three survey columns.
func findHeader(rows [][]string) (int, columns, bool) {
	for i, row := range rows {
		cols := columns{-1, -1, -1}
		for j, cell := range row {
			switch normalizeHeader(cell) {
			case "periodo":
				cols.period = j
			case "referencia":
				cols.reference = j
			case "mediana":
				cols.median = j
			}
		}
		if cols.period >= 0 && cols.reference >= 0 && cols.median >= 0 {
			return i, cols, true
		}
	}
	return -1, columns{}, false
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("í", "i", "é", "e", "á", "a", "ó", "o", "ú", "u").Replace(s)
}

// tableRows turns the rows following the header into survey rows. Rows with a
// blank period are dropped; at most max rows after the header are looked at.
func (r *Reader) tableRows(rows [][]string, header int, cols columns) []models.SurveyRow {
	end := len(rows)
	if r.opts.MaxRows > 0 && header+1+r.opts.MaxRows < end {
		end = header + 1 + r.opts.MaxRows
	}

	var out []models.SurveyRow
	for i := header + 1; i < end; i++ {
		row := rows[i]
		period := NormalizePeriod(cell(row, cols.period))
		if period == "" {
			r.logger.Debug("blank period, skipping", "line", i)
			continue
		}
		out = append(out, models.SurveyRow{
			Period:    period,
			Reference: cell(row, cols.reference),
			Median:    strings.TrimSpace(cell(row, cols.median)),
		})
	}
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// NormalizePeriod maps the shapes a period cell takes once it leaves a
// spreadsheet back to "YYYY-MM-DD" or "YYYY": timestamps lose their time part,
// float years lose their decimals and Excel date serials become dates.
// Anything else is returned trimmed.
func NormalizePeriod(raw string) string {
	s := strings.TrimSpace(raw)
	if d := datePrefix.FindString(s); d != "" && (len(s) == len(d) || s[len(d)] == ' ' || s[len(d)] == 'T') {
		return d
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	switch {
	case f >= 1900 && f <= 2999 && f == math.Trunc(f):
		return strconv.Itoa(int(f))
	case f >= 10000:
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return s
		}
		return t.Format("2006-01-02")
	}
	return s
}
