package survey

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

var bom = []byte("\xef\xbb\xbf")

// ParseCSV reads a survey table exported as CSV. Semicolon and comma separated
// files are both accepted; with semicolons a decimal comma in the median is
// turned into a dot.
func (r *Reader) ParseCSV(data []byte) ([]models.SurveyRow, error) {
	data = bytes.TrimPrefix(data, bom)

	comma := ','
	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		comma = ';'
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.FieldsPerRecord = -1 // allow variable columns
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}

	header, cols, ok := findHeader(records)
	if !ok {
		return nil, ErrHeaderNotFound
	}

	rows := r.tableRows(records, header, cols)
	if comma == ';' {
		for i := range rows {
			if !strings.Contains(rows[i].Median, ".") {
				rows[i].Median = strings.ReplaceAll(rows[i].Median, ",", ".")
			}
		}
	}
	return rows, nil
}
