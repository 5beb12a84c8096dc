package survey

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

// ParseXLSX reads the survey table from an Office Open XML workbook. Cells are
// read raw so medians keep full precision and dates arrive as serials.
func (r *Reader) ParseXLSX(data []byte) ([]models.SurveyRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error opening workbook: %w", err)
	}
	defer f.Close()

	for _, name := range sheetOrder(r.opts.Sheet, f.GetSheetList()) {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			r.logger.Debug("error reading sheet", "sheet", name, "error", err)
			continue
		}
		header, cols, ok := findHeader(rows)
		if !ok {
			continue
		}
		r.logger.Debug("found survey table", "sheet", name, "header_row", header)
		return r.tableRows(rows, header, cols), nil
	}
	return nil, ErrHeaderNotFound
}

// sheetOrder puts the preferred sheet first, keeping the workbook order for the rest.
func sheetOrder(preferred string, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == preferred {
			out = append(out, n)
		}
	}
	for _, n := range names {
		if n != preferred {
			out = append(out, n)
		}
	}
	return out
}
