package survey

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

// ParseXLS reads the survey table from a legacy BIFF workbook, which is how
// older REM releases were published.
func (r *Reader) ParseXLS(data []byte) ([]models.SurveyRow, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "cp1252")
	if err != nil {
		return nil, fmt.Errorf("error creating workbook: %w", err)
	}

	sheets := make(map[string]*xls.WorkSheet)
	var names []string
	for i := 0; i < workbook.NumSheets(); i++ {
		sheet := workbook.GetSheet(i)
		if sheet == nil {
			continue
		}
		sheets[sheet.Name] = sheet
		names = append(names, sheet.Name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no data found in workbook")
	}

	for _, name := range sheetOrder(r.opts.Sheet, names) {
		rows := sheetRows(sheets[name])
		header, cols, ok := findHeader(rows)
		if !ok {
			continue
		}
		r.logger.Debug("found survey table", "sheet", name, "header_row", header)
		return r.tableRows(rows, header, cols), nil
	}
	return nil, ErrHeaderNotFound
}

// maxXLSCols is the BIFF8 column limit.
const maxXLSCols = 256

func sheetRows(sheet *xls.WorkSheet) [][]string {
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		// Rows built from cells alone carry no ROW record and report no width.
		width := row.LastCol()
		if width <= 0 {
			width = maxXLSCols
		}
		cells := make([]string, width)
		last := -1
		for c := range cells {
			cells[c] = row.Col(c)
			if cells[c] != "" {
				last = c
			}
		}
		rows = append(rows, cells[:last+1])
	}
	return rows
}

// sheetRow returns nil for rows the sheet never defines; WorkSheet.Row
// dereferences the missing entry.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
