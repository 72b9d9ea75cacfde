package ingest

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// maxXLSColumns is the BIFF8 column limit.
const maxXLSColumns = 256

// xlsxCells flattens every worksheet of an xlsx workbook, sheet by sheet,
// row-major.
func xlsxCells(data []byte) ([]string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: xlsx: %v", ErrParse, err)
	}
	defer book.Close() // nolint:errcheck // in-memory workbook

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: xlsx: workbook has no sheets", ErrParse)
	}

	var cells []string
	for _, name := range sheets {
		rows, err := book.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: xlsx: sheet %q: %v", ErrParse, name, err)
		}
		for _, row := range rows {
			cells = append(cells, row...)
		}
	}
	return cells, nil
}

// xlsCells flattens every worksheet of a legacy xls workbook, sheet by
// sheet, row-major. The decoder panics on some malformed inputs; that is
// reported as ErrParse.
func xlsCells(data []byte) (cells []string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			cells = nil
			err = fmt.Errorf("%w: xls: %v", ErrParse, recovered)
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: xls: %v", ErrParse, err)
	}
	if book == nil {
		return nil, fmt.Errorf("%w: xls: no workbook stream", ErrParse)
	}
	if book.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: xls: workbook has no sheets", ErrParse)
	}

	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			return nil, fmt.Errorf("%w: xls: sheet %d unreadable", ErrParse, i)
		}
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := xlsRow(sheet, r)
			if row == nil {
				continue
			}
			first, last := row.FirstCol(), row.LastCol()
			// Rows without a ROW record carry no column bounds.
			if last <= first {
				first, last = 0, maxXLSColumns
			}
			for col := first; col < last; col++ {
				if value := row.Col(col); value != "" {
					cells = append(cells, value)
				}
			}
		}
	}
	return cells, nil
}

// xlsRow returns row i, or nil for a row the sheet does not contain. The
// decoder dereferences missing rows.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
