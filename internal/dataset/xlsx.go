package dataset

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads the first sheet of an Excel workbook. Its first row is the header.
func LoadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return newTable(dropBlankRows(rows))
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		if !blank(r) {
			out = append(out, r)
		}
	}
	return out
}
