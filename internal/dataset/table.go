// Package dataset loads tabular files and renders their rows as text records.
package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// DefaultSeparator joins the selected column values of a row.
const DefaultSeparator = " | "

var (
	// ErrNoColumns is returned when an explicit, empty column selection is made.
	ErrNoColumns = errors.New("choose at least 1 column")
	// ErrUnknownColumn is returned when a selected column is not in the table.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrEmptyTable is returned for input without a header row.
	ErrEmptyTable = errors.New("table has no header row")
	// ErrUnsupportedFormat is returned for file extensions that are not tabular.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Table is a header row plus data rows. Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// newTable builds a Table from raw rows where the first row is the header. Header names are
// made unique and short rows are padded.
func newTable(raw [][]string) (*Table, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyTable
	}
	columns := uniqueColumns(raw[0])
	if len(columns) == 0 {
		return nil, ErrEmptyTable
	}
	rows := make([][]string, 0, len(raw)-1)
	for i, r := range raw[1:] {
		if len(r) > len(columns) {
			if !blank(r[len(columns):]) {
				return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(r), len(columns))
			}
			r = r[:len(columns)]
		}
		row := make([]string, len(columns))
		copy(row, r)
		rows = append(rows, row)
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// uniqueColumns names blank headers "Unnamed: i" and suffixes repeats with ".1", ".2", ...
func uniqueColumns(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	repeats := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for used[name] {
			repeats[base]++
			name = fmt.Sprintf("%s.%d", base, repeats[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ResolveColumns returns the positions of columns. A nil selection means every column;
// an empty, non-nil selection is ErrNoColumns.
func (t *Table) ResolveColumns(columns []string) ([]string, []int, error) {
	if columns == nil {
		idx := make([]int, len(t.Columns))
		for i := range idx {
			idx[i] = i
		}
		return append([]string(nil), t.Columns...), idx, nil
	}
	if len(columns) == 0 {
		return nil, nil, ErrNoColumns
	}
	pos := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		pos[c] = i
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		p, ok := pos[c]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownColumn, c, strings.Join(t.Columns, ", "))
		}
		idx[i] = p
	}
	return append([]string(nil), columns...), idx, nil
}

// Records renders each row as the selected column values joined by sep, in selection order.
// Record IDs follow row order. An empty sep uses DefaultSeparator.
func (t *Table) Records(columns []string, sep string) ([]models.Record, error) {
	_, idx, err := t.ResolveColumns(columns)
	if err != nil {
		return nil, err
	}
	if sep == "" {
		sep = DefaultSeparator
	}
	records := make([]models.Record, len(t.Rows))
	values := make([]string, len(idx))
	for i, row := range t.Rows {
		for j, p := range idx {
			values[j] = row[p]
		}
		records[i] = models.Record{ID: i, Text: strings.Join(values, sep)}
	}
	return records, nil
}
