package dataset

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewTable_HeaderAndPadding(t *testing.T) {
	tbl, err := newTable([][]string{
		{"name", "city", "name", ""},
		{"alice", "tokyo"},
		{"bob", "paris", "b", "x", "  "},
	})
	if err != nil {
		t.Fatal(err)
	}
	wantCols := []string{"name", "city", "name.1", "Unnamed: 3"}
	if !reflect.DeepEqual(tbl.Columns, wantCols) {
		t.Errorf("Columns=%v, want %v", tbl.Columns, wantCols)
	}
	if !reflect.DeepEqual(tbl.Rows[0], []string{"alice", "tokyo", "", ""}) {
		t.Errorf("short row not padded: %v", tbl.Rows[0])
	}
	if len(tbl.Rows[1]) != 4 {
		t.Errorf("blank overflow should be trimmed: %v", tbl.Rows[1])
	}
}

func TestNewTable_Errors(t *testing.T) {
	if _, err := newTable(nil); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("nil rows: err=%v", err)
	}
	if _, err := newTable([][]string{{"a"}, {"1", "2"}}); err == nil {
		t.Error("expected error for row wider than header")
	}
}

func TestUniqueColumns(t *testing.T) {
	got := uniqueColumns([]string{"a", "a", "a.1", "a"})
	want := []string{"a", "a.1", "a.1.1", "a.2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("uniqueColumns=%v, want %v", got, want)
	}
}

func TestTable_Records(t *testing.T) {
	tbl := &Table{
		Columns: []string{"name", "city", "age"},
		Rows: [][]string{
			{"alice", "tokyo", "31"},
			{"bob", "paris", "45"},
		},
	}

	tests := []struct {
		name    string
		columns []string
		sep     string
		want    []string
	}{
		{"all columns when nil", nil, "", []string{"alice | tokyo | 31", "bob | paris | 45"}},
		{"selection order", []string{"age", "name"}, "", []string{"31 | alice", "45 | bob"}},
		{"custom separator", []string{"city"}, ", ", []string{"tokyo", "paris"}},
		{"repeated column", []string{"name", "name"}, "-", []string{"alice-alice", "bob-bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := tbl.Records(tt.columns, tt.sep)
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != len(tt.want) {
				t.Fatalf("got %d records", len(recs))
			}
			for i, r := range recs {
				if r.ID != i {
					t.Errorf("record %d has ID %d", i, r.ID)
				}
				if r.Text != tt.want[i] {
					t.Errorf("record %d text=%q, want %q", i, r.Text, tt.want[i])
				}
			}
		})
	}
}

func TestTable_RecordsErrors(t *testing.T) {
	tbl := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}}}
	if _, err := tbl.Records([]string{}, ""); !errors.Is(err, ErrNoColumns) {
		t.Errorf("empty selection: err=%v", err)
	}
	if _, err := tbl.Records([]string{"b"}, ""); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("unknown column: err=%v", err)
	}
}

func TestTable_RecordsEmptyTable(t *testing.T) {
	tbl := &Table{Columns: []string{"a"}}
	recs, err := tbl.Records(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records", len(recs))
	}
}
