package dataset

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoadCSV_Latin1(t *testing.T) {
	// "café" encoded as ISO-8859-1.
	content := []byte("name,drink\nal\xe9,caf\xe9\n")
	tbl, err := LoadCSV(bytes.NewReader(content), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Rows[0][0] != "alé" || tbl.Rows[0][1] != "café" {
		t.Errorf("latin1 decoding: %v", tbl.Rows[0])
	}
}

func TestLoadCSV_UTF8WithBOM(t *testing.T) {
	content := []byte("\xef\xbb\xbfname,city\nzoë,\"new york, ny\"\n")
	tbl, err := LoadCSV(bytes.NewReader(content), Options{Encoding: "utf-8"})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Columns[0] != "name" {
		t.Errorf("BOM not stripped: %q", tbl.Columns[0])
	}
	if !reflect.DeepEqual(tbl.Rows[0], []string{"zoë", "new york, ny"}) {
		t.Errorf("row=%v", tbl.Rows[0])
	}
}

func TestLoadCSV_Errors(t *testing.T) {
	if _, err := LoadCSV(strings.NewReader(""), Options{}); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("empty input: err=%v", err)
	}
	if _, err := LoadCSV(strings.NewReader("a\n1\n"), Options{Encoding: "cp1252"}); err == nil {
		t.Error("expected error for unsupported encoding")
	}
}

func TestLoadBytes_TSV(t *testing.T) {
	tbl, err := LoadBytes([]byte("a\tb\n1\t2\n"), ".tsv", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tbl.Columns, []string{"a", "b"}) || tbl.Rows[0][1] != "2" {
		t.Errorf("tsv: %+v", tbl)
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "product")
	f.SetCellValue("Sheet1", "B1", "price")
	f.SetCellValue("Sheet1", "A2", "apple")
	f.SetCellValue("Sheet1", "B2", 3)
	f.SetCellValue("Sheet1", "A4", "banana")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	tbl, err := LoadBytes(buf.Bytes(), ".xlsx", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tbl.Columns, []string{"product", "price"}) {
		t.Errorf("Columns=%v", tbl.Columns)
	}
	want := [][]string{{"apple", "3"}, {"banana", ""}}
	if !reflect.DeepEqual(tbl.Rows, want) {
		t.Errorf("Rows=%v, want %v", tbl.Rows, want)
	}
}

const testODSContent = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:spreadsheet>
<table:table table:name="Sheet1">
<table:table-row><table:table-cell><text:p>name</text:p></table:table-cell><table:table-cell><text:p>note</text:p></table:table-cell><table:table-cell table:number-columns-repeated="1020"/></table:table-row>
<table:table-row><table:table-cell><text:p>alice</text:p></table:table-cell><table:table-cell><text:p>two<text:s text:c="2"/>spaces</text:p></table:table-cell></table:table-row>
<table:table-row table:number-rows-repeated="2"><table:table-cell><text:p>bob</text:p></table:table-cell></table:table-row>
<table:table-row table:number-rows-repeated="1048570"><table:table-cell table:number-columns-repeated="1024"/></table:table-row>
</table:table>
<table:table table:name="Sheet2">
<table:table-row><table:table-cell><text:p>ignored</text:p></table:table-cell></table:table-row>
</table:table>
</office:spreadsheet></office:body>
</office:document-content>`

func buildODS(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(odsContentPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoadODS(t *testing.T) {
	tbl, err := LoadBytes(buildODS(t, testODSContent), ".ods", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tbl.Columns, []string{"name", "note"}) {
		t.Errorf("Columns=%v", tbl.Columns)
	}
	want := [][]string{{"alice", "two  spaces"}, {"bob", ""}, {"bob", ""}}
	if !reflect.DeepEqual(tbl.Rows, want) {
		t.Errorf("Rows=%q, want %q", tbl.Rows, want)
	}
}

func TestLoadODS_NotZip(t *testing.T) {
	if _, err := LoadODS([]byte("plain text")); err == nil {
		t.Error("expected error for non-zip input")
	}
}

func TestLoad_FromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.CSV")
	if err := os.WriteFile(path, []byte("name,age\nalice,31\n"), 0600); err != nil {
		t.Fatal(err)
	}
	tbl, err := Load(path, Options{Encoding: "utf-8"})
	if err != nil {
		t.Fatal(err)
	}
	recs, err := tbl.Records(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].Text != "alice | 31" {
		t.Errorf("text=%q", recs[0].Text)
	}
}

func TestLoad_Unsupported(t *testing.T) {
	if _, err := LoadBytes([]byte("x"), ".pdf", Options{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err=%v", err)
	}
	if Supported("report.pdf") || !Supported("data.XLSX") {
		t.Error("Supported mismatch")
	}
}
