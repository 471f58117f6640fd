package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// odsContentPath is the path to the main content inside an .ods zip (OpenDocument Spreadsheet).
const odsContentPath = "content.xml"

// maxODSRepeat bounds how far a repeated non-empty row or cell is expanded.
const maxODSRepeat = 10000

// LoadODS reads the first table of an OpenDocument spreadsheet. Its first row is the header.
func LoadODS(content []byte) (*Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open ODS: not a zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != odsContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open ODS: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		rows, err := parseODSContent(rc)
		if err != nil {
			return nil, fmt.Errorf("parse ODS: %w", err)
		}
		return newTable(rows)
	}
	return nil, fmt.Errorf("open ODS: %s not found", odsContentPath)
}

// parseODSContent streams content.xml and returns the cell text of the first table.
// Trailing empty cells and blank rows, which spreadsheets emit with large repeat counts, are dropped.
func parseODSContent(r io.Reader) ([][]string, error) {
	dec := xml.NewDecoder(r)
	var (
		rows          [][]string
		inTable       bool
		row           []string
		rowRepeat     int
		pendingCells  int
		cellRepeat    int
		cellText      strings.Builder
		inCell        bool
		paragraphSeen bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "table":
				inTable = true
			case "table-row":
				if !inTable {
					continue
				}
				row = nil
				pendingCells = 0
				rowRepeat = repeatAttr(el, "number-rows-repeated")
			case "table-cell", "covered-table-cell":
				if !inTable {
					continue
				}
				inCell = true
				paragraphSeen = false
				cellText.Reset()
				cellRepeat = repeatAttr(el, "number-columns-repeated")
			case "p":
				if inCell {
					if paragraphSeen {
						cellText.WriteByte('\n')
					}
					paragraphSeen = true
				}
			case "s":
				if inCell {
					cellText.WriteString(strings.Repeat(" ", repeatAttr(el, "c")))
				}
			case "tab":
				if inCell {
					cellText.WriteByte('\t')
				}
			}
		case xml.CharData:
			if inCell {
				cellText.Write(el)
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "table-cell", "covered-table-cell":
				if !inCell {
					continue
				}
				inCell = false
				text := strings.TrimSpace(cellText.String())
				if text == "" {
					pendingCells += cellRepeat
					continue
				}
				for i := 0; i < pendingCells; i++ {
					row = append(row, "")
				}
				pendingCells = 0
				for i := 0; i < min(cellRepeat, maxODSRepeat); i++ {
					row = append(row, text)
				}
			case "table-row":
				if !inTable {
					continue
				}
				if len(row) == 0 {
					continue
				}
				for i := 0; i < min(rowRepeat, maxODSRepeat); i++ {
					rows = append(rows, row)
				}
			case "table":
				// Only the first table is read.
				if inTable {
					return rows, nil
				}
			}
		}
	}
	return rows, nil
}

func repeatAttr(el xml.StartElement, local string) int {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}
