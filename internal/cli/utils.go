// Package cli formats kotae results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

const previewLen = 200

// WriteRetrieveResults writes retrieved records to w in the given format.
func WriteRetrieveResults(w io.Writer, res *models.RetrieveResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nFound %d records for %q\n\n", len(res.Records), res.Query)
	writeRecords(w, res.Records)
	return nil
}

// WriteAnswer writes a generated answer and the records it was based on.
func WriteAnswer(w io.Writer, res *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nAnswer:\n%s\n\n", res.Answer)
	if len(res.Records) > 0 {
		fmt.Fprintf(w, "Based on %d records:\n", len(res.Records))
		writeRecords(w, res.Records)
	}
	return nil
}

// WriteDataset writes a dataset summary.
func WriteDataset(w io.Writer, ds *models.Dataset, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ds)
	}
	fmt.Fprintf(w, "Indexed %d records\n", ds.RecordCount)
	if ds.Name != "" {
		fmt.Fprintf(w, "Name:    %s\n", ds.Name)
	}
	fmt.Fprintf(w, "Columns: %s\n", strings.Join(ds.Columns, ", "))
	return nil
}

func writeRecords(w io.Writer, records []models.ScoredRecord) {
	for i, rec := range records {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Row: %d | Score: %.4f\n", i+1, rec.ID, rec.Score)
		fmt.Fprintf(w, "%s\n\n", utils.Truncate(rec.Text, previewLen))
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
