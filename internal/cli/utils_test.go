package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func sampleRetrieve() *models.RetrieveResponse {
	return &models.RetrieveResponse{
		DatasetID: "ds-1",
		Query:     "fruit",
		Records: []models.ScoredRecord{
			{Record: models.Record{ID: 0, Text: "apple | fruit"}, Score: 0.8165},
			{Record: models.Record{ID: 2, Text: strings.Repeat("x", 250)}, Score: 0.4082},
		},
		Context: "apple | fruit\n" + strings.Repeat("x", 250),
	}
}

func TestWriteRetrieveResults_JSON(t *testing.T) {
	res := sampleRetrieve()
	var buf bytes.Buffer
	if err := WriteRetrieveResults(&buf, res, OutputJSON); err != nil {
		t.Fatalf("WriteRetrieveResults(json): %v", err)
	}
	var decoded models.RetrieveResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "fruit" || len(decoded.Records) != 2 || decoded.Records[1].ID != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Context != res.Context {
		t.Errorf("context not preserved")
	}
}

func TestWriteRetrieveResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRetrieveResults(&buf, sampleRetrieve(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{`Found 2 records for "fruit"`, "Rank: 1 | Row: 0 | Score: 0.8165", "apple | fruit", "Rank: 2 | Row: 2"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, strings.Repeat("x", 201)) {
		t.Errorf("long record should be truncated")
	}
}

func TestWriteAnswer(t *testing.T) {
	res := &models.AskResponse{
		Query:   "fruit",
		Answer:  "Apples and bananas.",
		Records: sampleRetrieve().Records[:1],
	}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Answer:\nApples and bananas.", "Based on 1 records", "apple | fruit"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteAnswer(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.AskResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Answer != res.Answer {
		t.Errorf("answer = %q", decoded.Answer)
	}
}

func TestWriteDataset(t *testing.T) {
	ds := &models.Dataset{Name: "fruit.csv", Columns: []string{"name", "kind"}, RecordCount: 3}
	var buf bytes.Buffer
	if err := WriteDataset(&buf, ds, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Indexed 3 records", "fruit.csv", "name, kind"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
