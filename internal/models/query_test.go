package models

import (
	"testing"
)

func TestQueryRequest_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		query    QueryRequest
		wantErr  bool
		wantTopK int
	}{
		{"empty query", QueryRequest{Query: ""}, true, 0},
		{"blank query", QueryRequest{Query: "   "}, true, 0},
		{"negative top_k", QueryRequest{Query: "x", TopK: -1}, true, 0},
		{"sets default top_k", QueryRequest{Query: "x"}, false, 5},
		{"keeps top_k", QueryRequest{Query: "x", TopK: 7}, false, 7},
		{"caps top_k", QueryRequest{Query: "x", TopK: 500}, false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			err := q.Normalize(5, 100)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && q.TopK != tt.wantTopK {
				t.Errorf("TopK=%d, want %d", q.TopK, tt.wantTopK)
			}
		})
	}
}

func TestQueryRequest_NormalizeTrims(t *testing.T) {
	q := QueryRequest{Query: "  fruit  "}
	if err := q.Normalize(5, 100); err != nil {
		t.Fatal(err)
	}
	if q.Query != "fruit" {
		t.Errorf("Query=%q", q.Query)
	}
}
