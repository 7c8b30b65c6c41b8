package kafka

import (
	"testing"
)

type job struct {
	QueryID string   `json:"qid"`
	DocIDs  []string `json:"docids"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[job]([]byte(`{"qid":"301","docids":["a","b"]}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.QueryID != "301" || len(got.DocIDs) != 2 {
		t.Errorf("decoded %+v", got)
	}

	if _, err := DecodeJSON[job]([]byte(`{"qid":`)); err == nil {
		t.Fatal("expected an error for truncated JSON")
	}
}
