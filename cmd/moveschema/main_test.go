package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteProducesSchema(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "moves.schema.json")
	if err := write(out); err != nil {
		t.Fatalf("write returned error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["title"] == nil {
		t.Fatalf("expected schema title, got keys %v", doc)
	}
	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleaned up, found %d entries", len(entries))
	}
}
