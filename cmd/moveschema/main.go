// Command moveschema writes the JSON schema for move library documents.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"arena-duel/server/internal/moves"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "output path for the JSON schema")
	flag.Parse()

	if outPath == "" {
		log.Fatal("moveschema: missing -out path")
	}
	if err := write(outPath); err != nil {
		log.Fatalf("moveschema: %v", err)
	}
}

func write(outPath string) error {
	data, err := json.MarshalIndent(moves.Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".moveschema-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close schema: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod schema: %w", err)
	}
	return os.Rename(tmp.Name(), outPath)
}
