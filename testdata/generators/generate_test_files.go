//go:build ignore

// Generates testdata/sample.mat, the file the examples read.
//
//	go run testdata/generators/generate_test_files.go
package main

import (
	"log"
	"os"
	"path/filepath"

	mock "github.com/scigolib/mat73/internal/testing"
)

func main() {
	path := filepath.Join("testdata", "sample.mat")
	if err := os.WriteFile(path, mock.SampleMAT(), 0o644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	log.Printf("wrote %s", path)
}
