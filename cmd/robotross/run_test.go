package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gwillem/robotross/pkg/robot"
)

func TestLoadSVG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.svg")
	doc := `<svg><circle cx="5" cy="5" r="5"/></svg>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	req, err := loadSVG(path, 60)
	if err != nil {
		t.Fatalf("loadSVG() error = %v", err)
	}
	if req.Kind != robot.SVGRequest || req.Name != "logo.svg" || req.SVG != doc || req.Size != 60 {
		t.Errorf("request = %+v", req)
	}

	if _, err := loadSVG(filepath.Join(dir, "missing.svg"), 0); err == nil {
		t.Error("loadSVG() accepted a missing file")
	}

	big := filepath.Join(dir, "big.svg")
	if err := os.WriteFile(big, make([]byte, maxSVGSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSVG(big, 0); err == nil {
		t.Error("loadSVG() accepted an oversized file")
	}
}
