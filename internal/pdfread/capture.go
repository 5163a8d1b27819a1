package pdfread

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// CapturePage renders a full page to a PNG using pdftoppm
// (poppler-utils) and returns the image bytes. Page numbers are
// 1-indexed. Safe to call concurrently.
func CapturePage(pdfPath string, pageNum, dpi int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "leaflet-capture-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -png: output PNG format
	// -f/-l N: single page
	// -r: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := fmt.Sprintf("%d", pageNum)
	cmd := exec.Command("pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	return data, nil
}
