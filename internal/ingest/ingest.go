// Package ingest loads document page images for the vision fallback path.
// PDF pages are rendered to PNG; plain image files are passed through.
package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// PageCount returns the number of pages in a PDF.
func PageCount(pdfPath string) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("reading PDF page count: %w", err)
	}
	return count, nil
}

// PageImage returns the raw image bytes for one page of a document. PDFs are
// rendered; image files are read directly (the page argument is ignored for
// them).
func PageImage(ctx context.Context, path string, page int) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return RenderPDFPage(ctx, path, page)
	case imageExtensions[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported document format: %s", ext)
	}
}

// RenderPDFPage renders a single PDF page to PNG using pdftoppm
// (poppler-utils). This renders the page correctly, unlike
// pdfcpu.ExtractImagesFile which extracts embedded image objects whose
// internal numbering may not match page order.
func RenderPDFPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	if page < 1 {
		page = 1
	}
	count, err := PageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	if page > count {
		return nil, fmt.Errorf("page %d out of range, PDF has %d pages", page, count)
	}

	tmpDir, err := os.MkdirTemp("", "fieldlens-page-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -r 300: resolution in DPI, good enough for model reading
	// -singlefile: no page number suffix
	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", "300",
		"-singlefile",
		pdfPath,
		outputPrefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}
