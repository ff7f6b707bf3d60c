package ocr

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads an OCR result from a JSON file produced by the OCR backend.
func LoadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OCR result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing OCR result JSON: %w", err)
	}
	return &r, nil
}
