package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldlens/fieldlens/internal/extraction"
	"github.com/fieldlens/fieldlens/internal/ingest"
	"github.com/fieldlens/fieldlens/internal/ocr"
	"github.com/fieldlens/fieldlens/internal/template"
)

var (
	extractTemplate string
	extractOCR      string
	extractDocument string
	extractDocID    string
	extractPage     int
	extractNoHints  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [ocr-result.json ...]",
	Short: "Extract template fields from document OCR output",
	Long: `Extract runs the full mapping pipeline: evidence detection, the primary
model pass with OCR-confidence blending, vision fallback when the scan is
unusable, and specialist re-reads for routed fields. One OCR result file
processes a single document; several process a batch concurrently. The merged
results are printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tpl, err := template.LoadFile(extractTemplate)
		if err != nil {
			return err
		}
		fields := tpl.EnabledFields()

		hints, err := tpl.AuthoredHints()
		if err != nil {
			return err
		}
		if !extractNoHints {
			learned, err := a.learning.HintsForFields(cmd.Context(), tpl.ID, fields)
			if err != nil {
				return err
			}
			// Learned hints fill gaps; authored hints win on conflict.
			for name, payload := range learned {
				if _, ok := hints[name]; !ok {
					hints[name] = payload
				}
			}
		}

		ocrPaths := args
		if extractOCR != "" {
			ocrPaths = append([]string{extractOCR}, ocrPaths...)
		}
		if len(ocrPaths) == 0 && extractDocument == "" {
			return fmt.Errorf("provide OCR result files or --document")
		}

		if len(ocrPaths) > 1 {
			if extractDocument != "" || extractDocID != "" {
				return fmt.Errorf("--document and --doc-id apply to single-document runs only")
			}
			docs := make([]extraction.Document, 0, len(ocrPaths))
			for _, path := range ocrPaths {
				ocrResult, err := ocr.LoadFile(path)
				if err != nil {
					return err
				}
				docs = append(docs, extraction.Document{
					ID:  docIDFromPath(path),
					OCR: ocrResult,
				})
			}
			outcomes, failures := a.buildPipeline().RunBatch(cmd.Context(), docs, fields, hints)
			out := make(map[string]any, len(docs))
			for id, outcome := range outcomes {
				out[id] = outcome
			}
			for id, err := range failures {
				out[id] = map[string]string{"error": err.Error()}
			}
			return printJSON(out)
		}

		var ocrResult *ocr.Result
		if len(ocrPaths) == 1 {
			ocrResult, err = ocr.LoadFile(ocrPaths[0])
			if err != nil {
				return err
			}
		}

		var image []byte
		if extractDocument != "" {
			image, err = ingest.PageImage(cmd.Context(), extractDocument, extractPage)
			if err != nil {
				return err
			}
		}

		docID := extractDocID
		if docID == "" {
			base := extractDocument
			if len(ocrPaths) == 1 {
				base = ocrPaths[0]
			}
			docID = docIDFromPath(base)
		}

		outcome, err := a.buildPipeline().Run(cmd.Context(), extraction.Document{
			ID:    docID,
			OCR:   ocrResult,
			Image: image,
		}, fields, hints)
		if err != nil {
			return err
		}
		return printJSON(outcome)
	},
}

func docIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func init() {
	extractCmd.Flags().StringVar(&extractTemplate, "template", "", "template file (YAML or JSON)")
	extractCmd.Flags().StringVar(&extractOCR, "ocr", "", "OCR result file (JSON)")
	extractCmd.Flags().StringVar(&extractDocument, "document", "", "source document (PDF or image) for vision fallback")
	extractCmd.Flags().StringVar(&extractDocID, "doc-id", "", "document identifier (default: derived from input filename)")
	extractCmd.Flags().IntVar(&extractPage, "page", 1, "page to render when the document is a PDF")
	extractCmd.Flags().BoolVar(&extractNoHints, "no-learned-hints", false, "skip hints learned from corrections")
	extractCmd.MarkFlagRequired("template")
}
