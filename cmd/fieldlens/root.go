package main

import (
	"github.com/spf13/cobra"

	"github.com/fieldlens/fieldlens/version"
)

var (
	cfgFile string
	homeDir string
)

var rootCmd = &cobra.Command{
	Use:   "fieldlens",
	Short: "Document field extraction with OCR-aware model mapping",
	Long: `Fieldlens maps OCR output onto template-defined document fields using
language models, with confidence blending, vision fallback for poor scans,
specialist re-reads for handwriting, and hint learning from user corrections.

The pipeline includes:
  - Regex and heuristic evidence detection over the OCR text
  - Primary model mapping with OCR-confidence blending
  - Vision fallback when the OCR output is unusable
  - Specialist routing for handwritten and low-confidence fields
  - Hint learning from accumulated user corrections`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.fieldlens/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "fieldlens home directory (default: ~/.fieldlens)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(hintsCmd)
	rootCmd.AddCommand(callsCmd)
	rootCmd.AddCommand(configCmd)
}
