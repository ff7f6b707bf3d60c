package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldlens/fieldlens/internal/learning"
)

var (
	correctDocID    string
	correctTemplate string
	correctFieldID  string
	correctField    string
	correctOriginal string
	correctValue    string
	correctContext  string
	correctActor    string
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Record a user correction for one extracted field",
	Long: `Correct stores a confirmed fix for a field of a document. Corrections
feed hint learning: once a field accumulates enough of them, "fieldlens learn"
distills a type and pattern hint from the history. Resubmitting the same
correction updates the stored row instead of duplicating it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		inserted, err := a.learning.RecordCorrection(cmd.Context(), learning.Correction{
			DocumentID:     correctDocID,
			TemplateID:     correctTemplate,
			FieldID:        correctFieldID,
			FieldName:      correctField,
			OriginalValue:  correctOriginal,
			CorrectedValue: correctValue,
			Context:        correctContext,
			ActorID:        correctActor,
		})
		if err != nil {
			return err
		}
		if inserted {
			fmt.Println("correction recorded")
		} else {
			fmt.Println("correction updated")
		}
		return nil
	},
}

func init() {
	correctCmd.Flags().StringVar(&correctDocID, "doc-id", "", "document identifier")
	correctCmd.Flags().StringVar(&correctTemplate, "template-id", "", "template identifier")
	correctCmd.Flags().StringVar(&correctFieldID, "field-id", "", "field identifier")
	correctCmd.Flags().StringVar(&correctField, "field", "", "field name")
	correctCmd.Flags().StringVar(&correctOriginal, "original", "", "value the pipeline extracted")
	correctCmd.Flags().StringVar(&correctValue, "value", "", "corrected value")
	correctCmd.Flags().StringVar(&correctContext, "context", "", "free-form context for the correction")
	correctCmd.Flags().StringVar(&correctActor, "actor", "", "identifier of whoever made the correction")
	correctCmd.MarkFlagRequired("doc-id")
	correctCmd.MarkFlagRequired("field-id")
	correctCmd.MarkFlagRequired("value")
}
