package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldlens/fieldlens/internal/template"
)

var (
	learnTemplate   string
	learnTemplateID string
	learnFieldID    string
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Distill correction history into field hints",
	Long: `Learn regenerates hints from the stored correction history. Given a
field id it learns that single field; otherwise it learns every field of the
template with recorded corrections. Fields that disable learning are skipped.
Regeneration is idempotent: the same history produces the same hint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tpl, err := template.LoadFile(learnTemplate)
		if err != nil {
			return err
		}
		templateID := learnTemplateID
		if templateID == "" {
			templateID = tpl.ID
		}

		if learnFieldID != "" {
			field, err := findField(tpl.Fields, learnFieldID)
			if err != nil {
				return err
			}
			payload, err := a.learning.GenerateFieldHint(cmd.Context(), templateID, field)
			if err != nil {
				return err
			}
			if payload == nil {
				fmt.Println("nothing to learn for this field")
				return nil
			}
			return printJSON(map[string]any{learnFieldID: payload})
		}

		generated, err := a.learning.GenerateTemplateHints(cmd.Context(), templateID, tpl.Fields)
		if err != nil {
			return err
		}
		if len(generated) == 0 {
			fmt.Println("no fields with corrections to learn from")
			return nil
		}
		return printJSON(generated)
	},
}

func findField(fields []template.Field, key string) (template.Field, error) {
	for _, f := range fields {
		if f.ID == key || f.Name == key {
			return f, nil
		}
	}
	return template.Field{}, fmt.Errorf("field %q not found in template", key)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func init() {
	learnCmd.Flags().StringVar(&learnTemplate, "template", "", "template file (YAML or JSON)")
	learnCmd.Flags().StringVar(&learnTemplateID, "template-id", "", "override the template identifier")
	learnCmd.Flags().StringVar(&learnFieldID, "field-id", "", "learn a single field (id or name)")
	learnCmd.MarkFlagRequired("template")
}
