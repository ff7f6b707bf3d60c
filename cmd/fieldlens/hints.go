package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hintsTemplate string

var hintsCmd = &cobra.Command{
	Use:   "hints",
	Short: "List the stored hints for a template",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.learning.Store().HintsForTemplate(cmd.Context(), hintsTemplate)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no hints stored for template", hintsTemplate)
			return nil
		}
		return printJSON(rows)
	},
}

func init() {
	hintsCmd.Flags().StringVar(&hintsTemplate, "template-id", "", "template identifier")
	hintsCmd.MarkFlagRequired("template-id")
}
