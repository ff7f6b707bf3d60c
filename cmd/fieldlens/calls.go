package main

import (
	"github.com/spf13/cobra"

	"github.com/fieldlens/fieldlens/internal/llmcall"
)

var (
	callsDocID   string
	callsStage   string
	callsLimit   int
	callsSummary bool
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Inspect recorded model calls and their cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if callsSummary {
			summary, err := a.callStore.DocumentSummary(cmd.Context(), callsDocID)
			if err != nil {
				return err
			}
			return printJSON(summary)
		}

		calls, err := a.callStore.List(cmd.Context(), llmcall.QueryFilter{
			DocumentID: callsDocID,
			Stage:      callsStage,
			Limit:      callsLimit,
		})
		if err != nil {
			return err
		}
		return printJSON(calls)
	},
}

func init() {
	callsCmd.Flags().StringVar(&callsDocID, "doc-id", "", "filter by document")
	callsCmd.Flags().StringVar(&callsStage, "stage", "", "filter by stage (primary, vision, specialist)")
	callsCmd.Flags().IntVar(&callsLimit, "limit", 50, "maximum records to return")
	callsCmd.Flags().BoolVar(&callsSummary, "summary", false, "print a cost summary for --doc-id instead of records")
}
