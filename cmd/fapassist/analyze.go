package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(cfgPath *string) *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "analyze <question>",
		Short: "Print the retrieval and classification of a question as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			analysis, err := a.svc.Analyze(cmd.Context(), args[0], history)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "Conversation so far")
	return cmd
}
