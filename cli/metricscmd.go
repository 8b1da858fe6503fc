package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptctl/promptctl/metrics"
)

func metricsCmd(app *App) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show recorded usage per provider and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := app.Recorder.Summary()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(app, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(app.Stdout, "No usage recorded yet")
				return nil
			}
			return metrics.RenderTable(app.Stdout, rows)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the raw usage history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := app.Recorder.History()
			if err != nil {
				return err
			}
			return printJSON(app, history)
		},
	}
	cmd.AddCommand(historyCmd)

	return cmd
}

func printJSON(app *App, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, string(encoded))
	return nil
}
