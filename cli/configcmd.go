package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func configCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage persisted settings",
		Long: `Manage the promptctl config file.

Useful keys:
  defaultProvider   Provider used when --provider is not given
  defaultModel      Model used when --model is not given
  planRetries       Retries for the primary model (non-negative integer)
  planRetryMs       Delay between retries in milliseconds
  planFallbacks     Fallback list as provider:model,... (empty disables fallback)`,
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok := app.Store.Get(args[0])
			if !ok {
				return fmt.Errorf("key %q is not set", args[0])
			}
			fmt.Fprintln(app.Stdout, value)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Store.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(app.Stdout, "Set %s\n", args[0])
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:     "remove <key>",
		Aliases: []string{"unset"},
		Short:   "Remove a config value",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Stdout, "Removed %s\n", args[0])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all config values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := app.Store.List()
			for _, key := range app.Store.Keys() {
				fmt.Fprintf(app.Stdout, "%s=%s\n", key, values[key])
			}
			return nil
		},
	}

	cmd.AddCommand(getCmd, setCmd, removeCmd, listCmd)
	return cmd
}
