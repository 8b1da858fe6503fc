package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptctl/promptctl/runs"
)

func runsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage saved prompt runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := app.Runs.List()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(app.Stdout, "No runs saved yet")
				return nil
			}

			currentName := ""
			if current, err := app.Runs.Current(); err == nil {
				currentName = current.Name
			}
			for _, run := range all {
				marker := " "
				if run.Name == currentName {
					marker = "*"
				}
				fmt.Fprintf(app.Stdout, "%s %s\n", marker, run.Name)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Print a run's output (current run if no name given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var run *runs.Run
			var err error
			if len(args) > 0 {
				run, err = app.Runs.Get(args[0])
			} else {
				run, err = app.Runs.Current()
			}
			if err != nil {
				if errors.Is(err, runs.ErrNoCurrentRun) {
					return fmt.Errorf("no run saved yet (use `promptctl prompt --save`)")
				}
				return err
			}

			output, err := app.Runs.Output(run)
			if err != nil {
				return err
			}
			fmt.Fprint(app.Stdout, output)
			return nil
		},
	}

	currentCmd := &cobra.Command{
		Use:   "current",
		Short: "Print the current run name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := app.Runs.Current()
			if err != nil {
				if errors.Is(err, runs.ErrNoCurrentRun) {
					return fmt.Errorf("no run saved yet (use `promptctl prompt --save`)")
				}
				return err
			}
			fmt.Fprintln(app.Stdout, run.Name)
			return nil
		},
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty run and mark it current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := app.Runs.Save("", "")
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Stdout, "Created %s\n", run.Name)
			return nil
		},
	}

	useCmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Mark a run as current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := app.Runs.Use(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Stdout, "Current run: %s\n", run.Name)
			return nil
		},
	}

	cmd.AddCommand(newCmd, currentCmd, listCmd, showCmd, useCmd)
	return cmd
}
