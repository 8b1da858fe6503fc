// Package cli wires the promptctl commands. All output goes through an
// explicit App value rather than package-level state, so commands compose
// and tests can capture output.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptctl/promptctl/backends"
	"github.com/promptctl/promptctl/config"
	"github.com/promptctl/promptctl/llm"
	"github.com/promptctl/promptctl/logger"
	"github.com/promptctl/promptctl/metrics"
	"github.com/promptctl/promptctl/runs"
	"github.com/rs/zerolog"
)

var version = "0.1.0"

// App carries everything a command needs: resolved collaborators plus the
// output streams. Results go to Stdout, diagnostics to Stderr.
type App struct {
	Logger   zerolog.Logger
	Store    *config.Store
	Recorder *metrics.Recorder
	Runs     *runs.Service
	Factory  llm.ClientFactory

	Stdout io.Writer
	Stderr io.Writer
}

// NewApp assembles the default production app.
func NewApp(verbose bool) *App {
	log := logger.New(verbose)
	store := config.NewStore(config.DefaultPath(), log)
	creds := backends.ResolveCredentials(store)

	return &App{
		Logger:   log,
		Store:    store,
		Recorder: metrics.NewRecorder(metrics.DefaultPath(), log),
		Runs:     runs.NewService(runs.DefaultDir(), log),
		Factory:  backends.Factory(creds, log),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// NewRootCommand builds the full command tree. The app is rebuilt in
// PersistentPreRun once the verbose flag is known.
func NewRootCommand() *cobra.Command {
	var verbose bool
	app := &App{Stdout: os.Stdout, Stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:   "promptctl",
		Short: "Dispatch prompts to LLM providers with retry and fallback",
		Long: `promptctl sends prompts to Google, OpenAI, or Anthropic models.

Each invocation follows an execution plan: the primary model is retried on
failure, then configured fallback models are tried in order. Token usage and
cost are recorded locally.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			*app = *NewApp(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging to stderr")

	rootCmd.AddCommand(
		promptCmd(app),
		configCmd(app),
		metricsCmd(app),
		runsCmd(app),
		modelsCmd(app),
	)
	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}
