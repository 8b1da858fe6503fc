package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptctl/promptctl/llm"
	"github.com/promptctl/promptctl/metrics"
	"github.com/promptctl/promptctl/template"
)

type promptOptions struct {
	provider     string
	model        string
	system       string
	maxTokens    int64
	temperature  float64
	tempSet      bool
	stream       bool
	jsonOut      bool
	schemaPath   string
	templatePath string
	params       []string
	save         bool
	retries      int
	retryDelayMs int
	fallbacks    string
}

func promptCmd(app *App) *cobra.Command {
	opts := &promptOptions{}

	cmd := &cobra.Command{
		Use:   "prompt [text...]",
		Short: "Send a prompt and print the response",
		Long: `Send a prompt to the resolved model and print the response text.

The prompt is the joined arguments, or rendered from --template, or read
from stdin when neither is given. Use --stream to print text chunks as they
arrive, or --json with an optional --schema to request a JSON object.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.tempSet = cmd.Flags().Changed("temperature")
			return runPrompt(app, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "Provider to use (google, openai, anthropic)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model to use")
	cmd.Flags().StringVar(&opts.system, "system", "", "System instruction")
	cmd.Flags().Int64Var(&opts.maxTokens, "max-tokens", 0, "Maximum output tokens (0 uses the model default)")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Stream response text as it arrives")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Request a JSON object response")
	cmd.Flags().StringVar(&opts.schemaPath, "schema", "", "JSON schema file for --json responses")
	cmd.Flags().StringVarP(&opts.templatePath, "template", "t", "", "Prompt template file")
	cmd.Flags().StringArrayVar(&opts.params, "param", nil, "Template parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the output as a new run")
	cmd.Flags().IntVar(&opts.retries, "retries", -1, "Retries for the primary model (-1 uses config)")
	cmd.Flags().IntVar(&opts.retryDelayMs, "retry-delay-ms", -1, "Delay between retries in ms (-1 uses config)")
	cmd.Flags().StringVar(&opts.fallbacks, "fallbacks", "", "Fallback list as provider:model,... (overrides config)")

	return cmd
}

func runPrompt(app *App, opts *promptOptions, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt, system, err := resolvePrompt(opts, args)
	if err != nil {
		return err
	}

	primary := llm.ResolvePrimary(opts.provider, opts.model, app.Store)
	if _, err := llm.GetModel(primary.Model); err != nil {
		app.Logger.Warn().Str("target", primary.String()).Msg("Model not in catalog, cost will be zero")
	}

	overrides, err := resolveOverrides(app, opts)
	if err != nil {
		return err
	}
	plan := llm.BuildPlan(primary, overrides)

	req := &llm.Request{
		Prompt:    prompt,
		System:    system,
		MaxTokens: opts.maxTokens,
	}
	if opts.tempSet {
		temp := opts.temperature
		req.Temperature = &temp
	}

	runner := llm.NewRunner(app.Factory, app.Logger)
	start := time.Now()

	switch {
	case opts.jsonOut:
		return runObject(ctx, app, runner, plan, req, opts, start)
	case opts.stream:
		return runStream(ctx, app, runner, plan, req, opts, primary, start)
	default:
		return runText(ctx, app, runner, plan, req, opts, start)
	}
}

func runText(ctx context.Context, app *App, runner *llm.Runner, plan llm.Plan, req *llm.Request, opts *promptOptions, start time.Time) error {
	result, err := runner.Text(ctx, plan, req)
	if err != nil {
		recordFailure(app, plan.Steps[0].Target, time.Since(start))
		return err
	}

	fmt.Fprintln(app.Stdout, result.Text)
	app.Recorder.Record(metrics.FromUsageRecord(result.Usage, "prompt", len(result.Text), time.Since(start), true))
	return saveRun(app, opts, req.Prompt, result.Text)
}

func runStream(ctx context.Context, app *App, runner *llm.Runner, plan llm.Plan, req *llm.Request, opts *promptOptions, primary llm.ProviderModel, start time.Time) error {
	stream, winner, err := runner.Stream(ctx, plan, req)
	if err != nil {
		recordFailure(app, primary, time.Since(start))
		return err
	}
	defer stream.Close()

	var text strings.Builder
	var usage llm.Usage
	for stream.Next() {
		event := stream.Event()
		switch event.Type {
		case llm.StreamEventTypeText:
			fmt.Fprint(app.Stdout, event.Text)
			text.WriteString(event.Text)
		case llm.StreamEventTypeUsage, llm.StreamEventTypeStop:
			if event.Usage != nil {
				usage = *event.Usage
			}
		}
	}
	fmt.Fprintln(app.Stdout)

	if err := stream.Err(); err != nil {
		recordFailure(app, winner, time.Since(start))
		return err
	}

	rec := llm.NewUsageRecord(winner, usage)
	app.Recorder.Record(metrics.FromUsageRecord(rec, "prompt", text.Len(), time.Since(start), true))
	return saveRun(app, opts, req.Prompt, text.String())
}

func runObject(ctx context.Context, app *App, runner *llm.Runner, plan llm.Plan, req *llm.Request, opts *promptOptions, start time.Time) error {
	var schema *llm.Schema
	if opts.schemaPath != "" {
		data, err := os.ReadFile(opts.schemaPath) //#nosec G304 -- schema path comes from the CLI flag
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}
		schema, err = llm.ParseSchema(data)
		if err != nil {
			return err
		}
	}

	result, err := runner.Object(ctx, plan, req, schema)
	if err != nil {
		recordFailure(app, plan.Steps[0].Target, time.Since(start))
		return err
	}

	encoded, err := json.MarshalIndent(result.Object, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode object: %w", err)
	}
	fmt.Fprintln(app.Stdout, string(encoded))

	app.Recorder.Record(metrics.FromUsageRecord(result.Usage, "prompt", len(encoded), time.Since(start), true))
	return saveRun(app, opts, req.Prompt, string(encoded))
}

// resolvePrompt determines the prompt text: joined args, a rendered
// template, or stdin.
func resolvePrompt(opts *promptOptions, args []string) (prompt, system string, err error) {
	system = opts.system

	if opts.templatePath != "" {
		tmpl, err := template.Load(opts.templatePath)
		if err != nil {
			return "", "", err
		}
		values, err := parseParams(opts.params)
		if err != nil {
			return "", "", err
		}
		prompt, err = tmpl.Render(values)
		if err != nil {
			return "", "", err
		}
		if system == "" {
			system = tmpl.Meta.System
		}
		return prompt, system, nil
	}

	if len(args) > 0 {
		return strings.Join(args, " "), system, nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt = strings.TrimSpace(string(data))
	if prompt == "" {
		return "", "", fmt.Errorf("no prompt given (pass text, --template, or pipe stdin)")
	}
	return prompt, system, nil
}

// resolveOverrides layers CLI flags over the config store.
func resolveOverrides(app *App, opts *promptOptions) (llm.PlanOverrides, error) {
	ov := llm.OverridesFromStore(app.Store)

	if opts.retries >= 0 {
		retries := opts.retries
		ov.Retries = &retries
	}
	if opts.retryDelayMs >= 0 {
		delay := time.Duration(opts.retryDelayMs) * time.Millisecond
		ov.RetryDelay = &delay
	}
	if opts.fallbacks != "" {
		pairs, err := parseFallbackFlag(opts.fallbacks)
		if err != nil {
			return llm.PlanOverrides{}, err
		}
		ov.Fallbacks = pairs
	}
	return ov, nil
}

// parseFallbackFlag parses the --fallbacks flag. The literal "none" disables
// fallback entirely.
func parseFallbackFlag(spec string) ([]llm.ProviderModel, error) {
	if strings.EqualFold(strings.TrimSpace(spec), "none") {
		return []llm.ProviderModel{}, nil
	}
	tokens := strings.Split(spec, ",")
	pairs := make([]llm.ProviderModel, 0, len(tokens))
	for _, token := range tokens {
		pm, err := llm.ParseProviderModel(token)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pm)
	}
	return pairs, nil
}

func parseParams(raw []string) (map[string]string, error) {
	values := make(map[string]string, len(raw))
	for _, pair := range raw {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed --param %q: expected name=value", pair)
		}
		values[name] = value
	}
	return values, nil
}

func saveRun(app *App, opts *promptOptions, prompt, output string) error {
	if !opts.save {
		return nil
	}
	run, err := app.Runs.Save(prompt, output)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stderr, "Saved %s\n", run.Name)
	return nil
}

func recordFailure(app *App, target llm.ProviderModel, duration time.Duration) {
	rec := llm.UsageRecord{Provider: target.Provider, Model: target.Model}
	app.Recorder.Record(metrics.FromUsageRecord(rec, "prompt", 0, duration, false))
}
