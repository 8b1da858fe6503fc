// Package metrics records per-invocation usage into an append-only JSON
// history file and renders aggregate summaries.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/promptctl/promptctl/llm"
	"github.com/rs/zerolog"
)

// Entry is one recorded invocation. Read-only after creation.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	Command        string    `json:"command"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	InputTokens    int64     `json:"inputTokens"`
	OutputTokens   int64     `json:"outputTokens"`
	ThinkingTokens int64     `json:"thinkingTokens"`
	TotalTokens    int64     `json:"totalTokens"`
	InputCost      float64   `json:"inputCost"`
	OutputCost     float64   `json:"outputCost"`
	TotalCost      float64   `json:"totalCost"`
	ResponseChars  int       `json:"responseChars"`
	DurationMs     int64     `json:"durationMs"`
	Success        bool      `json:"success"`
}

// FromUsageRecord builds an Entry from a normalized usage record.
func FromUsageRecord(rec llm.UsageRecord, command string, responseChars int, duration time.Duration, success bool) Entry {
	return Entry{
		Timestamp:      time.Now().UTC(),
		Command:        command,
		Provider:       rec.Provider,
		Model:          rec.Model,
		InputTokens:    rec.InputTokens,
		OutputTokens:   rec.OutputTokens,
		ThinkingTokens: rec.ThinkingTokens,
		TotalTokens:    rec.TotalTokens,
		InputCost:      rec.InputCost,
		OutputCost:     rec.OutputCost,
		TotalCost:      rec.TotalCost,
		ResponseChars:  responseChars,
		DurationMs:     duration.Milliseconds(),
		Success:        success,
	}
}

// Recorder appends entries to the history file. Recording is fire-and-
// forget from the caller's perspective: use Record for the error-swallowing
// form.
type Recorder struct {
	path   string
	logger zerolog.Logger
}

// NewRecorder creates a recorder at the given history file path.
func NewRecorder(path string, logger zerolog.Logger) *Recorder {
	return &Recorder{
		path:   path,
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// DefaultPath returns the history file location: PROMPTCTL_METRICS_PATH if
// set, otherwise ~/.promptctl/metrics.json.
func DefaultPath() string {
	if envPath := os.Getenv("PROMPTCTL_METRICS_PATH"); envPath != "" {
		return envPath
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.promptctl/metrics.json"
	}
	return filepath.Join(homeDir, ".promptctl", "metrics.json")
}

// Record appends one entry, swallowing any failure. A metrics write must
// never prevent the caller from seeing its result.
func (r *Recorder) Record(entry Entry) {
	if err := r.append(entry); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record usage")
	}
}

func (r *Recorder) append(entry Entry) error {
	history, err := r.History()
	if err != nil {
		return err
	}
	history = append(history, entry)

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// History returns all recorded entries, oldest first. A missing file is an
// empty history; a corrupt one is an error.
func (r *Recorder) History() ([]Entry, error) {
	data, err := os.ReadFile(r.path) //#nosec G304 -- metrics path is user-controlled by design
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var history []Entry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return history, nil
}

// SummaryRow aggregates history per provider/model.
type SummaryRow struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Calls       int     `json:"calls"`
	Failures    int     `json:"failures"`
	TotalTokens int64   `json:"totalTokens"`
	TotalCost   float64 `json:"totalCost"`
}

// Summary aggregates the full history per provider/model, sorted by
// provider then model.
func (r *Recorder) Summary() ([]SummaryRow, error) {
	history, err := r.History()
	if err != nil {
		return nil, err
	}

	byTarget := make(map[string]*SummaryRow)
	for _, e := range history {
		key := e.Provider + "/" + e.Model
		row, ok := byTarget[key]
		if !ok {
			row = &SummaryRow{Provider: e.Provider, Model: e.Model}
			byTarget[key] = row
		}
		row.Calls++
		if !e.Success {
			row.Failures++
		}
		row.TotalTokens += e.TotalTokens
		row.TotalCost += e.TotalCost
	}

	rows := make([]SummaryRow, 0, len(byTarget))
	for _, row := range byTarget {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Provider != rows[j].Provider {
			return rows[i].Provider < rows[j].Provider
		}
		return rows[i].Model < rows[j].Model
	})
	return rows, nil
}

// RenderTable writes an aligned text table of summary rows.
func RenderTable(w io.Writer, rows []SummaryRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tCALLS\tFAILURES\tTOKENS\tCOST (USD)")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.6f\n",
			row.Provider, row.Model, row.Calls, row.Failures, row.TotalTokens, row.TotalCost)
	}
	return tw.Flush()
}
