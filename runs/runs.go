// Package runs persists prompt outputs into sequential run directories and
// tracks which run is current.
package runs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNoCurrentRun is returned when no run has been saved or selected yet.
var ErrNoCurrentRun = errors.New("no current run")

// ErrRunNotFound is returned when a named run directory does not exist.
var ErrRunNotFound = errors.New("run not found")

var runDirPattern = regexp.MustCompile(`^run-(\d{4})$`)

// Run describes one saved run directory.
type Run struct {
	Name string
	Path string
}

// Service manages run directories under one base directory. Runs are named
// run-0001, run-0002, and so on; a "current" pointer file names the run that
// subsequent commands operate on by default.
type Service struct {
	baseDir string
	logger  zerolog.Logger
}

// NewService creates a run service rooted at baseDir.
func NewService(baseDir string, logger zerolog.Logger) *Service {
	return &Service{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "runs").Logger(),
	}
}

// DefaultDir returns the run store location: PROMPTCTL_RUNS_DIR if set,
// otherwise ~/.promptctl/runs.
func DefaultDir() string {
	if envDir := os.Getenv("PROMPTCTL_RUNS_DIR"); envDir != "" {
		return envDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.promptctl/runs"
	}
	return filepath.Join(homeDir, ".promptctl", "runs")
}

// Save creates the next run directory, writes the output and prompt into
// it, and marks it current. Callers invoke Save only after a successful
// invocation, so a failed run never occupies a directory.
func (s *Service) Save(prompt, output string) (*Run, error) {
	next, err := s.nextNumber()
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("run-%04d", next)
	dir := filepath.Join(s.baseDir, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "prompt.txt"), []byte(prompt), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write prompt: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "output.txt"), []byte(output), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	run := &Run{Name: name, Path: dir}
	if err := s.setCurrent(name); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("run", name).Msg("Saved run")
	return run, nil
}

// Current returns the run named by the current pointer.
func (s *Service) Current() (*Run, error) {
	data, err := os.ReadFile(s.currentPath()) //#nosec G304 -- run dir is user-controlled by design
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCurrentRun
		}
		return nil, fmt.Errorf("failed to read current pointer: %w", err)
	}

	name := strings.TrimSpace(string(data))
	run, err := s.lookup(name)
	if err != nil {
		// Stale pointer, e.g. the run directory was deleted by hand.
		return nil, ErrNoCurrentRun
	}
	return run, nil
}

// Output returns the saved output of a run.
func (s *Service) Output(run *Run) (string, error) {
	data, err := os.ReadFile(filepath.Join(run.Path, "output.txt")) //#nosec G304
	if err != nil {
		return "", fmt.Errorf("failed to read run output: %w", err)
	}
	return string(data), nil
}

// List returns all runs in ascending order.
func (s *Service) List() ([]Run, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Run{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var runs []Run
	for _, entry := range entries {
		if !entry.IsDir() || !runDirPattern.MatchString(entry.Name()) {
			continue
		}
		runs = append(runs, Run{
			Name: entry.Name(),
			Path: filepath.Join(s.baseDir, entry.Name()),
		})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Name < runs[j].Name })
	return runs, nil
}

// Get returns a run by name without touching the current pointer.
func (s *Service) Get(name string) (*Run, error) {
	return s.lookup(name)
}

// Use marks an existing run as current.
func (s *Service) Use(name string) (*Run, error) {
	run, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := s.setCurrent(run.Name); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Service) lookup(name string) (*Run, error) {
	if !runDirPattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, name)
	}
	dir := filepath.Join(s.baseDir, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, name)
	}
	return &Run{Name: name, Path: dir}, nil
}

func (s *Service) nextNumber() (int, error) {
	runs, err := s.List()
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, run := range runs {
		matches := runDirPattern.FindStringSubmatch(run.Name)
		n, err := strconv.Atoi(matches[1])
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func (s *Service) currentPath() string {
	return filepath.Join(s.baseDir, "current")
}

func (s *Service) setCurrent(name string) error {
	if err := os.MkdirAll(s.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}
	if err := os.WriteFile(s.currentPath(), []byte(name+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write current pointer: %w", err)
	}
	return nil
}
