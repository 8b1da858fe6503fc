// Package config persists promptctl settings as a flat string key/value
// store in a JSON file. A CLI process reads or rewrites the whole file per
// operation; concurrent invocations get last-writer-wins semantics, which is
// acceptable for a single-user tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// Store is a durable string key/value store backed by one JSON object file.
type Store struct {
	path   string
	logger zerolog.Logger
}

// NewStore creates a store at the given path.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "config").Logger(),
	}
}

// DefaultPath returns the config file location: PROMPTCTL_CONFIG_PATH if
// set, otherwise ~/.promptctl/config.json.
func DefaultPath() string {
	if envPath := os.Getenv("PROMPTCTL_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.promptctl/config.json"
	}
	return filepath.Join(homeDir, ".promptctl", "config.json")
}

// Get returns the persisted value for a key. An unreadable or malformed
// config file reads as empty rather than failing the caller.
func (s *Store) Get(key string) (string, bool) {
	values := s.load()
	v, ok := values[key]
	return v, ok
}

// Set validates and persists one key/value pair. Plan keys are validated at
// write time (see Validate); reads of values that are malformed on disk are
// handled leniently elsewhere.
func (s *Store) Set(key, value string) error {
	normalized, err := Validate(key, value)
	if err != nil {
		return err
	}

	values := s.load()
	values[key] = normalized
	return s.save(values)
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	values := s.load()
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

// List returns all persisted keys in sorted order with their values.
func (s *Store) List() map[string]string {
	return s.load()
}

// Keys returns the persisted keys in sorted order.
func (s *Store) Keys() []string {
	values := s.load()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) load() map[string]string {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path) //#nosec G304 -- config path is user-controlled by design
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read config file")
		}
		return values
	}
	if err := json.Unmarshal(data, &values); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Config file is malformed, treating as empty")
		return make(map[string]string)
	}
	return values
}

func (s *Store) save(values map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
