package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/promptctl/promptctl/llm"
)

// InvalidRetriesError reports an explicitly-set retries value that is not a
// non-negative integer.
type InvalidRetriesError struct {
	Value string
}

func (e *InvalidRetriesError) Error() string {
	return fmt.Sprintf("invalid retries value %q: must be a non-negative integer", e.Value)
}

// InvalidRetryDelayError reports an explicitly-set retry delay that is not a
// non-negative integer of milliseconds.
type InvalidRetryDelayError struct {
	Value string
}

func (e *InvalidRetryDelayError) Error() string {
	return fmt.Sprintf("invalid retry delay %q: must be a non-negative integer of milliseconds", e.Value)
}

// InvalidFallbackSpecError reports a malformed fallback specification.
type InvalidFallbackSpecError struct {
	Reason string
}

func (e *InvalidFallbackSpecError) Error() string {
	return "invalid fallback spec: " + e.Reason
}

// Validate checks a key/value pair at write time and returns the normalized
// value to persist. Validation here is strict, since the user just typed the
// value and deserves an immediate error. Plan building stays lenient about
// whatever is already on disk.
func Validate(key, value string) (string, error) {
	switch key {
	case llm.KeyPlanRetries:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return "", &InvalidRetriesError{Value: value}
		}
		return strconv.Itoa(n), nil

	case llm.KeyPlanRetryMs:
		ms, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || ms < 0 {
			return "", &InvalidRetryDelayError{Value: value}
		}
		return strconv.Itoa(ms), nil

	case llm.KeyPlanFallbacks:
		pairs, err := ParseFallbackSpec(value)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(pairs)
		if err != nil {
			return "", &InvalidFallbackSpecError{Reason: err.Error()}
		}
		return string(encoded), nil

	case llm.KeyDefaultProvider:
		if _, err := llm.GetProvider(value); err != nil {
			return "", fmt.Errorf("unknown provider %q", value)
		}
		return value, nil

	default:
		return value, nil
	}
}

// ParseFallbackSpec parses the user-facing fallback syntax: a comma-separated
// list of provider:model tokens. An empty spec is valid and means "no
// fallback at all" (distinct from unset, which means the hardcoded
// defaults). The persisted form is a JSON array of provider/model pairs.
func ParseFallbackSpec(spec string) ([]llm.ProviderModel, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return []llm.ProviderModel{}, nil
	}

	tokens := strings.Split(spec, ",")
	pairs := make([]llm.ProviderModel, 0, len(tokens))
	for _, token := range tokens {
		pm, err := llm.ParseProviderModel(token)
		if err != nil {
			return nil, &InvalidFallbackSpecError{Reason: err.Error()}
		}
		pairs = append(pairs, pm)
	}
	return pairs, nil
}
