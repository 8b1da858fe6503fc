// Package backends resolves provider credentials and builds transport
// clients for the plan runner.
package backends

import (
	"context"
	"fmt"
	"os"

	"github.com/promptctl/promptctl/config"
	"github.com/promptctl/promptctl/llm"
	"github.com/promptctl/promptctl/llm/anthropic"
	"github.com/promptctl/promptctl/llm/google"
	"github.com/promptctl/promptctl/llm/openai"
	"github.com/rs/zerolog"
)

// Config store keys for provider credentials. Environment variables take
// precedence so CI and one-off overrides work without touching the file.
const (
	KeyGoogleAPIKey    = "googleApiKey"
	KeyOpenAIAPIKey    = "openaiApiKey"
	KeyOpenAIBaseURL   = "openaiBaseUrl"
	KeyOpenAIOrg       = "openaiOrganization"
	KeyAnthropicAPIKey = "anthropicApiKey"
)

// Credentials holds the resolved per-provider settings.
type Credentials struct {
	GoogleAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIOrg       string
	AnthropicAPIKey string
}

// ResolveCredentials reads provider settings from the environment first,
// then the config store.
func ResolveCredentials(store *config.Store) Credentials {
	return Credentials{
		GoogleAPIKey:    firstOf(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"), stored(store, KeyGoogleAPIKey)),
		OpenAIAPIKey:    firstOf(os.Getenv("OPENAI_API_KEY"), stored(store, KeyOpenAIAPIKey)),
		OpenAIBaseURL:   firstOf(os.Getenv("OPENAI_BASE_URL"), stored(store, KeyOpenAIBaseURL)),
		OpenAIOrg:       stored(store, KeyOpenAIOrg),
		AnthropicAPIKey: firstOf(os.Getenv("ANTHROPIC_API_KEY"), stored(store, KeyAnthropicAPIKey)),
	}
}

// Factory builds the client factory the runner schedules against. Each
// client is wrapped with request logging middleware. Construction fails per
// target, not up front, so a missing key for one provider only disables
// that provider's plan steps.
func Factory(creds Credentials, logger zerolog.Logger) llm.ClientFactory {
	return func(target llm.ProviderModel) (llm.Client, error) {
		client, err := build(creds, target, logger)
		if err != nil {
			return nil, err
		}
		return llm.WrapWithMiddleware(client, requestLogger(logger)), nil
	}
}

func build(creds Credentials, target llm.ProviderModel, logger zerolog.Logger) (llm.Client, error) {
	switch target.Provider {
	case llm.ProviderGoogle:
		if creds.GoogleAPIKey == "" {
			return nil, fmt.Errorf("google API key not configured (set GEMINI_API_KEY or `promptctl config set %s`)", KeyGoogleAPIKey)
		}
		return google.NewGoogleClient(creds.GoogleAPIKey, logger)

	case llm.ProviderOpenAI:
		if creds.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key not configured (set OPENAI_API_KEY or `promptctl config set %s`)", KeyOpenAIAPIKey)
		}
		return openai.NewOpenAIClient(creds.OpenAIAPIKey, creds.OpenAIBaseURL, creds.OpenAIOrg)

	case llm.ProviderAnthropic:
		if creds.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured (set ANTHROPIC_API_KEY or `promptctl config set %s`)", KeyAnthropicAPIKey)
		}
		return anthropic.NewAnthropicClient(creds.AnthropicAPIKey, logger)

	default:
		return nil, fmt.Errorf("%w: provider %q", llm.ErrNotFound, target.Provider)
	}
}

// requestLogger logs each outbound request and its outcome at debug level.
func requestLogger(logger zerolog.Logger) llm.Middleware {
	log := logger.With().Str("component", "client").Logger()
	return llm.MiddlewareFunc{
		BeforeRequestFunc: func(_ context.Context, req *llm.Request) (*llm.Request, error) {
			log.Debug().
				Str("model", req.Model).
				Int("prompt_chars", len(req.Prompt)).
				Msg("Sending request")
			return req, nil
		},
		AfterResponseFunc: func(_ context.Context, req *llm.Request, resp *llm.Response) (*llm.Response, error) {
			log.Debug().
				Str("model", req.Model).
				Str("stop_reason", resp.StopReason).
				Msg("Received response")
			return resp, nil
		},
		OnErrorFunc: func(_ context.Context, req *llm.Request, err error) error {
			log.Debug().
				Str("model", req.Model).
				Err(err).
				Msg("Request failed")
			return err
		},
	}
}

func stored(store *config.Store, key string) string {
	if store == nil {
		return ""
	}
	v, _ := store.Get(key)
	return v
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
