package backends

import (
	"path/filepath"
	"testing"

	"github.com/promptctl/promptctl/config"
	"github.com/promptctl/promptctl/llm"
	"github.com/rs/zerolog"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "ANTHROPIC_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestResolveCredentialsEnvWinsOverStore(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "env-key")

	store := config.NewStore(filepath.Join(t.TempDir(), "config.json"), zerolog.Nop())
	if err := store.Set(KeyOpenAIAPIKey, "stored-key"); err != nil {
		t.Fatal(err)
	}

	creds := ResolveCredentials(store)
	if creds.OpenAIAPIKey != "env-key" {
		t.Errorf("env should win, got %q", creds.OpenAIAPIKey)
	}
}

func TestResolveCredentialsFallsBackToStore(t *testing.T) {
	clearProviderEnv(t)

	store := config.NewStore(filepath.Join(t.TempDir(), "config.json"), zerolog.Nop())
	if err := store.Set(KeyAnthropicAPIKey, "stored-key"); err != nil {
		t.Fatal(err)
	}

	creds := ResolveCredentials(store)
	if creds.AnthropicAPIKey != "stored-key" {
		t.Errorf("store value should apply, got %q", creds.AnthropicAPIKey)
	}
}

func TestResolveCredentialsGeminiAliases(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GOOGLE_API_KEY", "alias-key")

	creds := ResolveCredentials(nil)
	if creds.GoogleAPIKey != "alias-key" {
		t.Errorf("GOOGLE_API_KEY alias should apply, got %q", creds.GoogleAPIKey)
	}

	t.Setenv("GEMINI_API_KEY", "primary-key")
	creds = ResolveCredentials(nil)
	if creds.GoogleAPIKey != "primary-key" {
		t.Errorf("GEMINI_API_KEY should win over GOOGLE_API_KEY, got %q", creds.GoogleAPIKey)
	}
}

func TestFactoryBuildsConfiguredProviders(t *testing.T) {
	creds := Credentials{
		GoogleAPIKey:    "g",
		OpenAIAPIKey:    "o",
		AnthropicAPIKey: "a",
	}
	factory := Factory(creds, zerolog.Nop())

	for _, provider := range []string{llm.ProviderGoogle, llm.ProviderOpenAI, llm.ProviderAnthropic} {
		client, err := factory(llm.ProviderModel{Provider: provider, Model: "m"})
		if err != nil {
			t.Errorf("provider %q should build: %v", provider, err)
		}
		if client == nil {
			t.Errorf("provider %q returned nil client", provider)
		}
	}
}

func TestFactoryFailsPerMissingKey(t *testing.T) {
	creds := Credentials{OpenAIAPIKey: "o"}
	factory := Factory(creds, zerolog.Nop())

	if _, err := factory(llm.ProviderModel{Provider: llm.ProviderGoogle, Model: "m"}); err == nil {
		t.Error("google without a key should fail")
	}
	if _, err := factory(llm.ProviderModel{Provider: llm.ProviderOpenAI, Model: "m"}); err != nil {
		t.Errorf("openai with a key should build: %v", err)
	}
}

func TestFactoryUnknownProvider(t *testing.T) {
	factory := Factory(Credentials{}, zerolog.Nop())
	if _, err := factory(llm.ProviderModel{Provider: "closedai", Model: "m"}); err == nil {
		t.Error("unknown provider should fail")
	}
}
