package doctor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipq/snipq/internal/config"
	"github.com/snipq/snipq/internal/provider"
	"github.com/snipq/snipq/internal/settings"
)

func configuredProviders() map[provider.ID]settings.ProviderConfig {
	return map[provider.ID]settings.ProviderConfig{
		provider.OpenAI: {Provider: provider.OpenAI, APIKey: "sk-test", Model: "gpt-4o-mini"},
	}
}

func TestValidSetupPasses(t *testing.T) {
	d := New(config.Defaults(), configuredProviders(), provider.OpenAI, true)

	r := d.Validate()
	assert.True(t, r.Valid)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
}

func TestNoActiveProviderWarns(t *testing.T) {
	d := New(config.Defaults(), nil, "", false)

	r := d.Validate()
	assert.True(t, r.Valid)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "active_provider", r.Warnings[0].Field)
	assert.Contains(t, r.Warnings[0].Message, "snipq settings use")
}

func TestActiveProviderMissingKeyAndModel(t *testing.T) {
	providers := map[provider.ID]settings.ProviderConfig{
		provider.Anthropic: {Provider: provider.Anthropic},
	}
	d := New(config.Defaults(), providers, provider.Anthropic, true)

	r := d.Validate()
	assert.False(t, r.Valid)
	require.Len(t, r.Errors, 2)
	assert.Contains(t, r.Errors[0].Message, "set-key anthropic")
	assert.Contains(t, r.Errors[1].Message, "set-model anthropic")
}

func TestDispatchConfigChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.Dispatch.DebounceWindow = -1 * time.Second
	cfg.Dispatch.CacheTTL = 0
	cfg.Dispatch.RequestTimeout = 0

	d := New(cfg, configuredProviders(), provider.OpenAI, true)
	r := d.Validate()

	assert.False(t, r.Valid)
	fields := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "dispatch.debounce_window")
	assert.Contains(t, fields, "dispatch.cache_ttl")
	assert.Contains(t, fields, "dispatch.request_timeout")
}

func TestBaseURLChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.Providers = map[string]config.ProviderConf{
		"openai": {BaseURL: "ftp://example.com"},
		"cohere": {BaseURL: "https://example.com"},
	}

	d := New(cfg, configuredProviders(), provider.OpenAI, true)
	r := d.Validate()

	assert.False(t, r.Valid)
	var messages []string
	for _, e := range r.Errors {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, strings.Join(messages, "\n"), "must start with http")
	assert.Contains(t, strings.Join(messages, "\n"), `unknown provider "cohere"`)
}

func TestUnusedCredentialWarns(t *testing.T) {
	providers := configuredProviders()
	providers[provider.Gemini] = settings.ProviderConfig{Provider: provider.Gemini, APIKey: "g-key", Model: "gemini-2.0-flash"}

	d := New(config.Defaults(), providers, provider.OpenAI, true)
	r := d.Validate()

	assert.True(t, r.Valid)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0].Message, "not active")
}

func TestFormatHuman(t *testing.T) {
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "settings", Field: "openai", Message: "no API key"}},
		Warnings: []Issue{{Category: "dispatch", Message: "slow"}},
	}

	out := FormatHuman(r)
	assert.Contains(t, out, "Configuration invalid (1 error(s), 1 warning(s))")
	assert.Contains(t, out, "ERROR [settings] openai: no API key")
	assert.Contains(t, out, "WARN  [dispatch] slow")
}

func TestFormatJSON(t *testing.T) {
	r := &Result{Valid: true}
	out, err := FormatJSON(r)
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)
}
