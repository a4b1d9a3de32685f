package config

import "time"

// Config represents the complete snipq configuration.
type Config struct {
	Service   ServiceConfig           `yaml:"service"`
	State     StateConfig             `yaml:"state"`
	API       APIConfig               `yaml:"api"`
	Dispatch  DispatchConfig          `yaml:"dispatch"`
	Providers map[string]ProviderConf `yaml:"providers,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name             string        `yaml:"name"`
	LogLevel         string        `yaml:"log_level"`
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// StateConfig defines where the settings database lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP server settings. With neither Key nor Tokens set the
// API serves unauthenticated, which is the expected mode on loopback.
type APIConfig struct {
	Listen string `yaml:"listen"`

	// Key is a single bearer token with full access.
	Key string `yaml:"api_key,omitempty"`

	// Tokens are scoped bearer tokens for narrower callers.
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken is one scoped bearer credential.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// DispatchConfig tunes the query dispatch engine.
type DispatchConfig struct {
	// DebounceWindow collapses rapid successive queries into one.
	DebounceWindow time.Duration `yaml:"debounce_window"`

	// CacheTTL is the validity window for memoized answers.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// RequestTimeout bounds a single provider call. A timeout counts as one
	// failed attempt against the retry budget.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Retry tunes the provider fetch retry loop.
	Retry RetryConfig `yaml:"retry"`

	// Delivery tunes the best-effort result delivery loop.
	Delivery RetryConfig `yaml:"delivery"`
}

// RetryConfig defines a bounded exponential backoff schedule. MaxRetries is a
// pointer so an explicit `max_retries: 0` disables retrying instead of being
// mistaken for unset.
type RetryConfig struct {
	MaxRetries   *int          `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// Retries returns the configured retry count, or fallback when unset.
func (r RetryConfig) Retries(fallback int) int {
	if r.MaxRetries == nil {
		return fallback
	}
	return *r.MaxRetries
}

// ProviderConf holds optional per-provider overrides. Credentials do NOT live
// here; they belong to the settings store.
type ProviderConf struct {
	BaseURL string `yaml:"base_url,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:             "snipq",
			LogLevel:         "INFO",
			HistoryRetention: 7 * 24 * time.Hour,
		},
		State: StateConfig{
			Path: "./snipq.db",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8750",
		},
		Dispatch: DispatchConfig{
			DebounceWindow: 300 * time.Millisecond,
			CacheTTL:       30 * time.Minute,
			RequestTimeout: 30 * time.Second,
			Retry: RetryConfig{
				MaxRetries:   intPtr(3),
				InitialDelay: 1 * time.Second,
			},
			Delivery: RetryConfig{
				MaxRetries:   intPtr(3),
				InitialDelay: 500 * time.Millisecond,
			},
		},
	}
}

func intPtr(v int) *int { return &v }
