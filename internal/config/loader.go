package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. ${VAR} placeholders
// are expanded from the environment before parsing. Missing file is not an
// error when path is empty: the defaults are returned.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return Defaults(), nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// expandEnv replaces ${VAR} placeholders with environment values. Unknown
// variables keep the placeholder so validation can point at them.
func expandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// applyDefaults merges default values into config where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.HistoryRetention == 0 {
		cfg.Service.HistoryRetention = defaults.Service.HistoryRetention
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	d := &cfg.Dispatch
	dd := defaults.Dispatch
	if d.DebounceWindow == 0 {
		d.DebounceWindow = dd.DebounceWindow
	}
	if d.CacheTTL == 0 {
		d.CacheTTL = dd.CacheTTL
	}
	if d.RequestTimeout == 0 {
		d.RequestTimeout = dd.RequestTimeout
	}
	if d.Retry.MaxRetries == nil {
		d.Retry.MaxRetries = dd.Retry.MaxRetries
	}
	if d.Retry.InitialDelay == 0 {
		d.Retry.InitialDelay = dd.Retry.InitialDelay
	}
	if d.Delivery.MaxRetries == nil {
		d.Delivery.MaxRetries = dd.Delivery.MaxRetries
	}
	if d.Delivery.InitialDelay == 0 {
		d.Delivery.InitialDelay = dd.Delivery.InitialDelay
	}
}

// validate rejects configurations the engine cannot run with.
func validate(cfg *Config) error {
	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is empty")
	}
	if cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is empty")
	}
	if cfg.Dispatch.DebounceWindow < 0 {
		return fmt.Errorf("dispatch.debounce_window is negative")
	}
	if cfg.Dispatch.CacheTTL <= 0 {
		return fmt.Errorf("dispatch.cache_ttl must be positive")
	}
	if cfg.Dispatch.Retry.Retries(0) < 0 {
		return fmt.Errorf("dispatch.retry.max_retries is negative")
	}
	if cfg.Dispatch.Delivery.Retries(0) < 0 {
		return fmt.Errorf("dispatch.delivery.max_retries is negative")
	}
	for i, tok := range cfg.API.Tokens {
		if tok.Token == "" {
			return fmt.Errorf("api.tokens[%d]: token is empty", i)
		}
		if len(tok.Scopes) == 0 {
			return fmt.Errorf("api.tokens[%d]: scopes is empty", i)
		}
	}
	for name, pc := range cfg.Providers {
		switch name {
		case "openai", "anthropic", "gemini":
		default:
			return fmt.Errorf("providers.%s: unknown provider", name)
		}
		if pc.BaseURL != "" && !strings.HasPrefix(pc.BaseURL, "http") {
			return fmt.Errorf("providers.%s.base_url: must be an http(s) URL", name)
		}
		if envVarPattern.MatchString(pc.BaseURL) {
			return fmt.Errorf("providers.%s.base_url: unresolved environment variable", name)
		}
	}
	return nil
}
