// Package doctor validates snipq configuration and provider setup.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/snipq/snipq/internal/config"
	"github.com/snipq/snipq/internal/provider"
	"github.com/snipq/snipq/internal/settings"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the persisted provider settings.
type Doctor struct {
	cfg       *config.Config
	providers map[provider.ID]settings.ProviderConfig
	active    provider.ID
	hasActive bool
}

// New creates a Doctor from a loaded config and the settings store contents.
func New(cfg *config.Config, providers map[provider.ID]settings.ProviderConfig, active provider.ID, hasActive bool) *Doctor {
	return &Doctor{cfg: cfg, providers: providers, active: active, hasActive: hasActive}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateDispatchConfig(r)
	d.validateBaseURLs(r)
	d.validateActiveProvider(r)
	d.warnUnusedCredentials(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateServiceConfig checks required service fields.
func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "service", "api.listen", "api.listen is required")
	}
	if d.cfg.Service.HistoryRetention < 0 {
		d.addError(r, "service", "service.history_retention", "history_retention cannot be negative")
	}
}

// validateDispatchConfig sanity-checks the dispatch tuning knobs.
func (d *Doctor) validateDispatchConfig(r *Result) {
	dc := d.cfg.Dispatch

	if dc.DebounceWindow < 0 {
		d.addError(r, "dispatch", "dispatch.debounce_window", "debounce_window cannot be negative")
	}
	if dc.DebounceWindow > 2*time.Second {
		d.addWarning(r, "dispatch", "dispatch.debounce_window",
			fmt.Sprintf("debounce window %s is long; queries will feel sluggish", dc.DebounceWindow))
	}
	if dc.CacheTTL <= 0 {
		d.addError(r, "dispatch", "dispatch.cache_ttl", "cache_ttl must be positive")
	} else if dc.CacheTTL < time.Minute {
		d.addWarning(r, "dispatch", "dispatch.cache_ttl",
			fmt.Sprintf("cache TTL %s is very short; most repeat queries will refetch", dc.CacheTTL))
	}
	if dc.RequestTimeout <= 0 {
		d.addError(r, "dispatch", "dispatch.request_timeout", "request_timeout must be positive")
	}
	if retries := dc.Retry.Retries(0); retries > 5 {
		d.addWarning(r, "dispatch", "dispatch.retry.max_retries",
			fmt.Sprintf("%d retries with exponential backoff makes failures slow to surface", retries))
	}
}

// validateBaseURLs checks per-provider endpoint overrides.
func (d *Doctor) validateBaseURLs(r *Result) {
	envVarRe := regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

	for name, pc := range d.cfg.Providers {
		if pc.BaseURL == "" {
			continue
		}
		field := fmt.Sprintf("providers.%s.base_url", name)

		if !provider.ID(name).Valid() {
			d.addError(r, "providers", field, fmt.Sprintf("unknown provider %q", name))
			continue
		}
		if !strings.HasPrefix(pc.BaseURL, "http://") && !strings.HasPrefix(pc.BaseURL, "https://") {
			d.addError(r, "providers", field, fmt.Sprintf("base_url %q must start with http:// or https://", pc.BaseURL))
		}
		for _, m := range envVarRe.FindAllStringSubmatch(pc.BaseURL, -1) {
			if os.Getenv(m[1]) == "" {
				d.addWarning(r, "env_vars", field,
					fmt.Sprintf("environment variable ${%s} not set", m[1]))
			}
		}
	}
}

// validateActiveProvider checks the dispatch path has a usable provider.
func (d *Doctor) validateActiveProvider(r *Result) {
	if !d.hasActive {
		d.addWarning(r, "settings", "active_provider",
			"no active provider; dispatches will fail until 'snipq settings use <provider>'")
		return
	}

	cfg, ok := d.providers[d.active]
	if !ok {
		d.addError(r, "settings", "active_provider",
			fmt.Sprintf("active provider %q has no stored settings", d.active))
		return
	}
	if cfg.APIKey == "" {
		d.addError(r, "settings", string(d.active),
			fmt.Sprintf("active provider %q has no API key; run 'snipq settings set-key %s <key>'", d.active, d.active))
	}
	if cfg.Model == "" {
		d.addError(r, "settings", string(d.active),
			fmt.Sprintf("active provider %q has no model; run 'snipq settings set-model %s <model>'", d.active, d.active))
	}
}

// warnUnusedCredentials flags stored credentials that nothing selects.
func (d *Doctor) warnUnusedCredentials(r *Result) {
	for id, cfg := range d.providers {
		if d.hasActive && id == d.active {
			continue
		}
		if cfg.APIKey != "" {
			d.addWarning(r, "settings", string(id),
				fmt.Sprintf("provider %q has a stored key but is not active", id))
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
