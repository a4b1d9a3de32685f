// Package settings is the persisted configuration store for provider
// credentials. Credentials are keyed by provider id so several providers can
// be configured at once while exactly one is active. The dispatch core only
// reads; writes belong to the CLI and the settings API.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/snipq/snipq/internal/provider"
)

const activeProviderKey = "active_provider"

// ProviderConfig is one provider's stored credential set.
type ProviderConfig struct {
	Provider  provider.ID
	APIKey    string
	Model     string
	UpdatedAt time.Time
}

// Store reads and writes provider settings in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SetProvider upserts the full credential set for a provider.
func (s *Store) SetProvider(ctx context.Context, id provider.ID, apiKey, model string) error {
	if !id.Valid() {
		return fmt.Errorf("unknown provider %q", id)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO provider_config(provider, api_key, model, updated_at)
VALUES(?, ?, ?, ?)
ON CONFLICT(provider) DO UPDATE SET api_key = excluded.api_key, model = excluded.model, updated_at = excluded.updated_at;
`, string(id), apiKey, model, now)
	if err != nil {
		return fmt.Errorf("set provider config: %w", err)
	}
	return nil
}

// SetAPIKey updates only the API key, preserving the stored model.
func (s *Store) SetAPIKey(ctx context.Context, id provider.ID, apiKey string) error {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.SetProvider(ctx, id, apiKey, cur.Model)
}

// SetModel updates only the selected model, preserving the stored key.
func (s *Store) SetModel(ctx context.Context, id provider.ID, model string) error {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.SetProvider(ctx, id, cur.APIKey, model)
}

// Get returns the stored config for a provider, or a zero-valued config if
// none has been saved yet.
func (s *Store) Get(ctx context.Context, id provider.ID) (ProviderConfig, error) {
	if !id.Valid() {
		return ProviderConfig{}, fmt.Errorf("unknown provider %q", id)
	}

	cfg := ProviderConfig{Provider: id}
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
SELECT api_key, model, updated_at FROM provider_config WHERE provider = ?;
`, string(id)).Scan(&cfg.APIKey, &cfg.Model, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return ProviderConfig{}, fmt.Errorf("read provider config: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		cfg.UpdatedAt = t
	}
	return cfg, nil
}

// All returns every stored provider config keyed by provider id.
func (s *Store) All(ctx context.Context) (map[provider.ID]ProviderConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT provider, api_key, model, updated_at FROM provider_config;`)
	if err != nil {
		return nil, fmt.Errorf("list provider configs: %w", err)
	}
	defer rows.Close()

	out := make(map[provider.ID]ProviderConfig)
	for rows.Next() {
		var cfg ProviderConfig
		var id, updatedAt string
		if err := rows.Scan(&id, &cfg.APIKey, &cfg.Model, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan provider config: %w", err)
		}
		cfg.Provider = provider.ID(id)
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			cfg.UpdatedAt = t
		}
		out[cfg.Provider] = cfg
	}
	return out, rows.Err()
}

// SetActive marks id as the active provider.
func (s *Store) SetActive(ctx context.Context, id provider.ID) error {
	if !id.Valid() {
		return fmt.Errorf("unknown provider %q", id)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings(key, value, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
`, activeProviderKey, string(id), now)
	if err != nil {
		return fmt.Errorf("set active provider: %w", err)
	}
	return nil
}

// Active returns the active provider id, or ok=false if none is set.
func (s *Store) Active(ctx context.Context) (provider.ID, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?;`, activeProviderKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read active provider: %w", err)
	}
	return provider.ID(v), true, nil
}

// Resolve returns the active provider and its complete call config. An
// incomplete setup comes back as a KindConfig provider error so the dispatch
// layer can deliver it like any other failure, without a network call.
func (s *Store) Resolve(ctx context.Context) (provider.ID, provider.Config, error) {
	id, ok, err := s.Active(ctx)
	if err != nil {
		return "", provider.Config{}, err
	}
	if !ok {
		return "", provider.Config{}, &provider.Error{
			Kind:    provider.KindConfig,
			Message: "no active provider configured",
			Hint:    "Pick a provider with `snipq settings use <provider>`",
		}
	}
	if !id.Valid() {
		return "", provider.Config{}, &provider.Error{
			Kind:    provider.KindConfig,
			Message: fmt.Sprintf("active provider %q is not supported", id),
		}
	}

	stored, err := s.Get(ctx, id)
	if err != nil {
		return "", provider.Config{}, err
	}
	if stored.APIKey == "" {
		return "", provider.Config{}, &provider.Error{
			Provider: id,
			Kind:     provider.KindConfig,
			Message:  "API key is not set",
			Hint:     fmt.Sprintf("Set one with `snipq settings set-key %s <key>`", id),
		}
	}
	if stored.Model == "" {
		return "", provider.Config{}, &provider.Error{
			Provider: id,
			Kind:     provider.KindConfig,
			Message:  "no model selected",
			Hint:     fmt.Sprintf("Select one with `snipq settings set-model %s <model>`", id),
		}
	}

	return id, provider.Config{APIKey: stored.APIKey, Model: stored.Model}, nil
}
