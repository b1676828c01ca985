package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// ConfigStore implements domain.AutomationConfigStore. It keeps one row
// holding the last applied config as JSONB.
type ConfigStore struct {
	pool *pgxpool.Pool
}

// NewConfigStore creates a new ConfigStore backed by the given connection pool.
func NewConfigStore(pool *pgxpool.Pool) *ConfigStore {
	return &ConfigStore{pool: pool}
}

// Load returns the persisted config, or domain.ErrNotFound when nothing was
// saved yet.
func (s *ConfigStore) Load(ctx context.Context) (domain.AutomationConfig, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT config_json FROM automation_config WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AutomationConfig{}, domain.ErrNotFound
		}
		return domain.AutomationConfig{}, fmt.Errorf("postgres: load automation config: %w", err)
	}
	return decodeAutomationConfig(raw)
}

// Save replaces the persisted config. Older versions never overwrite newer
// ones.
func (s *ConfigStore) Save(ctx context.Context, cfg domain.AutomationConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("postgres: marshal automation config: %w", err)
	}

	const query = `
		INSERT INTO automation_config (id, version, config_json, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			version     = EXCLUDED.version,
			config_json = EXCLUDED.config_json,
			updated_at  = NOW()
		WHERE automation_config.version <= EXCLUDED.version`

	if _, err := s.pool.Exec(ctx, query, int64(cfg.Version), raw); err != nil {
		return fmt.Errorf("postgres: save automation config v%d: %w", cfg.Version, err)
	}
	return nil
}

func decodeAutomationConfig(raw []byte) (domain.AutomationConfig, error) {
	var cfg domain.AutomationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.AutomationConfig{}, fmt.Errorf("postgres: unmarshal automation config: %w", err)
	}
	return cfg, nil
}
