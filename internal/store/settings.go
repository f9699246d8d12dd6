package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codewheel/toolgate/internal/config"
)

// LoadSettings returns the persisted policy settings, or nil when no override
// row exists (the file/default configuration applies).
func (s *Store) LoadSettings(ctx context.Context) (*config.Settings, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT settings FROM gateway_settings WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LoadSettings: %w", err)
	}

	var settings config.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("LoadSettings: %w", err)
	}
	return &settings, nil
}

// SaveSettings upserts the policy settings override row.
func (s *Store) SaveSettings(ctx context.Context, settings config.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("SaveSettings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gateway_settings (id, settings, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET settings = $1, updated_at = now()`,
		raw,
	)
	if err != nil {
		return fmt.Errorf("SaveSettings: %w", err)
	}
	return nil
}
