package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Caller represents a row in the callers table: one authenticated identity
// with its granted scopes and category permissions.
type Caller struct {
	ID           string
	Name         string
	APIKeyHash   string
	APIKeyPrefix string
	Scopes       []string
	Grants       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpdateCallerParams holds optional fields for partial caller updates.
type UpdateCallerParams struct {
	Name   *string
	Scopes []string
	Grants []string
}

// GenerateAPIKey creates a new tgk_ API key with its bcrypt hash and prefix.
// Returns (fullKey, hash, prefix, error). The fullKey is shown to the user once.
func GenerateAPIKey() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}
	fullKey := "tgk_" + hex.EncodeToString(raw) // 68 chars total

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}

	prefix := fullKey[:8] // "tgk_abcd"
	return fullKey, string(hashBytes), prefix, nil
}

// scopes and grants are stored as jsonb string arrays.
func marshalList(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}

func scanCaller(scan func(...any) error) (*Caller, error) {
	var c Caller
	var scopesRaw, grantsRaw []byte
	if err := scan(&c.ID, &c.Name, &c.APIKeyHash, &c.APIKeyPrefix,
		&scopesRaw, &grantsRaw, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopesRaw, &c.Scopes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(grantsRaw, &c.Grants); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCaller inserts a new caller with a freshly generated API key.
// Returns the caller and the plaintext key (shown once).
func (s *Store) CreateCaller(ctx context.Context, name string, scopes, grants []string) (*Caller, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("CreateCaller: %w", err)
	}

	scopesJSON, err := marshalList(scopes)
	if err != nil {
		return nil, "", fmt.Errorf("CreateCaller: %w", err)
	}
	grantsJSON, err := marshalList(grants)
	if err != nil {
		return nil, "", fmt.Errorf("CreateCaller: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO callers (name, api_key_hash, api_key_prefix, scopes, grants)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, api_key_hash, api_key_prefix, scopes, grants, created_at, updated_at`,
		name, keyHash, keyPrefix, scopesJSON, grantsJSON,
	)
	c, err := scanCaller(row.Scan)
	if err != nil {
		return nil, "", fmt.Errorf("CreateCaller: %w", err)
	}
	return c, fullKey, nil
}

// ListCallers returns all callers ordered by created_at DESC.
func (s *Store) ListCallers(ctx context.Context) ([]*Caller, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, scopes, grants, created_at, updated_at
		FROM callers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListCallers: %w", err)
	}
	defer rows.Close()

	var callers []*Caller
	for rows.Next() {
		c, err := scanCaller(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ListCallers: %w", err)
		}
		callers = append(callers, c)
	}
	return callers, rows.Err()
}

// GetCaller returns a caller by ID, or nil if not found.
func (s *Store) GetCaller(ctx context.Context, id string) (*Caller, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, scopes, grants, created_at, updated_at
		FROM callers WHERE id = $1`, id)
	c, err := scanCaller(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetCaller: %w", err)
	}
	return c, nil
}

// UpdateCaller applies a partial update. Only non-nil fields are changed.
func (s *Store) UpdateCaller(ctx context.Context, id string, params UpdateCallerParams) (*Caller, error) {
	var scopesJSON, grantsJSON []byte
	var err error
	if params.Scopes != nil {
		if scopesJSON, err = marshalList(params.Scopes); err != nil {
			return nil, fmt.Errorf("UpdateCaller: %w", err)
		}
	}
	if params.Grants != nil {
		if grantsJSON, err = marshalList(params.Grants); err != nil {
			return nil, fmt.Errorf("UpdateCaller: %w", err)
		}
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE callers SET
			name       = COALESCE($2, name),
			scopes     = COALESCE($3, scopes),
			grants     = COALESCE($4, grants),
			updated_at = now()
		WHERE id = $1
		RETURNING id, name, api_key_hash, api_key_prefix, scopes, grants, created_at, updated_at`,
		id, params.Name, scopesJSON, grantsJSON,
	)
	c, err := scanCaller(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("UpdateCaller: %w", err)
	}
	return c, nil
}

// DeleteCaller deletes a caller by ID.
func (s *Store) DeleteCaller(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM callers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteCaller: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RotateAPIKey generates a new API key for a caller.
// Returns the updated caller and the plaintext key (shown once).
func (s *Store) RotateAPIKey(ctx context.Context, id string) (*Caller, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("RotateAPIKey: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE callers SET
			api_key_hash   = $2,
			api_key_prefix = $3,
			updated_at     = now()
		WHERE id = $1
		RETURNING id, name, api_key_hash, api_key_prefix, scopes, grants, created_at, updated_at`,
		id, keyHash, keyPrefix,
	)
	c, err := scanCaller(row.Scan)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("RotateAPIKey: caller not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("RotateAPIKey: %w", err)
	}
	return c, fullKey, nil
}

// LookupByPrefix finds a caller by API key prefix (first 8 chars).
// Used by auth to narrow candidates before bcrypt verify.
func (s *Store) LookupByPrefix(ctx context.Context, prefix string) (*Caller, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, scopes, grants, created_at, updated_at
		FROM callers WHERE api_key_prefix = $1`, prefix)
	c, err := scanCaller(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupByPrefix: %w", err)
	}
	return c, nil
}
