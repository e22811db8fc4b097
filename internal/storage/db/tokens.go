package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mcmm/internal/domain"
)

// StoredToken is an API token saved for a platform
type StoredToken struct {
	Platform  domain.Platform
	APIKey    string
	UpdatedAt time.Time
}

// SaveToken saves or replaces the API token of a platform
func (d *DB) SaveToken(platform domain.Platform, apiKey string) error {
	_, err := d.Exec(`
        INSERT INTO auth_tokens (platform, token_data, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(platform) DO UPDATE SET
            token_data = excluded.token_data,
            updated_at = CURRENT_TIMESTAMP
    `, platform.String(), apiKey)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// GetToken retrieves the API token of a platform, or nil if none is stored
func (d *DB) GetToken(platform domain.Platform) (*StoredToken, error) {
	token := StoredToken{Platform: platform}
	err := d.QueryRow(`
        SELECT token_data, updated_at
        FROM auth_tokens
        WHERE platform = ?
    `, platform.String()).Scan(&token.APIKey, &token.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &token, nil
}

// DeleteToken removes the API token of a platform
func (d *DB) DeleteToken(platform domain.Platform) error {
	_, err := d.Exec("DELETE FROM auth_tokens WHERE platform = ?", platform.String())
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// HasToken checks if a token is stored for a platform
func (d *DB) HasToken(platform domain.Platform) (bool, error) {
	var count int
	err := d.QueryRow("SELECT COUNT(*) FROM auth_tokens WHERE platform = ?", platform.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token: %w", err)
	}
	return count > 0, nil
}
