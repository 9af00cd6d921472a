// ABOUTME: Secret storage keyed by name.
// ABOUTME: Values are write-only through the Backend surface; only keys are listed.

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/airtruct-console/internal/api"
)

func (s *Store) ListSecrets(ctx context.Context) ([]api.Secret, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, created_at FROM secrets ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []api.Secret{}
	for rows.Next() {
		var sec api.Secret
		if err := rows.Scan(&sec.Key, &sec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *Store) CreateSecret(ctx context.Context, req api.SecretRequest) error {
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return fmt.Errorf("secret key is required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO secrets (key, value, created_at) VALUES (?, ?, ?)`, key, req.Value, s.now())
	if isUniqueViolation(err) {
		return fmt.Errorf("secret %q: %w", key, api.ErrConflict)
	}
	return err
}

func (s *Store) DeleteSecret(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("secret %q: %w", key, api.ErrNotFound)
	}
	return nil
}
