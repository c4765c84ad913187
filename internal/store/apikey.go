package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/miadp/fmrgate/internal/model"
)

// CreateAPIKey inserts a new API key record. The key_hash must already be set
// (use HashAPIKey). The ID and CreatedAt fields are populated after insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	q := "INSERT INTO api_keys (key_hash, key_prefix, label, is_active, created_at)" +
		s.dialect.outputID +
		" VALUES (:key_hash, :key_prefix, :label, :is_active, :created_at)" +
		s.dialect.returningID

	bound, args, err := sqlx.Named(q, key)
	if err != nil {
		return fmt.Errorf("bind api key insert: %w", err)
	}
	bound = s.db.Rebind(bound)

	if s.dialect.returningID != "" || s.dialect.outputID != "" {
		if err := s.db.QueryRowxContext(ctx, bound, args...).Scan(&key.ID); err != nil {
			return fmt.Errorf("insert api key: %w", err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx, bound, args...)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get api key id: %w", err)
	}
	key.ID = id
	return nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 hash. The hash column
// carries a unique index, so this is a single indexed probe.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	q := s.db.Rebind("SELECT id, key_hash, key_prefix, label, is_active, created_at, last_used FROM api_keys WHERE key_hash = ?")
	if err := s.db.GetContext(ctx, &key, q, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	keys := []model.APIKey{}
	const q = "SELECT id, key_hash, key_prefix, label, is_active, created_at, last_used FROM api_keys ORDER BY created_at DESC, id DESC"
	if err := s.db.SelectContext(ctx, &keys, q); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// SetAPIKeyActive flips the active flag of an API key. Keys are never
// deleted; revocation is a deactivation.
func (s *Store) SetAPIKeyActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE api_keys SET is_active = ? WHERE id = ?"), active, id)
	if err != nil {
		return fmt.Errorf("set api key active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set api key active rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchAPIKey sets the last_used timestamp for an API key.
func (s *Store) TouchAPIKey(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE api_keys SET last_used = ? WHERE id = ?"), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update api key last used rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
