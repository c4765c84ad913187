package model

import "time"

// APIKey represents a credential that grants access to the protected API.
// The raw key is never stored; only a SHA-256 hash and a short prefix for
// identification are persisted.
type APIKey struct {
	ID        int64      `json:"id" db:"id"`
	KeyHash   string     `json:"-" db:"key_hash"`            // SHA-256 hash, never expose
	KeyPrefix string     `json:"key_prefix" db:"key_prefix"` // First chars for identification
	Label     string     `json:"label" db:"label"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty" db:"last_used"`
}
