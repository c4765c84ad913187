package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/store"
)

// KeyPrefix starts every generated API key.
const KeyPrefix = "fmr_"

// displayPrefixLen covers KeyPrefix plus 8 hex characters.
const displayPrefixLen = len(KeyPrefix) + 8

// GenerateAPIKey creates a new random key. It returns the raw secret, which
// is shown once and never stored, and the record to persist for it.
func GenerateAPIKey(label string) (string, *model.APIKey, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, fmt.Errorf("generate random key: %w", err)
	}
	rawKey := KeyPrefix + hex.EncodeToString(randomBytes)

	return rawKey, &model.APIKey{
		KeyHash:   store.HashAPIKey(rawKey),
		KeyPrefix: rawKey[:displayPrefixLen],
		Label:     label,
		IsActive:  true,
	}, nil
}
