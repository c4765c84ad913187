package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/store"
)

var (
	ErrMissingCredential     = errors.New("missing credential")
	ErrInvalidCredential     = errors.New("invalid credential")
	ErrCredentialDeactivated = errors.New("credential deactivated")
	// ErrLookupFailed means the key store could not answer. It never
	// turns into an authorization.
	ErrLookupFailed = errors.New("credential lookup failed")
)

// DefaultTouchTimeout bounds a single last-used write.
const DefaultTouchTimeout = 5 * time.Second

// KeyStore is the part of the record store the gate reads and writes.
type KeyStore interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error)
	TouchAPIKey(ctx context.Context, id int64, at time.Time) error
}

type APIKeyPrincipal struct {
	KeyID     int64
	KeyPrefix string
	Label     string
}

type AuthService struct {
	store        KeyStore
	logger       *slog.Logger
	now          func() time.Time
	touchTimeout time.Duration

	wg sync.WaitGroup
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithClock replaces time.Now for last-used timestamps.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithTouchTimeout sets the deadline of each last-used write.
func WithTouchTimeout(d time.Duration) AuthOption {
	return func(s *AuthService) {
		if d > 0 {
			s.touchTimeout = d
		}
	}
}

func NewAuthService(keys KeyStore, logger *slog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:        keys,
		logger:       logger,
		now:          time.Now,
		touchTimeout: DefaultTouchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAPIKey checks the provided raw API key against stored key hashes.
// On success the key's last-used time is recorded in the background; that
// write never affects the returned decision.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*APIKeyPrincipal, error) {
	if strings.TrimSpace(rawKey) == "" {
		return nil, ErrMissingCredential
	}

	key, err := s.store.GetAPIKeyByHash(ctx, store.HashAPIKey(rawKey))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		s.logger.Error("api key lookup failed", "error", err)
		return nil, errors.Join(ErrLookupFailed, err)
	}

	if !key.IsActive {
		return nil, ErrCredentialDeactivated
	}

	s.touch(ctx, key.ID)

	return &APIKeyPrincipal{
		KeyID:     key.ID,
		KeyPrefix: key.KeyPrefix,
		Label:     key.Label,
	}, nil
}

// Wait blocks until every pending last-used write has finished.
func (s *AuthService) Wait() {
	s.wg.Wait()
}

func (s *AuthService) touch(ctx context.Context, id int64) {
	at := s.now().UTC()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.touchTimeout)
		defer cancel()
		if err := s.store.TouchAPIKey(ctx, id, at); err != nil {
			s.logger.Warn("failed to record api key use", "key_id", id, "error", err)
		}
	}()
}
