package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/service"
)

// DefaultAPIKeyHeader carries the API key on protected requests.
const DefaultAPIKeyHeader = "X-API-Key"

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// Principal identifies the API key that authorized the request.
type Principal struct {
	KeyID     int64
	KeyPrefix string
	Label     string
}

// Authenticate returns an HTTP middleware that admits a request only when
// the header carries an active API key. A missing or unknown key is
// answered with 401, a deactivated key with 403, and a key store failure
// with 500. The handler is never reached on denial.
func Authenticate(authSvc *service.AuthService, header string, logger *slog.Logger) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authSvc.ValidateAPIKey(r.Context(), r.Header.Get(header))
			if err != nil {
				status, kind, message := denial(err, header)
				logger.Debug("request denied",
					"kind", kind,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				writeAuthError(w, status, kind, message)
				return
			}

			principal := &Principal{
				KeyID:     p.KeyID,
				KeyPrefix: p.KeyPrefix,
				Label:     p.Label,
			}
			recordPrincipal(r.Context(), principal)
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func denial(err error, header string) (status int, kind, message string) {
	switch {
	case errors.Is(err, service.ErrMissingCredential):
		return http.StatusUnauthorized, "MissingCredential",
			"Authentication required. Provide an API key in the " + header + " header."
	case errors.Is(err, service.ErrInvalidCredential):
		return http.StatusUnauthorized, "InvalidCredential", "Invalid API key"
	case errors.Is(err, service.ErrCredentialDeactivated):
		return http.StatusForbidden, "CredentialDeactivated", "API key has been deactivated"
	default:
		return http.StatusInternalServerError, "LookupFailed", "Unable to verify API key"
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Kind: kind, Message: message},
	})
}
