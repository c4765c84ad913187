package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/miadp/fmrgate/internal/model"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. kind may be empty.
func writeError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Kind:    kind,
			Message: message,
		},
	})
}

// queryString extracts a string query parameter, trimmed and lowercased.
func queryString(r *http.Request, key string) string {
	return strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
}

// requestBaseURL reconstructs the scheme and host the client used, honouring
// the usual reverse proxy headers.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}
