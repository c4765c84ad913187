package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/miadp/fmrgate/internal/model"
)

// SubprojectLister is the read side of the record store used by the API.
type SubprojectLister interface {
	ListSubprojects(ctx context.Context) ([]model.Subproject, error)
}

// SubprojectHandler serves the imported subproject records.
type SubprojectHandler struct {
	store  SubprojectLister
	logger *slog.Logger
	now    func() time.Time
}

// NewSubprojectHandler creates a new SubprojectHandler.
func NewSubprojectHandler(store SubprojectLister, logger *slog.Logger) *SubprojectHandler {
	return &SubprojectHandler{store: store, logger: logger, now: time.Now}
}

// List returns every subproject, newest first, in the list envelope.
// GET /api/v1/subprojects
func (h *SubprojectHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListSubprojects(r.Context())
	if err != nil {
		h.logger.Error("failed to list subprojects", "error", err)
		writeError(w, http.StatusInternalServerError, "StoreFailure", "Failed to fetch subprojects")
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Success:   true,
		Count:     len(items),
		Timestamp: h.now().UTC(),
		Data:      items,
	})
}
