package handlers

import (
	"context"
	"net/http"

	"github.com/aperturehq/aperture/internal/models"
)

// CorrelationLookup resolves a response token to its recorded assessments.
// Implemented by service.CorrelationService.
type CorrelationLookup interface {
	Lookup(ctx context.Context, token string) (*models.CorrelationLookup, error)
}

// CorrelationsHandler handles "why this response" lookups.
type CorrelationsHandler struct {
	lookup CorrelationLookup
}

// NewCorrelationsHandler creates a new correlations handler.
func NewCorrelationsHandler(lookup CorrelationLookup) *CorrelationsHandler {
	return &CorrelationsHandler{lookup: lookup}
}

// Get handles GET /v1/responses/{token}.
func (h *CorrelationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		RespondBadRequest(w, "missing response token")

		return
	}

	result, err := h.lookup.Lookup(r.Context(), token)
	if err != nil {
		RespondServiceError(w, r, err)

		return
	}

	RespondSuccess(w, http.StatusOK, result)
}
