package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aperturehq/aperture/internal/models"
	"github.com/aperturehq/aperture/internal/service"
)

// ConstructMatcher is the construct surface the handler needs.
// Implemented by service.ConstructService.
type ConstructMatcher interface {
	Match(ctx context.Context, description string) (*models.ConstructMatch, error)
	Templates(search, useCase string) []models.ConstructTemplate
}

// ConstructsHandler handles construct catalog, matching and validation requests.
type ConstructsHandler struct {
	matcher ConstructMatcher
}

// NewConstructsHandler creates a new constructs handler.
func NewConstructsHandler(matcher ConstructMatcher) *ConstructsHandler {
	return &ConstructsHandler{matcher: matcher}
}

// matchRequest is the body of POST /v1/constructs/match.
type matchRequest struct {
	Description string `json:"description"`
}

// Match handles POST /v1/constructs/match.
func (h *ConstructsHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondBadRequest(w, "invalid match body: "+err.Error())

		return
	}

	match, err := h.matcher.Match(r.Context(), req.Description)
	if err != nil {
		RespondServiceError(w, r, err)

		return
	}

	RespondSuccess(w, http.StatusOK, match)
}

// Templates handles GET /v1/constructs/templates.
func (h *ConstructsHandler) Templates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	templates := h.matcher.Templates(q.Get("search"), q.Get("use_case"))

	RespondSuccess(w, http.StatusOK, templates)
}

// Validate handles POST /v1/constructs/validate.
func (h *ConstructsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var schema models.ConstructSchema
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&schema); err != nil {
		RespondBadRequest(w, "invalid construct body: "+err.Error())

		return
	}

	RespondSuccess(w, http.StatusOK, service.ValidateConstruct(schema))
}
