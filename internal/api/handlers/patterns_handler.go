package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aperturehq/aperture/internal/models"
)

// PatternDiscoverer runs population-level pattern discovery.
// Implemented by service.DiscoveryService.
type PatternDiscoverer interface {
	DiscoverPatterns(ctx context.Context, stats []models.ElementStats, population, minUsers int, minOccurrenceRate float64) ([]models.ConstructSuggestion, error)
}

// PatternsHandler handles pattern discovery requests.
type PatternsHandler struct {
	discoverer PatternDiscoverer
}

// NewPatternsHandler creates a new patterns handler.
func NewPatternsHandler(discoverer PatternDiscoverer) *PatternsHandler {
	return &PatternsHandler{discoverer: discoverer}
}

// discoverRequest is the body of POST /v1/patterns/discover. The operator's
// analytics pipeline supplies the element statistics.
type discoverRequest struct {
	Population        int                   `json:"population"`
	MinUsers          int                   `json:"min_users"`
	MinOccurrenceRate float64               `json:"min_occurrence_rate"`
	Elements          []models.ElementStats `json:"elements"`
}

// Discover handles POST /v1/patterns/discover.
func (h *PatternsHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		RespondBadRequest(w, "invalid discover body: "+err.Error())

		return
	}

	if req.Population <= 0 {
		RespondBadRequest(w, "population must be a positive integer")

		return
	}

	suggestions, err := h.discoverer.DiscoverPatterns(r.Context(), req.Elements, req.Population, req.MinUsers, req.MinOccurrenceRate)
	if err != nil {
		RespondServiceError(w, r, err)

		return
	}

	RespondSuccess(w, http.StatusOK, suggestions)
}
