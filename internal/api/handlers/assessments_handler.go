package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/models"
)

// AssessmentsReader is the read surface the handler needs.
// Implemented by service.AssessmentsService.
type AssessmentsReader interface {
	List(ctx context.Context, userID string, filters models.ListAssessmentsFilters) ([]models.Assessment, error)
	GetWithEvidence(ctx context.Context, userID string, id uuid.UUID) (*models.AssessmentWithEvidence, error)
}

// AssessmentCorrector applies user corrections.
// Implemented by service.CorrectionService.
type AssessmentCorrector interface {
	Correct(ctx context.Context, assessmentID uuid.UUID, correction models.Correction) (*models.Assessment, error)
}

// AssessmentsHandler handles assessment read and correction requests.
type AssessmentsHandler struct {
	reader    AssessmentsReader
	corrector AssessmentCorrector
}

// NewAssessmentsHandler creates a new assessments handler.
func NewAssessmentsHandler(reader AssessmentsReader, corrector AssessmentCorrector) *AssessmentsHandler {
	return &AssessmentsHandler{
		reader:    reader,
		corrector: corrector,
	}
}

// List handles GET /v1/users/{user_id}/assessments.
func (h *AssessmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	filters, err := parseListFilters(r)
	if err != nil {
		RespondBadRequest(w, err.Error())

		return
	}

	assessments, err := h.reader.List(r.Context(), userID, filters)
	if err != nil {
		RespondServiceError(w, r, err)

		return
	}

	RespondSuccess(w, http.StatusOK, assessments)
}

// Get handles GET /v1/users/{user_id}/assessments/{id}.
func (h *AssessmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondBadRequest(w, "invalid assessment id")

		return
	}

	assessment, err := h.reader.GetWithEvidence(r.Context(), userID, id)
	if err != nil {
		RespondServiceError(w, r, err)

		return
	}

	RespondSuccess(w, http.StatusOK, assessment)
}

// Correct handles PUT /v1/users/{user_id}/assessments/{id}/correct.
func (h *AssessmentsHandler) Correct(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondBadRequest(w, "invalid assessment id")

		return
	}

	var correction models.Correction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&correction); err != nil {
		RespondBadRequest(w, "invalid correction body: "+err.Error())

		return
	}

	// Ownership check runs through the reader so corrections cannot cross users.
	if _, err := h.reader.GetWithEvidence(r.Context(), userID, id); err != nil {
		RespondServiceError(w, r, err)

		return
	}

	corrected, err := h.corrector.Correct(r.Context(), id, correction)
	if err != nil {
		RespondServiceError(w, r, err)

		return
	}

	RespondSuccess(w, http.StatusOK, corrected)
}

// parseListFilters reads the optional query filters for List.
func parseListFilters(r *http.Request) (models.ListAssessmentsFilters, error) {
	var filters models.ListAssessmentsFilters

	q := r.URL.Query()

	if v := q.Get("element"); v != "" {
		filters.Element = &v
	}

	if v := q.Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filters, errInvalidQueryParam("min_confidence")
		}
		filters.MinConfidence = &f
	}

	if v := q.Get("max_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filters, errInvalidQueryParam("max_confidence")
		}
		filters.MaxConfidence = &f
	}

	if v := q.Get("user_corrected"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filters, errInvalidQueryParam("user_corrected")
		}
		filters.UserCorrected = &b
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filters, errInvalidQueryParam("limit")
		}
		filters.Limit = n
	}

	return filters, nil
}

type queryParamError string

func errInvalidQueryParam(name string) error {
	return queryParamError(name)
}

func (e queryParamError) Error() string {
	return "invalid query parameter: " + string(e)
}
