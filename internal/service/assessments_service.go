package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AssessmentsService is the read side of the assessment table for the API.
type AssessmentsService struct {
	assessments AssessmentStore
	evidence    EvidenceStore
}

// NewAssessmentsService creates the assessments read service.
func NewAssessmentsService(assessments AssessmentStore, evidence EvidenceStore) *AssessmentsService {
	return &AssessmentsService{
		assessments: assessments,
		evidence:    evidence,
	}
}

// List returns a user's assessments after validating and bounding the filters.
func (s *AssessmentsService) List(ctx context.Context, userID string, filters models.ListAssessmentsFilters) ([]models.Assessment, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id", "user_id must not be empty")
	}

	for name, v := range map[string]*float64{
		"min_confidence": filters.MinConfidence,
		"max_confidence": filters.MaxConfidence,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return nil, apperrors.NewValidationError(name, fmt.Sprintf("%s %v outside [0, 1]", name, *v))
		}
	}

	if filters.MinConfidence != nil && filters.MaxConfidence != nil && *filters.MinConfidence > *filters.MaxConfidence {
		return nil, apperrors.NewValidationError("min_confidence", "min_confidence exceeds max_confidence")
	}

	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}
	if filters.Limit > maxListLimit {
		filters.Limit = maxListLimit
	}

	return s.assessments.List(ctx, userID, &filters)
}

// GetWithEvidence returns one assessment with its full evidence trail. The
// assessment must belong to the given user; a mismatch reads as not found so
// IDs cannot be probed across users.
func (s *AssessmentsService) GetWithEvidence(ctx context.Context, userID string, id uuid.UUID) (*models.AssessmentWithEvidence, error) {
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if a.UserID != userID {
		return nil, apperrors.NewNotFoundError("assessment", "assessment not found")
	}

	trail, err := s.evidence.ListByAssessment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading evidence: %w", err)
	}

	return &models.AssessmentWithEvidence{
		Assessment: *a,
		Evidence:   trail,
	}, nil
}
