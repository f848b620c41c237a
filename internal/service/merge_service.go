package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/models"
	"github.com/aperturehq/aperture/internal/observability"
)

// MergeService folds extraction drafts into the live assessment table and
// appends to the evidence trail.
type MergeService struct {
	assessments AssessmentStore
	evidence    EvidenceStore
	metrics     observability.EngineMetrics
}

// NewMergeService creates the merge service. metrics may be nil.
func NewMergeService(assessments AssessmentStore, evidence EvidenceStore, metrics observability.EngineMetrics) *MergeService {
	return &MergeService{
		assessments: assessments,
		evidence:    evidence,
		metrics:     metrics,
	}
}

// MergeDraft upserts one draft for a user. When no assessment exists for the
// (user, element) pair, one is created with observation_count 1. When one
// exists, the draft's value, reasoning and confidence overwrite it and
// observation_count increments; the newest observation wins regardless of
// confidence. Exactly one evidence row is appended either way.
//
// The overwrite policy lives entirely in this method so a weighted or
// decaying rule can replace it without touching callers.
func (s *MergeService) MergeDraft(ctx context.Context, turn models.Turn, draft models.AssessmentDraft) (*models.Assessment, error) {
	existing, err := s.assessments.GetByUserAndElement(ctx, turn.UserID, draft.Element)

	var merged *models.Assessment

	created := false

	switch {
	case err == nil:
		count := existing.ObservationCount + 1
		merged, err = s.assessments.Update(ctx, existing.ID, &models.AssessmentUpdate{
			Value:            &draft.Value,
			Reasoning:        &draft.Reasoning,
			Confidence:       &draft.Confidence,
			ObservationCount: &count,
			Metadata:         draft.Metadata,
		})
		if err != nil {
			return nil, fmt.Errorf("updating assessment for element %s: %w", draft.Element, err)
		}
	case errors.Is(err, apperrors.ErrNotFound):
		created = true
		merged, err = s.assessments.Create(ctx, &models.Assessment{
			UserID:           turn.UserID,
			Element:          draft.Element,
			Value:            draft.Value,
			Reasoning:        draft.Reasoning,
			Confidence:       draft.Confidence,
			ObservationCount: 1,
			Metadata:         draft.Metadata,
		})
		if err != nil {
			return nil, fmt.Errorf("creating assessment for element %s: %w", draft.Element, err)
		}
	default:
		return nil, fmt.Errorf("looking up assessment for element %s: %w", draft.Element, err)
	}

	_, err = s.evidence.Append(ctx, &models.Evidence{
		AssessmentID:           merged.ID,
		UserMessage:            turn.UserMessage,
		Context:                firstChars(turn.AssistantResponse, assistantContextChars),
		ConfidenceContribution: draft.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("appending evidence for element %s: %w", draft.Element, err)
	}

	if s.metrics != nil {
		s.metrics.RecordMerge(ctx, created)
	}

	return merged, nil
}
