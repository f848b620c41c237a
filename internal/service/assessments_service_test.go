package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/models"
)

func TestAssessmentsService_List(t *testing.T) {
	svc := NewAssessmentsService(newMemAssessmentStore(), newMemEvidenceStore())

	t.Run("empty user_id is rejected", func(t *testing.T) {
		_, err := svc.List(context.Background(), "", models.ListAssessmentsFilters{})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("out-of-range confidence is rejected", func(t *testing.T) {
		bad := 1.2
		_, err := svc.List(context.Background(), "user-1", models.ListAssessmentsFilters{MinConfidence: &bad})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("inverted confidence bounds are rejected", func(t *testing.T) {
		lo, hi := 0.8, 0.2
		_, err := svc.List(context.Background(), "user-1", models.ListAssessmentsFilters{
			MinConfidence: &lo,
			MaxConfidence: &hi,
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("valid filters pass through", func(t *testing.T) {
		out, err := svc.List(context.Background(), "user-1", models.ListAssessmentsFilters{})
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestAssessmentsService_GetWithEvidence(t *testing.T) {
	assessments := newMemAssessmentStore()
	evidence := newMemEvidenceStore()
	svc := NewAssessmentsService(assessments, evidence)

	a, err := assessments.Create(context.Background(), &models.Assessment{
		UserID:     "user-1",
		Element:    "technical_confidence",
		Value:      mustScore(t, 0.6),
		Confidence: 0.7,
	})
	require.NoError(t, err)

	_, err = evidence.Append(context.Background(), &models.Evidence{
		AssessmentID: a.ID,
		UserMessage:  "first observation",
	})
	require.NoError(t, err)

	t.Run("owner sees the assessment with its trail", func(t *testing.T) {
		got, err := svc.GetWithEvidence(context.Background(), "user-1", a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		require.Len(t, got.Evidence, 1)
	})

	t.Run("another user's ID reads as not found", func(t *testing.T) {
		_, err := svc.GetWithEvidence(context.Background(), "user-2", a.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
