package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/models"
)

func mustScore(t *testing.T, score float64) models.ValueData {
	t.Helper()

	v, err := models.NewScoreValue(score)
	require.NoError(t, err)

	return v
}

func mustTag(t *testing.T, label string) models.ValueData {
	t.Helper()

	v, err := models.NewTagValue(label)
	require.NoError(t, err)

	return v
}

func TestMergeService_MergeDraft(t *testing.T) {
	turn := models.Turn{
		UserID:            "user-1",
		UserMessage:       "how do I roll back a bad deploy?",
		AssistantResponse: "You can use the rollback command.",
	}

	t.Run("first observation creates the assessment", func(t *testing.T) {
		assessments := newMemAssessmentStore()
		evidence := newMemEvidenceStore()
		svc := NewMergeService(assessments, evidence, nil)

		merged, err := svc.MergeDraft(context.Background(), turn, models.AssessmentDraft{
			Element:    "technical_confidence",
			Value:      mustScore(t, 0.4),
			Reasoning:  "asks for step by step guidance",
			Confidence: 0.7,
		})
		require.NoError(t, err)
		assert.Equal(t, "user-1", merged.UserID)
		assert.Equal(t, "technical_confidence", merged.Element)
		assert.Equal(t, 1, merged.ObservationCount)
		assert.InDelta(t, 0.7, merged.Confidence, 1e-9)
		assert.False(t, merged.UserCorrected)

		trail, err := evidence.ListByAssessment(context.Background(), merged.ID)
		require.NoError(t, err)
		require.Len(t, trail, 1)
		assert.Equal(t, turn.UserMessage, trail[0].UserMessage)
		assert.Equal(t, turn.AssistantResponse, trail[0].Context)
		assert.InDelta(t, 0.7, trail[0].ConfidenceContribution, 1e-9)
	})

	t.Run("second observation overwrites and increments the count", func(t *testing.T) {
		assessments := newMemAssessmentStore()
		evidence := newMemEvidenceStore()
		svc := NewMergeService(assessments, evidence, nil)

		first, err := svc.MergeDraft(context.Background(), turn, models.AssessmentDraft{
			Element:    "technical_confidence",
			Value:      mustScore(t, 0.4),
			Reasoning:  "asks for step by step guidance",
			Confidence: 0.7,
		})
		require.NoError(t, err)

		second, err := svc.MergeDraft(context.Background(), turn, models.AssessmentDraft{
			Element:    "technical_confidence",
			Value:      mustScore(t, 0.8),
			Reasoning:  "now debugging independently",
			Confidence: 0.5,
		})
		require.NoError(t, err)

		// Same row, newest observation wins even at lower confidence.
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 2, second.ObservationCount)
		assert.InDelta(t, 0.8, second.Value.Score, 1e-9)
		assert.InDelta(t, 0.5, second.Confidence, 1e-9)
		assert.Equal(t, "now debugging independently", second.Reasoning)

		trail, err := evidence.ListByAssessment(context.Background(), second.ID)
		require.NoError(t, err)
		assert.Len(t, trail, 2)
	})

	t.Run("different elements get separate rows", func(t *testing.T) {
		assessments := newMemAssessmentStore()
		evidence := newMemEvidenceStore()
		svc := NewMergeService(assessments, evidence, nil)

		a, err := svc.MergeDraft(context.Background(), turn, models.AssessmentDraft{
			Element: "technical_confidence", Value: mustScore(t, 0.4), Confidence: 0.7,
		})
		require.NoError(t, err)

		b, err := svc.MergeDraft(context.Background(), turn, models.AssessmentDraft{
			Element: "emotional_state", Value: mustTag(t, "frustrated"), Confidence: 0.6,
		})
		require.NoError(t, err)

		assert.NotEqual(t, a.ID, b.ID)
		assert.Equal(t, 1, a.ObservationCount)
		assert.Equal(t, 1, b.ObservationCount)
	})

	t.Run("long assistant responses are truncated in evidence context", func(t *testing.T) {
		assessments := newMemAssessmentStore()
		evidence := newMemEvidenceStore()
		svc := NewMergeService(assessments, evidence, nil)

		long := turn
		long.AssistantResponse = strings.Repeat("x", 300)

		merged, err := svc.MergeDraft(context.Background(), long, models.AssessmentDraft{
			Element: "technical_confidence", Value: mustScore(t, 0.4), Confidence: 0.7,
		})
		require.NoError(t, err)

		trail, err := evidence.ListByAssessment(context.Background(), merged.ID)
		require.NoError(t, err)
		require.Len(t, trail, 1)
		assert.Len(t, []rune(trail[0].Context), assistantContextChars)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		assessments := newMemAssessmentStore()
		assessments.createErr = errors.New("db down")
		svc := NewMergeService(assessments, newMemEvidenceStore(), nil)

		_, err := svc.MergeDraft(context.Background(), turn, models.AssessmentDraft{
			Element: "technical_confidence", Value: mustScore(t, 0.4), Confidence: 0.7,
		})
		assert.ErrorContains(t, err, "db down")
	})
}
