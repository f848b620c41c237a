package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/llm"
	"github.com/aperturehq/aperture/internal/models"
)

type failingMerger struct {
	inner   DraftMerger
	failFor string
}

func (m *failingMerger) MergeDraft(ctx context.Context, turn models.Turn, draft models.AssessmentDraft) (*models.Assessment, error) {
	if draft.Element == m.failFor {
		return nil, errors.New("merge blew up")
	}

	return m.inner.MergeDraft(ctx, turn, draft)
}

func newTestPipeline(t *testing.T, llmClient llm.Client) (*TurnPipeline, *memAssessmentStore, *memEvidenceStore, *memCorrelationStore) {
	t.Helper()

	assessments := newMemAssessmentStore()
	evidence := newMemEvidenceStore()
	correlations := newMemCorrelationStore()

	extractor := NewExtractionService(llmClient, "gpt-4o-mini", 0.2, 5, nil)
	merger := NewMergeService(assessments, evidence, nil)
	correlator := NewCorrelationService(correlations, assessments, evidence)

	return NewTurnPipeline(extractor, merger, correlator, nil), assessments, evidence, correlations
}

func TestTurnPipeline_ProcessTurn(t *testing.T) {
	turn := models.Turn{
		UserID:            "user-1",
		ConversationID:    "conv-1",
		MessageID:         "msg-1",
		UserMessage:       "how do I set up a VPC for my AWS deploy?",
		AssistantResponse: "Start with a public and a private subnet.",
	}

	extractionAnswer := `{
		"assessments": [
			{"element": "technical_confidence", "value_type": "score", "value": 0.5, "reasoning": "r", "confidence": 0.7},
			{"element": "help_seeking_behavior", "value_type": "tag", "value": "direct_question", "reasoning": "r", "confidence": 0.8}
		]
	}`

	t.Run("full flow stores assessments and a correlation", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{extractionAnswer}}
		pipeline, assessments, evidence, correlations := newTestPipeline(t, mock)

		result, err := pipeline.ProcessTurn(context.Background(), turn)
		require.NoError(t, err)
		require.Len(t, result.AssessmentIDs, 2)
		assert.NotEmpty(t, result.Token)

		stored, err := assessments.List(context.Background(), "user-1", nil)
		require.NoError(t, err)
		assert.Len(t, stored, 2)

		for _, id := range result.AssessmentIDs {
			trail, err := evidence.ListByAssessment(context.Background(), id)
			require.NoError(t, err)
			assert.Len(t, trail, 1)
		}

		record, err := correlations.GetByToken(context.Background(), result.Token)
		require.NoError(t, err)
		assert.Equal(t, "conv-1", record.ConversationID)
		assert.Equal(t, "msg-1", record.MessageID)
		assert.ElementsMatch(t, result.AssessmentIDs, record.AssessmentIDs)
	})

	t.Run("missing user_id is rejected", func(t *testing.T) {
		pipeline, _, _, _ := newTestPipeline(t, &llm.MockClient{})

		_, err := pipeline.ProcessTurn(context.Background(), models.Turn{UserMessage: "hi"})
		assert.ErrorContains(t, err, "user_id")
	})

	t.Run("extraction failure still records an empty correlation", func(t *testing.T) {
		mock := &llm.MockClient{Err: errors.New("provider down")}
		pipeline, _, _, correlations := newTestPipeline(t, mock)

		result, err := pipeline.ProcessTurn(context.Background(), turn)
		require.NoError(t, err)
		assert.Empty(t, result.AssessmentIDs)
		require.NotEmpty(t, result.Token)

		record, err := correlations.GetByToken(context.Background(), result.Token)
		require.NoError(t, err)
		assert.Empty(t, record.AssessmentIDs)
	})

	t.Run("one failing merge does not lose the others", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{extractionAnswer}}
		pipeline, assessments, evidence, correlations := newTestPipeline(t, mock)
		pipeline.merger = &failingMerger{
			inner:   NewMergeService(assessments, evidence, nil),
			failFor: "technical_confidence",
		}

		result, err := pipeline.ProcessTurn(context.Background(), turn)
		require.NoError(t, err)
		require.Len(t, result.AssessmentIDs, 1)

		record, err := correlations.GetByToken(context.Background(), result.Token)
		require.NoError(t, err)
		assert.Equal(t, result.AssessmentIDs, record.AssessmentIDs)
	})

	t.Run("correlation store failure surfaces", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{extractionAnswer}}
		pipeline, _, _, correlations := newTestPipeline(t, mock)
		correlations.createErr = errors.New("db down")

		_, err := pipeline.ProcessTurn(context.Background(), turn)
		assert.ErrorContains(t, err, "recording turn correlation")
	})
}
