package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/llm"
	"github.com/aperturehq/aperture/internal/models"
)

func TestExtractionService_ExtractDrafts(t *testing.T) {
	turn := models.Turn{
		UserID:      "user-1",
		UserMessage: "I keep getting a nil pointer panic and I have no idea why",
	}

	t.Run("valid answer becomes drafts", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{`{
			"assessments": [
				{
					"element": "technical_confidence",
					"value_type": "score",
					"value": 0.3,
					"reasoning": "stuck on a common runtime error",
					"confidence": 0.8,
					"evidence": "no idea why"
				},
				{
					"element": "emotional_state",
					"value_type": "tag",
					"value": "frustrated",
					"reasoning": "repeated failure language",
					"confidence": 0.7,
					"evidence": "I keep getting"
				}
			]
		}`}}

		svc := NewExtractionService(mock, "gpt-4o-mini", 0.2, 5, nil)
		drafts := svc.ExtractDrafts(context.Background(), turn)

		require.Len(t, drafts, 2)
		assert.Equal(t, "technical_confidence", drafts[0].Element)
		assert.Equal(t, models.ValueTypeScore, drafts[0].Value.Type)
		assert.InDelta(t, 0.3, drafts[0].Value.Score, 1e-9)
		assert.InDelta(t, 0.8, drafts[0].Confidence, 1e-9)
		assert.Equal(t, "no idea why", drafts[0].EvidenceExcerpt)
		assert.Equal(t, "gpt-4o-mini", drafts[0].Metadata["extraction_model"])

		assert.Equal(t, "emotional_state", drafts[1].Element)
		assert.Equal(t, models.ValueTypeTag, drafts[1].Value.Type)
		assert.Equal(t, "frustrated", drafts[1].Value.Label)

		require.Len(t, mock.Requests, 1)
		assert.True(t, mock.Requests[0].ForceJSON)
		assert.Contains(t, mock.Requests[0].Messages[0].Content, turn.UserMessage)
	})

	t.Run("provider failure degrades to zero drafts", func(t *testing.T) {
		mock := &llm.MockClient{Err: errors.New("rate limited")}
		svc := NewExtractionService(mock, "gpt-4o-mini", 0.2, 5, nil)

		assert.Nil(t, svc.ExtractDrafts(context.Background(), turn))
	})

	t.Run("malformed JSON degrades to zero drafts", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{"I cannot answer in JSON, sorry"}}
		svc := NewExtractionService(mock, "gpt-4o-mini", 0.2, 5, nil)

		assert.Nil(t, svc.ExtractDrafts(context.Background(), turn))
	})

	t.Run("invalid items are skipped, valid ones kept", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{`{
			"assessments": [
				{"element": "", "value_type": "score", "value": 0.5, "confidence": 0.5},
				{"element": "a", "value_type": "score", "value": 1.4, "confidence": 0.5},
				{"element": "b", "value_type": "score", "value": 0.5, "confidence": 1.5},
				{"element": "c", "value_type": "mood", "value": "happy", "confidence": 0.5},
				{"element": "emotional_state", "value_type": "tag", "value": "curious", "confidence": 0.6}
			]
		}`}}

		svc := NewExtractionService(mock, "gpt-4o-mini", 0.2, 5, nil)
		drafts := svc.ExtractDrafts(context.Background(), turn)

		require.Len(t, drafts, 1)
		assert.Equal(t, "emotional_state", drafts[0].Element)
	})

	t.Run("empty assessment list is a valid answer", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{`{"assessments": []}`}}
		svc := NewExtractionService(mock, "gpt-4o-mini", 0.2, 5, nil)

		assert.Empty(t, svc.ExtractDrafts(context.Background(), turn))
	})
}

func TestExtractionService_buildUserContent(t *testing.T) {
	mock := &llm.MockClient{}
	svc := NewExtractionService(mock, "gpt-4o-mini", 0.2, 2, nil)

	turn := models.Turn{
		UserID:      "user-1",
		UserMessage: "current question",
		History: []models.ConversationMessage{
			{Role: "user", Content: "oldest"},
			{Role: "assistant", Content: "middle"},
			{Role: "user", Content: "newest"},
		},
		AssistantResponse: strings.Repeat("y", 500),
	}

	content := svc.buildUserContent(turn)

	// History is capped to the most recent maxHistory messages.
	assert.NotContains(t, content, "oldest")
	assert.Contains(t, content, "middle")
	assert.Contains(t, content, "newest")
	assert.Contains(t, content, "current question")

	// Assistant context is truncated.
	assert.Contains(t, content, strings.Repeat("y", assistantContextChars))
	assert.NotContains(t, content, strings.Repeat("y", assistantContextChars+1))
}
