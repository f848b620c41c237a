package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/embeddings"
	"github.com/aperturehq/aperture/internal/llm"
	"github.com/aperturehq/aperture/internal/models"
)

func suggestionAnswer(name string) string {
	return `{
		"name": "` + name + `",
		"description": "d",
		"value_proposition": "v",
		"elements": [
			{"name": "` + name + `", "description": "d", "value_type": "score", "extraction_hint": "h"},
			{"name": "companion_element", "description": "d", "value_type": "tag", "extraction_hint": "h"}
		],
		"example_use_cases": ["u"],
		"confidence": 0.7
	}`
}

func TestDiscoveryService_DiscoverPatterns(t *testing.T) {
	stats := []models.ElementStats{
		{Element: "debugging_patience", DistinctUserCount: 40, TotalObservations: 200, MeanConfidence: 0.8, RepresentativeValues: []string{"0.3", "0.5"}},
		{Element: "api_fluency", DistinctUserCount: 30, TotalObservations: 90, MeanConfidence: 0.7},
		{Element: "rare_element", DistinctUserCount: 2, TotalObservations: 4, MeanConfidence: 0.9},
	}

	t.Run("filters by user count and occurrence rate", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{
			suggestionAnswer("debugging_patience"),
			suggestionAnswer("api_fluency"),
		}}
		svc := NewDiscoveryService(mock, nil, nil)

		suggestions, err := svc.DiscoverPatterns(context.Background(), stats, 100, 10, 0.2)
		require.NoError(t, err)
		require.Len(t, suggestions, 2)

		assert.Equal(t, "debugging_patience", suggestions[0].SourceElement)
		assert.Equal(t, 40, suggestions[0].DistinctUserCount)
		assert.InDelta(t, 0.4, suggestions[0].OccurrenceRate, 1e-9)

		assert.Equal(t, "api_fluency", suggestions[1].SourceElement)
		assert.InDelta(t, 0.3, suggestions[1].OccurrenceRate, 1e-9)

		// rare_element never reaches the LLM.
		assert.Len(t, mock.Requests, 2)
	})

	t.Run("one failing element does not sink the run", func(t *testing.T) {
		mock := &llm.MockClient{Responses: []string{
			"not json",
			suggestionAnswer("api_fluency"),
		}}
		svc := NewDiscoveryService(mock, nil, nil)

		suggestions, err := svc.DiscoverPatterns(context.Background(), stats, 100, 10, 0.2)
		require.NoError(t, err)
		require.Len(t, suggestions, 1)
		assert.Equal(t, "api_fluency", suggestions[0].SourceElement)
	})

	t.Run("nothing survives the filter", func(t *testing.T) {
		svc := NewDiscoveryService(&llm.MockClient{}, nil, nil)

		suggestions, err := svc.DiscoverPatterns(context.Background(), stats, 1000, 100, 0.5)
		require.NoError(t, err)
		assert.Empty(t, suggestions)
	})

	t.Run("non-positive population is rejected", func(t *testing.T) {
		svc := NewDiscoveryService(&llm.MockClient{}, nil, nil)

		_, err := svc.DiscoverPatterns(context.Background(), stats, 0, 10, 0.2)
		assert.ErrorContains(t, err, "population")
	})

	t.Run("similar elements are reported as related", func(t *testing.T) {
		embedder := embeddings.NewMockClient()
		embedder.Vectors = map[string][]float32{
			elementDescriptor(stats[0]): {1, 0},
			elementDescriptor(stats[1]): {0.99, 0.14},
		}

		mock := &llm.MockClient{Responses: []string{
			suggestionAnswer("debugging_patience"),
			suggestionAnswer("api_fluency"),
		}}
		svc := NewDiscoveryService(mock, embedder, nil)

		suggestions, err := svc.DiscoverPatterns(context.Background(), stats, 100, 10, 0.2)
		require.NoError(t, err)
		require.Len(t, suggestions, 2)
		assert.Equal(t, []string{"api_fluency"}, suggestions[0].RelatedElements)
		assert.Equal(t, []string{"debugging_patience"}, suggestions[1].RelatedElements)
	})

	t.Run("grouping failure leaves related lists empty", func(t *testing.T) {
		embedder := embeddings.NewMockClient()
		embedder.Err = assert.AnError

		mock := &llm.MockClient{Responses: []string{
			suggestionAnswer("debugging_patience"),
			suggestionAnswer("api_fluency"),
		}}
		svc := NewDiscoveryService(mock, embedder, nil)

		suggestions, err := svc.DiscoverPatterns(context.Background(), stats, 100, 10, 0.2)
		require.NoError(t, err)
		require.Len(t, suggestions, 2)
		assert.Empty(t, suggestions[0].RelatedElements)
		assert.Empty(t, suggestions[1].RelatedElements)
	})
}
