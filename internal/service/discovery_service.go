package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aperturehq/aperture/internal/embeddings"
	"github.com/aperturehq/aperture/internal/llm"
	"github.com/aperturehq/aperture/internal/models"
	"github.com/aperturehq/aperture/internal/observability"
)

// relatedElementThreshold is the similarity at which two discovered elements
// are reported as related.
const relatedElementThreshold = 0.75

const discoverySystemPrompt = `Operators of an assessment engine are reviewing elements that keep showing
up across their user population, looking for patterns worth promoting into
reusable constructs.

Given one recurring element with its population statistics and sample values,
propose a construct built around it.

Respond with a JSON object of this exact shape:
{
  "name": "snake_case_name",
  "description": "what this construct measures",
  "value_proposition": "why an operator would enable it",
  "elements": [
    {
      "name": "snake_case_element_name",
      "description": "what this element captures",
      "value_type": "score",
      "extraction_hint": "what conversational evidence reveals it"
    }
  ],
  "example_use_cases": ["..."],
  "confidence": 0.7
}

Include the recurring element itself plus 2 to 4 complementary elements.
"value_type" must be one of "score", "tag", "range", "text". "confidence"
is how strongly the statistics support promoting this pattern, between 0
and 1.`

// discoveredSuggestion is the wire shape of the discovery LLM answer.
type discoveredSuggestion struct {
	Name             string                    `json:"name"`
	Description      string                    `json:"description"`
	ValueProposition string                    `json:"value_proposition"`
	Elements         []models.ConstructElement `json:"elements"`
	ExampleUseCases  []string                  `json:"example_use_cases"`
	Confidence       float64                   `json:"confidence"`
}

// DiscoveryService finds cross-population patterns in element statistics and
// turns them into construct suggestions.
type DiscoveryService struct {
	llm      llm.Client
	embedder embeddings.Client
	metrics  observability.EngineMetrics
}

// NewDiscoveryService creates the discovery service. metrics may be nil.
func NewDiscoveryService(llmClient llm.Client, embedder embeddings.Client, metrics observability.EngineMetrics) *DiscoveryService {
	return &DiscoveryService{
		llm:      llmClient,
		embedder: embedder,
		metrics:  metrics,
	}
}

// DiscoverPatterns filters element statistics by population thresholds and
// asks the LLM for one suggestion per surviving element. A failed call skips
// that element only; a run returning a subset of suggestions is normal.
// Surviving elements are also grouped by embedding similarity so each
// suggestion names the related elements discovered in the same run.
func (s *DiscoveryService) DiscoverPatterns(ctx context.Context, stats []models.ElementStats, population, minUsers int, minOccurrenceRate float64) ([]models.ConstructSuggestion, error) {
	if population <= 0 {
		return nil, fmt.Errorf("population must be positive, got %d", population)
	}

	surviving := make([]models.ElementStats, 0, len(stats))

	for _, st := range stats {
		rate := float64(st.DistinctUserCount) / float64(population)
		if st.DistinctUserCount < minUsers || rate < minOccurrenceRate {
			s.recordOutcome(ctx, "filtered")

			continue
		}

		surviving = append(surviving, st)
	}

	if len(surviving) == 0 {
		return []models.ConstructSuggestion{}, nil
	}

	related := s.groupRelated(ctx, surviving)

	suggestions := make([]models.ConstructSuggestion, 0, len(surviving))

	for i, st := range surviving {
		suggestion, err := s.suggestForElement(ctx, st, population)
		if err != nil {
			slog.WarnContext(ctx, "discovery skipped element",
				"element", st.Element, "error", err)
			s.recordOutcome(ctx, "skipped")

			continue
		}

		suggestion.RelatedElements = related[i]
		suggestions = append(suggestions, *suggestion)
		s.recordOutcome(ctx, "suggested")
	}

	return suggestions, nil
}

// suggestForElement runs one LLM call for one surviving element.
func (s *DiscoveryService) suggestForElement(ctx context.Context, st models.ElementStats, population int) (*models.ConstructSuggestion, error) {
	rate := float64(st.DistinctUserCount) / float64(population)

	raw, err := s.llm.Complete(ctx, llm.Request{
		SystemPrompt: discoverySystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: statsContent(st, population, rate)},
		},
		Temperature: 0.4,
		MaxTokens:   1024,
		ForceJSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var gen discoveredSuggestion
	if err := json.Unmarshal([]byte(raw), &gen); err != nil {
		return nil, fmt.Errorf("malformed suggestion JSON: %w", err)
	}

	if gen.Name == "" || len(gen.Elements) == 0 {
		return nil, fmt.Errorf("suggestion is missing name or elements")
	}

	return &models.ConstructSuggestion{
		Name:              gen.Name,
		Description:       gen.Description,
		ValueProposition:  gen.ValueProposition,
		Elements:          gen.Elements,
		ExampleUseCases:   gen.ExampleUseCases,
		SourceElement:     st.Element,
		DistinctUserCount: st.DistinctUserCount,
		OccurrenceRate:    rate,
		Confidence:        gen.Confidence,
	}, nil
}

// groupRelated embeds a descriptor per surviving element and clusters them,
// returning for each element the names of the other elements in its cluster.
// Grouping is best-effort: on embedding failure every element gets an empty
// related list.
func (s *DiscoveryService) groupRelated(ctx context.Context, surviving []models.ElementStats) [][]string {
	related := make([][]string, len(surviving))

	if s.embedder == nil || len(surviving) < 2 {
		return related
	}

	texts := make([]string, len(surviving))
	for i, st := range surviving {
		texts[i] = elementDescriptor(st)
	}

	vectors, err := s.embedder.GetEmbeddings(ctx, texts)
	if err != nil {
		slog.WarnContext(ctx, "discovery element grouping failed", "error", err)

		return related
	}

	for _, cluster := range embeddings.Cluster(vectors, relatedElementThreshold) {
		if len(cluster) < 2 {
			continue
		}

		for _, i := range cluster {
			names := make([]string, 0, len(cluster)-1)
			for _, j := range cluster {
				if j != i {
					names = append(names, surviving[j].Element)
				}
			}
			related[i] = names
		}
	}

	return related
}

// elementDescriptor is the text an element is embedded from for grouping.
func elementDescriptor(st models.ElementStats) string {
	parts := []string{st.Element}
	parts = append(parts, st.RepresentativeValues...)

	return strings.Join(parts, " ")
}

// statsContent renders one element's population statistics for the prompt.
func statsContent(st models.ElementStats, population int, rate float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Recurring element: %s\n", st.Element)
	fmt.Fprintf(&b, "- seen for %d of %d users (%.0f%%)\n", st.DistinctUserCount, population, rate*100)
	fmt.Fprintf(&b, "- total observations: %d\n", st.TotalObservations)
	fmt.Fprintf(&b, "- mean confidence: %.2f\n", st.MeanConfidence)

	if len(st.RepresentativeValues) > 0 {
		fmt.Fprintf(&b, "- sample values: %s\n", strings.Join(st.RepresentativeValues, ", "))
	}

	return b.String()
}

func (s *DiscoveryService) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordDiscovery(ctx, outcome)
	}
}
