package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/embeddings"
	"github.com/aperturehq/aperture/internal/llm"
	"github.com/aperturehq/aperture/internal/models"
	"github.com/aperturehq/aperture/internal/observability"
)

const (
	// templateMatchThreshold is the similarity at which the best template is
	// returned instead of generating a custom construct.
	templateMatchThreshold = 0.75
	// templateIncludeThreshold is the similarity at which a template appears
	// in the candidate list at all.
	templateIncludeThreshold = 0.6

	// requestCacheSize bounds the LRU cache of request-description embeddings.
	requestCacheSize = 256
)

const constructGenerationSystemPrompt = `You design measurement constructs: small sets of user elements an
assessment engine extracts from conversations.

Given a use-case description, design one construct with 2 to 4 elements.

Respond with a JSON object of this exact shape:
{
  "name": "snake_case_name",
  "description": "what this construct measures and for whom",
  "use_cases": ["..."],
  "elements": [
    {
      "name": "snake_case_element_name",
      "description": "what this element captures",
      "value_type": "score",
      "extraction_hint": "what conversational evidence reveals it",
      "possible_values": ["only for range elements"]
    }
  ],
  "confidence": 0.8
}

"value_type" must be one of "score", "tag", "range", "text". Every element
needs an extraction_hint. "confidence" is how well the construct fits the
described use case, between 0 and 1.`

// generatedConstruct is the wire shape of the construct generation answer.
type generatedConstruct struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	UseCases    []string                  `json:"use_cases"`
	Elements    []models.ConstructElement `json:"elements"`
	Confidence  float64                   `json:"confidence"`
}

// ConstructService matches natural-language descriptions against the template
// catalog and synthesizes custom constructs when nothing fits.
type ConstructService struct {
	embedder       embeddings.Client
	llm            llm.Client
	embeddingModel string
	templates      []models.ConstructTemplate
	templateStore  TemplateEmbeddingStore // optional persistent cache

	requestCache *lru.Cache[string, []float32]
	requestGroup singleflight.Group

	metrics observability.EngineMetrics
}

// NewConstructService creates the construct service. templateStore and
// metrics may be nil; without a store the catalog is re-embedded per process.
func NewConstructService(embedder embeddings.Client, llmClient llm.Client, embeddingModel string, templateStore TemplateEmbeddingStore, metrics observability.EngineMetrics) (*ConstructService, error) {
	cache, err := lru.New[string, []float32](requestCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating request embedding cache: %w", err)
	}

	return &ConstructService{
		embedder:       embedder,
		llm:            llmClient,
		embeddingModel: embeddingModel,
		templates:      DefaultTemplates(),
		templateStore:  templateStore,
		requestCache:   cache,
		metrics:        metrics,
	}, nil
}

// Templates lists the catalog, optionally filtered by a search query matched
// against name and description, and by a use-case substring.
func (s *ConstructService) Templates(search, useCase string) []models.ConstructTemplate {
	search = strings.ToLower(strings.TrimSpace(search))
	useCase = strings.ToLower(strings.TrimSpace(useCase))

	out := make([]models.ConstructTemplate, 0, len(s.templates))

	for _, t := range s.templates {
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Name), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}

		if useCase != "" && !matchesUseCase(t.UseCases, useCase) {
			continue
		}

		out = append(out, t)
	}

	return out
}

func matchesUseCase(useCases []string, query string) bool {
	for _, uc := range useCases {
		if strings.Contains(strings.ToLower(uc), query) {
			return true
		}
	}

	return false
}

// Match resolves a natural-language description to either the best-fitting
// catalog template (similarity >= 0.75) or a generated custom construct.
// Templates scoring >= 0.6 are returned as candidates in both cases, best
// first. Runs synchronously on a request path, so provider failures surface
// to the caller.
func (s *ConstructService) Match(ctx context.Context, description string) (*models.ConstructMatch, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperrors.NewValidationError("description", "description must not be empty")
	}

	query, err := s.requestEmbedding(ctx, description)
	if err != nil {
		return nil, apperrors.NewProviderError("embeddings", "match request", err)
	}

	vectors, err := s.templateEmbeddings(ctx)
	if err != nil {
		return nil, apperrors.NewProviderError("embeddings", "template catalog", err)
	}

	ranked := embeddings.FindSimilar(query, vectors, 0, templateIncludeThreshold)

	candidates := make([]models.TemplateScore, 0, len(ranked))
	for _, m := range ranked {
		candidates = append(candidates, models.TemplateScore{
			Template:   s.templates[m.Index],
			Similarity: m.Similarity,
		})
	}

	if len(candidates) > 0 && candidates[0].Similarity >= templateMatchThreshold {
		return &models.ConstructMatch{
			MatchType: models.MatchTypeTemplate,
			Templates: candidates,
			Message:   fmt.Sprintf("template %q matches the description", candidates[0].Template.Name),
		}, nil
	}

	custom, err := s.generateCustom(ctx, description)
	if err != nil {
		return nil, err
	}

	return &models.ConstructMatch{
		MatchType: models.MatchTypeCustom,
		Templates: candidates,
		Custom:    custom,
		Message:   "no template fit well enough; generated a custom construct",
	}, nil
}

// requestEmbedding embeds a request description through the LRU cache, with
// singleflight collapsing concurrent identical requests.
func (s *ConstructService) requestEmbedding(ctx context.Context, description string) ([]float32, error) {
	if vec, ok := s.requestCache.Get(description); ok {
		s.recordCacheLookup(ctx, "request_embedding", true)

		return vec, nil
	}

	s.recordCacheLookup(ctx, "request_embedding", false)

	result, err, _ := s.requestGroup.Do(description, func() (any, error) {
		vec, err := s.embedder.GetEmbedding(ctx, description)
		if err != nil {
			return nil, err
		}

		s.requestCache.Add(description, vec)

		return vec, nil
	})
	if err != nil {
		return nil, err
	}

	vec, ok := result.([]float32)
	if !ok {
		return nil, errors.New("unexpected type from singleflight")
	}

	return vec, nil
}

// templateEmbeddings returns the catalog embeddings in template order,
// reading through the persistent cache and batch-embedding whatever is
// missing. Cache write failures are logged, not fatal.
func (s *ConstructService) templateEmbeddings(ctx context.Context) ([][]float32, error) {
	vectors := make([][]float32, len(s.templates))

	var (
		missingIdx   []int
		missingTexts []string
	)

	for i, t := range s.templates {
		if s.templateStore != nil {
			vec, err := s.templateStore.Get(ctx, t.Name, s.embeddingModel)
			if err == nil {
				s.recordCacheLookup(ctx, "template_embedding", true)
				vectors[i] = vec

				continue
			}

			if !errors.Is(err, apperrors.ErrNotFound) {
				slog.WarnContext(ctx, "template embedding cache read failed",
					"template", t.Name, "error", err)
			}
		}

		s.recordCacheLookup(ctx, "template_embedding", false)
		missingIdx = append(missingIdx, i)
		missingTexts = append(missingTexts, templateText(t))
	}

	if len(missingIdx) == 0 {
		return vectors, nil
	}

	embedded, err := s.embedder.GetEmbeddings(ctx, missingTexts)
	if err != nil {
		return nil, err
	}

	for n, i := range missingIdx {
		vectors[i] = embedded[n]

		if s.templateStore != nil {
			if err := s.templateStore.Upsert(ctx, s.templates[i].Name, s.embeddingModel, embedded[n]); err != nil {
				slog.WarnContext(ctx, "template embedding cache write failed",
					"template", s.templates[i].Name, "error", err)
			}
		}
	}

	return vectors, nil
}

// templateText is the text a template is embedded from.
func templateText(t models.ConstructTemplate) string {
	parts := []string{t.Name, t.Description}
	parts = append(parts, t.UseCases...)
	for _, el := range t.Elements {
		parts = append(parts, el.Name, el.Description)
	}

	return strings.Join(parts, " ")
}

// generateCustom asks the LLM to synthesize a construct and gates the answer
// through the validator.
func (s *ConstructService) generateCustom(ctx context.Context, description string) (*models.CustomConstruct, error) {
	raw, err := s.llm.Complete(ctx, llm.Request{
		SystemPrompt: constructGenerationSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Use case: " + description},
		},
		Temperature: 0.4,
		MaxTokens:   1024,
		ForceJSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var gen generatedConstruct
	if err := json.Unmarshal([]byte(raw), &gen); err != nil {
		return nil, apperrors.NewProviderError("llm", "construct generation", fmt.Errorf("malformed JSON: %w", err))
	}

	custom := &models.CustomConstruct{
		ConstructSchema: models.ConstructSchema{
			Name:        gen.Name,
			Description: gen.Description,
			UseCases:    gen.UseCases,
			Elements:    gen.Elements,
		},
		GeneratedFrom: description,
		Confidence:    gen.Confidence,
	}

	result := ValidateConstruct(custom.ConstructSchema)
	if !result.Valid {
		return nil, apperrors.NewProviderError("llm", "construct generation",
			fmt.Errorf("generated construct failed validation: %s", strings.Join(result.Issues, "; ")))
	}

	return custom, nil
}

func (s *ConstructService) recordCacheLookup(ctx context.Context, cache string, hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(ctx, cache, hit)
	}
}
