// Package service implements the engine: extraction, merge, correction,
// construct matching, pattern discovery and response correlation.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aperturehq/aperture/internal/llm"
	"github.com/aperturehq/aperture/internal/models"
	"github.com/aperturehq/aperture/internal/observability"
)

const extractionSystemPrompt = `You are an expert at assessing users from their conversation behavior.

Analyze the user's message and extract assessments for these elements:

- technical_confidence: how confident the user is with the technical domain
  they are asking about (value_type "score", a number between 0 and 1)
- emotional_state: the user's current emotional state, e.g. "frustrated",
  "curious", "satisfied", "confused" (value_type "tag")
- help_seeking_behavior: how the user asks for help, e.g. "direct_question",
  "exploratory", "troubleshooting", "venting" (value_type "tag")

Only include an element when the message carries real evidence for it. Omit
elements you cannot support; an empty list is a valid answer.

Respond with a JSON object of this exact shape:
{
  "assessments": [
    {
      "element": "technical_confidence",
      "value_type": "score",
      "value": 0.7,
      "reasoning": "why the message supports this",
      "confidence": 0.8,
      "evidence": "short quote from the user message"
    }
  ]
}

"value" must be a number for "score" elements and a string for "tag",
"range" and "text" elements. "confidence" is your certainty in the
assessment, between 0 and 1.`

// extractionResponse is the wire shape of the extraction LLM answer.
type extractionResponse struct {
	Assessments []extractedItem `json:"assessments"`
}

type extractedItem struct {
	Element    string          `json:"element"`
	ValueType  string          `json:"value_type"`
	Value      json.RawMessage `json:"value"`
	Reasoning  string          `json:"reasoning"`
	Confidence float64         `json:"confidence"`
	Evidence   string          `json:"evidence"`
}

// ExtractionService turns one conversation exchange into assessment drafts
// with a single LLM call.
type ExtractionService struct {
	llm         llm.Client
	model       string
	temperature float64
	maxHistory  int
	metrics     observability.EngineMetrics
}

// NewExtractionService creates the extraction service. maxHistory caps how
// many prior messages are included as context; metrics may be nil.
func NewExtractionService(client llm.Client, model string, temperature float64, maxHistory int, metrics observability.EngineMetrics) *ExtractionService {
	if maxHistory <= 0 {
		maxHistory = 5
	}

	return &ExtractionService{
		llm:         client,
		model:       model,
		temperature: temperature,
		maxHistory:  maxHistory,
		metrics:     metrics,
	}
}

// ExtractDrafts analyzes one turn and returns candidate drafts. Extraction
// sits off the critical path, so every failure mode (provider error,
// malformed JSON, invalid items) degrades to fewer or zero drafts instead of
// an error.
func (s *ExtractionService) ExtractDrafts(ctx context.Context, turn models.Turn) []models.AssessmentDraft {
	raw, err := s.llm.Complete(ctx, llm.Request{
		SystemPrompt: extractionSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: s.buildUserContent(turn)},
		},
		Temperature: s.temperature,
		MaxTokens:   1024,
		ForceJSON:   true,
	})
	if err != nil {
		slog.ErrorContext(ctx, "extraction call failed", "user_id", turn.UserID, "error", err)

		return nil
	}

	var resp extractionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		slog.ErrorContext(ctx, "extraction returned malformed JSON", "user_id", turn.UserID, "error", err)

		return nil
	}

	drafts := make([]models.AssessmentDraft, 0, len(resp.Assessments))

	for _, item := range resp.Assessments {
		draft, err := s.draftFromItem(item)
		if err != nil {
			slog.WarnContext(ctx, "skipping invalid extracted assessment",
				"user_id", turn.UserID, "element", item.Element, "error", err)

			continue
		}

		drafts = append(drafts, draft)
	}

	if s.metrics != nil {
		s.metrics.RecordDraftsExtracted(ctx, len(drafts))
	}

	return drafts
}

// buildUserContent assembles the prompt content: recent history, then the
// current exchange.
func (s *ExtractionService) buildUserContent(turn models.Turn) string {
	var b strings.Builder

	history := turn.History
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User message to assess:\n%s\n", turn.UserMessage)

	if turn.AssistantResponse != "" {
		fmt.Fprintf(&b, "\nAssistant replied:\n%s\n", firstChars(turn.AssistantResponse, assistantContextChars))
	}

	return b.String()
}

// draftFromItem validates one extracted item and converts it to a draft.
func (s *ExtractionService) draftFromItem(item extractedItem) (models.AssessmentDraft, error) {
	if item.Element == "" {
		return models.AssessmentDraft{}, fmt.Errorf("missing element name")
	}

	if item.Confidence < 0 || item.Confidence > 1 {
		return models.AssessmentDraft{}, fmt.Errorf("confidence %v outside [0, 1]", item.Confidence)
	}

	value, err := parseValue(models.ValueType(item.ValueType), item.Value)
	if err != nil {
		return models.AssessmentDraft{}, err
	}

	return models.AssessmentDraft{
		Element:         item.Element,
		Value:           value,
		Reasoning:       item.Reasoning,
		Confidence:      item.Confidence,
		EvidenceExcerpt: item.Evidence,
		Metadata:        map[string]string{"extraction_model": s.model},
	}, nil
}

// parseValue decodes a raw JSON value according to the declared value type.
func parseValue(valueType models.ValueType, raw json.RawMessage) (models.ValueData, error) {
	if !valueType.Valid() {
		return models.ValueData{}, fmt.Errorf("unknown value_type %q", valueType)
	}

	if valueType == models.ValueTypeScore {
		var score float64
		if err := json.Unmarshal(raw, &score); err != nil {
			return models.ValueData{}, fmt.Errorf("score value is not a number: %w", err)
		}

		return models.NewScoreValue(score)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.ValueData{}, fmt.Errorf("%s value is not a string: %w", valueType, err)
	}

	switch valueType {
	case models.ValueTypeTag:
		return models.NewTagValue(s)
	case models.ValueTypeRange:
		return models.NewRangeValue(s)
	default:
		return models.NewTextValue(s)
	}
}

// assistantContextChars caps how much of the assistant reply is carried as
// context, both in the prompt and in evidence rows.
const assistantContextChars = 200

// firstChars returns the first n runes of s.
func firstChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n])
}
