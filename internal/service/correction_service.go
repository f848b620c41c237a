package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/llm"
	"github.com/aperturehq/aperture/internal/models"
	"github.com/aperturehq/aperture/internal/observability"
)

const correctionSystemPrompt = `You are re-evaluating an assessment of a user because the user said it is
wrong. Take the correction at face value: the user knows themselves better
than the system does.

You are given the current assessment, its recent evidence, and the user's
correction. Produce a revised assessment.

Respond with a JSON object of this exact shape:
{
  "value_type": "score",
  "value": 0.4,
  "reasoning": "revised reasoning that accounts for the correction",
  "confidence": 0.5
}

"value" must be a number for "score" and a string for "tag", "range" and
"text". Keep the same value_type as the current assessment unless the
correction clearly demands another. "confidence" is between 0 and 1 and
should reflect the uncertainty the correction introduced.`

// correctionResponse is the wire shape of the correction LLM answer.
type correctionResponse struct {
	ValueType  string          `json:"value_type"`
	Value      json.RawMessage `json:"value"`
	Reasoning  string          `json:"reasoning"`
	Confidence float64         `json:"confidence"`
}

// evidenceForPrompt caps how many recent evidence rows the correction prompt carries.
const evidenceForPrompt = 5

// CorrectionService reconciles an assessment with a user correction. The
// revised row always has user_corrected set; a correction is never silently
// dropped.
type CorrectionService struct {
	llm         llm.Client
	assessments AssessmentStore
	evidence    EvidenceStore
	penalty     float64
	metrics     observability.EngineMetrics
}

// NewCorrectionService creates the correction service. penalty is subtracted
// from the stored confidence when the LLM path fails; metrics may be nil.
func NewCorrectionService(client llm.Client, assessments AssessmentStore, evidence EvidenceStore, penalty float64, metrics observability.EngineMetrics) *CorrectionService {
	return &CorrectionService{
		llm:         client,
		assessments: assessments,
		evidence:    evidence,
		penalty:     penalty,
		metrics:     metrics,
	}
}

// Correct applies a user correction to an assessment. The LLM re-analyzes the
// assessment against the correction; if that call fails or returns garbage, a
// deterministic fallback lowers confidence by the configured penalty, applies
// a user-supplied corrected value when present, and annotates the reasoning.
// Either way one evidence row is appended for the correction event.
func (s *CorrectionService) Correct(ctx context.Context, assessmentID uuid.UUID, correction models.Correction) (*models.Assessment, error) {
	if !correction.Kind.Valid() {
		return nil, apperrors.NewValidationError("kind", fmt.Sprintf("unknown correction kind %q", correction.Kind))
	}

	current, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	trail, err := s.evidence.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("loading evidence for correction: %w", err)
	}

	upd, outcome := s.reviseWithLLM(ctx, current, trail, correction)
	if upd == nil {
		upd = s.fallbackRevision(current, correction)
		outcome = "fallback"
	}

	corrected := true
	upd.UserCorrected = &corrected

	updated, err := s.assessments.Update(ctx, assessmentID, upd)
	if err != nil {
		return nil, fmt.Errorf("storing corrected assessment: %w", err)
	}

	_, err = s.evidence.Append(ctx, &models.Evidence{
		AssessmentID:           assessmentID,
		UserMessage:            correctionUserMessage(correction),
		Context:                "correction: " + string(correction.Kind),
		ConfidenceContribution: updated.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("appending correction evidence: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCorrection(ctx, outcome)
	}

	return updated, nil
}

// reviseWithLLM asks the model for a revised assessment. Returns nil when the
// call or its output is unusable, which sends the caller to the fallback.
func (s *CorrectionService) reviseWithLLM(ctx context.Context, current *models.Assessment, trail []models.Evidence, correction models.Correction) (*models.AssessmentUpdate, string) {
	raw, err := s.llm.Complete(ctx, llm.Request{
		SystemPrompt: correctionSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildCorrectionContent(current, trail, correction)},
		},
		Temperature: 0.2,
		MaxTokens:   512,
		ForceJSON:   true,
	})
	if err != nil {
		slog.WarnContext(ctx, "correction call failed, using fallback",
			"assessment_id", current.ID, "error", err)

		return nil, ""
	}

	var resp correctionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		slog.WarnContext(ctx, "correction returned malformed JSON, using fallback",
			"assessment_id", current.ID, "error", err)

		return nil, ""
	}

	if resp.Confidence < 0 || resp.Confidence > 1 {
		slog.WarnContext(ctx, "correction returned out-of-range confidence, using fallback",
			"assessment_id", current.ID, "confidence", resp.Confidence)

		return nil, ""
	}

	value, err := parseValue(models.ValueType(resp.ValueType), resp.Value)
	if err != nil {
		slog.WarnContext(ctx, "correction returned invalid value, using fallback",
			"assessment_id", current.ID, "error", err)

		return nil, ""
	}

	return &models.AssessmentUpdate{
		Value:      &value,
		Reasoning:  &resp.Reasoning,
		Confidence: &resp.Confidence,
	}, "llm"
}

// fallbackRevision is the deterministic path: drop confidence by the penalty
// (floored at 0), apply a user-supplied value when present, and annotate the
// reasoning so the trail shows the correction happened.
func (s *CorrectionService) fallbackRevision(current *models.Assessment, correction models.Correction) *models.AssessmentUpdate {
	confidence := current.Confidence - s.penalty
	if confidence < 0 {
		confidence = 0
	}

	reasoning := current.Reasoning + " (user corrected this assessment: " + string(correction.Kind) + ")"

	upd := &models.AssessmentUpdate{
		Reasoning:  &reasoning,
		Confidence: &confidence,
	}

	if correction.CorrectedValue != nil {
		upd.Value = correction.CorrectedValue
	}

	return upd
}

// buildCorrectionContent renders the assessment, recent evidence and the
// correction for the prompt.
func buildCorrectionContent(current *models.Assessment, trail []models.Evidence, correction models.Correction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current assessment of element %q:\n", current.Element)
	fmt.Fprintf(&b, "- value (%s): %s\n", current.Value.Type, current.Value)
	fmt.Fprintf(&b, "- reasoning: %s\n", current.Reasoning)
	fmt.Fprintf(&b, "- confidence: %.2f\n", current.Confidence)
	fmt.Fprintf(&b, "- observations: %d\n", current.ObservationCount)

	if len(trail) > evidenceForPrompt {
		trail = trail[len(trail)-evidenceForPrompt:]
	}

	if len(trail) > 0 {
		b.WriteString("\nRecent evidence:\n")
		for _, ev := range trail {
			fmt.Fprintf(&b, "- %s\n", ev.UserMessage)
		}
	}

	fmt.Fprintf(&b, "\nUser correction (%s):\n", correction.Kind)
	if correction.CorrectedValue != nil {
		fmt.Fprintf(&b, "- corrected value (%s): %s\n", correction.CorrectedValue.Type, *correction.CorrectedValue)
	}
	if correction.Explanation != "" {
		fmt.Fprintf(&b, "- explanation: %s\n", correction.Explanation)
	}

	return b.String()
}

// correctionUserMessage is what lands in the evidence row's user_message for
// a correction event.
func correctionUserMessage(correction models.Correction) string {
	if correction.Explanation != "" {
		return correction.Explanation
	}

	return "user reported: " + string(correction.Kind)
}
