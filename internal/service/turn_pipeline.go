package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/models"
	"github.com/aperturehq/aperture/internal/observability"
)

// DraftExtractor produces assessment drafts from a turn.
type DraftExtractor interface {
	ExtractDrafts(ctx context.Context, turn models.Turn) []models.AssessmentDraft
}

// DraftMerger folds one draft into the live assessment table.
type DraftMerger interface {
	MergeDraft(ctx context.Context, turn models.Turn, draft models.AssessmentDraft) (*models.Assessment, error)
}

// TurnRecorder records which assessments a delivered response produced.
type TurnRecorder interface {
	Record(ctx context.Context, conversationID, messageID string, assessmentIDs []uuid.UUID) (*models.ResponseCorrelation, error)
}

// TurnPipeline runs the full per-turn flow: extract drafts, merge each one,
// then record the response correlation. The proxy has already answered its
// caller by the time this runs, so nothing here sits on a request path.
type TurnPipeline struct {
	extractor  DraftExtractor
	merger     DraftMerger
	correlator TurnRecorder
	metrics    observability.EngineMetrics
}

// NewTurnPipeline creates the pipeline. metrics may be nil.
func NewTurnPipeline(extractor DraftExtractor, merger DraftMerger, correlator TurnRecorder, metrics observability.EngineMetrics) *TurnPipeline {
	return &TurnPipeline{
		extractor:  extractor,
		merger:     merger,
		correlator: correlator,
		metrics:    metrics,
	}
}

// ProcessTurn processes one turn synchronously. Per-draft merge failures are
// logged and skipped so one bad element cannot lose the rest; the correlation
// is recorded for whatever succeeded, including the empty set.
func (p *TurnPipeline) ProcessTurn(ctx context.Context, turn models.Turn) (*models.TurnResult, error) {
	if turn.UserID == "" {
		return nil, errors.New("turn is missing user_id")
	}

	drafts := p.extractor.ExtractDrafts(ctx, turn)

	assessmentIDs := make([]uuid.UUID, 0, len(drafts))

	for _, draft := range drafts {
		merged, err := p.merger.MergeDraft(ctx, turn, draft)
		if err != nil {
			slog.ErrorContext(ctx, "merge failed for draft",
				"user_id", turn.UserID, "element", draft.Element, "error", err)

			continue
		}

		assessmentIDs = append(assessmentIDs, merged.ID)
	}

	result := &models.TurnResult{AssessmentIDs: assessmentIDs}

	correlation, err := p.correlator.Record(ctx, turn.ConversationID, turn.MessageID, assessmentIDs)
	if err != nil {
		p.recordOutcome(ctx, "failed")

		return result, fmt.Errorf("recording turn correlation: %w", err)
	}

	result.Token = correlation.Token

	if len(assessmentIDs) == 0 {
		p.recordOutcome(ctx, "empty")
	} else {
		p.recordOutcome(ctx, "completed")
	}

	return result, nil
}

func (p *TurnPipeline) recordOutcome(ctx context.Context, outcome string) {
	if p.metrics != nil {
		p.metrics.RecordTurn(ctx, outcome)
	}
}
