package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/aperturehq/aperture/internal/models"
)

// TurnProcessor runs the per-turn pipeline. Implemented by service.TurnPipeline.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, turn models.Turn) (*models.TurnResult, error)
}

// TurnExtractionWorker runs the detached turn pipeline as a River job. Jobs
// are inserted with MaxAttempts 1 and the worker returns nil on pipeline
// failure, so a failed turn is logged and dropped, never retried.
type TurnExtractionWorker struct {
	river.WorkerDefaults[TurnExtractionArgs]

	pipeline TurnProcessor
	limiter  *rate.Limiter
}

// NewTurnExtractionWorker creates the worker. limiter throttles the provider
// calls the pipeline makes; nil disables throttling.
func NewTurnExtractionWorker(pipeline TurnProcessor, limiter *rate.Limiter) *TurnExtractionWorker {
	return &TurnExtractionWorker{
		pipeline: pipeline,
		limiter:  limiter,
	}
}

// Timeout bounds one pipeline run, LLM call included.
func (w *TurnExtractionWorker) Timeout(*river.Job[TurnExtractionArgs]) time.Duration {
	return 2 * time.Minute
}

// Work processes one turn.
func (w *TurnExtractionWorker) Work(ctx context.Context, job *river.Job[TurnExtractionArgs]) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			slog.ErrorContext(ctx, "rate limiter wait aborted, dropping turn",
				"job_id", job.ID, "user_id", job.Args.UserID, "error", err)

			return nil
		}
	}

	result, err := w.pipeline.ProcessTurn(ctx, job.Args.Turn())
	if err != nil {
		slog.ErrorContext(ctx, "turn pipeline failed, dropping turn",
			"job_id", job.ID,
			"user_id", job.Args.UserID,
			"conversation_id", job.Args.ConversationID,
			"error", err)

		return nil
	}

	slog.InfoContext(ctx, "turn processed",
		"job_id", job.ID,
		"user_id", job.Args.UserID,
		"assessments", len(result.AssessmentIDs),
		"token", result.Token)

	return nil
}
