package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aperturehq/aperture/internal/models"
)

type mockTurnProcessor struct {
	processFunc func(ctx context.Context, turn models.Turn) (*models.TurnResult, error)

	turns []models.Turn
}

func (m *mockTurnProcessor) ProcessTurn(ctx context.Context, turn models.Turn) (*models.TurnResult, error) {
	m.turns = append(m.turns, turn)

	if m.processFunc != nil {
		return m.processFunc(ctx, turn)
	}

	return &models.TurnResult{Token: "tok"}, nil
}

func extractionJob(args TurnExtractionArgs) *river.Job[TurnExtractionArgs] {
	return &river.Job[TurnExtractionArgs]{
		JobRow: &rivertype.JobRow{ID: 1},
		Args:   args,
	}
}

func TestTurnExtractionWorker_Work(t *testing.T) {
	args := TurnExtractionArgs{
		UserID:         "user-1",
		ConversationID: "conv-1",
		MessageID:      "msg-1",
		UserMessage:    "hello",
	}

	t.Run("passes the turn to the pipeline", func(t *testing.T) {
		processor := &mockTurnProcessor{}
		worker := NewTurnExtractionWorker(processor, nil)

		err := worker.Work(context.Background(), extractionJob(args))
		require.NoError(t, err)
		require.Len(t, processor.turns, 1)
		assert.Equal(t, args.Turn(), processor.turns[0])
	})

	t.Run("pipeline failure is swallowed so the job is never retried", func(t *testing.T) {
		processor := &mockTurnProcessor{
			processFunc: func(_ context.Context, _ models.Turn) (*models.TurnResult, error) {
				return nil, errors.New("pipeline blew up")
			},
		}
		worker := NewTurnExtractionWorker(processor, nil)

		assert.NoError(t, worker.Work(context.Background(), extractionJob(args)))
	})

	t.Run("cancelled context drops the turn before the pipeline runs", func(t *testing.T) {
		processor := &mockTurnProcessor{}
		worker := NewTurnExtractionWorker(processor, rate.NewLimiter(rate.Limit(1), 1))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.NoError(t, worker.Work(ctx, extractionJob(args)))
		assert.Empty(t, processor.turns)
	})
}

func TestTurnExtractionArgs_Kind(t *testing.T) {
	assert.Equal(t, "turn_extraction", TurnExtractionArgs{}.Kind())
}
