package jobs

import (
	"context"
)

// JobInserter is an interface for inserting jobs into the queue.
// This allows handlers to enqueue jobs without knowing about River directly.
type JobInserter interface {
	// InsertTurnExtraction enqueues a turn extraction job.
	// Returns an error if the job could not be inserted.
	InsertTurnExtraction(ctx context.Context, args TurnExtractionArgs) error
}
