package jobs

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

// RiverJobInserter implements JobInserter using the River client.
type RiverJobInserter struct {
	client *river.Client[pgx.Tx]
}

// NewRiverJobInserter creates a new River-based job inserter.
func NewRiverJobInserter(client *river.Client[pgx.Tx]) *RiverJobInserter {
	return &RiverJobInserter{client: client}
}

// InsertTurnExtraction enqueues a turn extraction job on the extraction
// queue. MaxAttempts is 1: the engine never retries a failed pipeline run,
// it logs and drops it.
func (r *RiverJobInserter) InsertTurnExtraction(ctx context.Context, args TurnExtractionArgs) error {
	_, err := r.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       QueueExtraction,
		MaxAttempts: 1,
	})
	return err
}
