package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aperturehq/aperture/internal/models"
)

// EvidenceRepository handles data access for evidence rows. The table is
// append-only: there are no update or delete operations.
type EvidenceRepository struct {
	db *pgxpool.Pool
}

// NewEvidenceRepository creates a new evidence repository.
func NewEvidenceRepository(db *pgxpool.Pool) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Append inserts one evidence row for an assessment.
func (r *EvidenceRepository) Append(ctx context.Context, ev *models.Evidence) (*models.Evidence, error) {
	query := `
		INSERT INTO evidence (id, assessment_id, user_message, context, confidence_contribution)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, assessment_id, user_message, context, confidence_contribution, created_at
	`

	id := ev.ID
	if id == uuid.Nil {
		id = uuid.Must(uuid.NewV7())
	}

	var created models.Evidence

	err := r.db.QueryRow(ctx, query,
		id, ev.AssessmentID, ev.UserMessage, ev.Context, ev.ConfidenceContribution,
	).Scan(
		&created.ID, &created.AssessmentID, &created.UserMessage,
		&created.Context, &created.ConfidenceContribution, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append evidence: %w", err)
	}

	return &created, nil
}

// ListByAssessment retrieves the evidence trail for an assessment in
// chronological order.
func (r *EvidenceRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]models.Evidence, error) {
	query := `
		SELECT id, assessment_id, user_message, context, confidence_contribution, created_at
		FROM evidence
		WHERE assessment_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	evidence := []models.Evidence{} // Initialize as empty slice, not nil

	for rows.Next() {
		var ev models.Evidence

		err := rows.Scan(
			&ev.ID, &ev.AssessmentID, &ev.UserMessage,
			&ev.Context, &ev.ConfidenceContribution, &ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}

		evidence = append(evidence, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence: %w", err)
	}

	return evidence, nil
}
