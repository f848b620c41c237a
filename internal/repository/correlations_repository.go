package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/models"
)

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// ErrTokenTaken is returned when a correlation token is already recorded.
// Records are write-once; a token is never reassigned.
var ErrTokenTaken = errors.New("correlation token already recorded")

// CorrelationsRepository handles data access for response correlations.
type CorrelationsRepository struct {
	db *pgxpool.Pool
}

// NewCorrelationsRepository creates a new correlations repository.
func NewCorrelationsRepository(db *pgxpool.Pool) *CorrelationsRepository {
	return &CorrelationsRepository{db: db}
}

// Create inserts a correlation record. The token is the primary key; inserting
// an existing token fails with ErrTokenTaken.
func (r *CorrelationsRepository) Create(ctx context.Context, c *models.ResponseCorrelation) (*models.ResponseCorrelation, error) {
	query := `
		INSERT INTO response_records (token, conversation_id, message_id, assessment_ids)
		VALUES ($1, $2, $3, $4)
		RETURNING token, conversation_id, message_id, assessment_ids, created_at
	`

	var created models.ResponseCorrelation

	err := r.db.QueryRow(ctx, query,
		c.Token, c.ConversationID, c.MessageID, c.AssessmentIDs,
	).Scan(
		&created.Token, &created.ConversationID, &created.MessageID,
		&created.AssessmentIDs, &created.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrTokenTaken
		}

		return nil, fmt.Errorf("failed to create response record: %w", err)
	}

	return &created, nil
}

// GetByToken retrieves a correlation record by its opaque token.
func (r *CorrelationsRepository) GetByToken(ctx context.Context, token string) (*models.ResponseCorrelation, error) {
	query := `
		SELECT token, conversation_id, message_id, assessment_ids, created_at
		FROM response_records
		WHERE token = $1
	`

	var c models.ResponseCorrelation

	err := r.db.QueryRow(ctx, query, token).Scan(
		&c.Token, &c.ConversationID, &c.MessageID, &c.AssessmentIDs, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("response record", "response record not found")
		}

		return nil, fmt.Errorf("failed to get response record: %w", err)
	}

	return &c, nil
}
