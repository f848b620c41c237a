// Package repository provides data access for assessments, evidence,
// response correlations and the template embedding cache.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/models"
)

// AssessmentsRepository handles data access for assessments.
type AssessmentsRepository struct {
	db *pgxpool.Pool
}

// NewAssessmentsRepository creates a new assessments repository.
func NewAssessmentsRepository(db *pgxpool.Pool) *AssessmentsRepository {
	return &AssessmentsRepository{db: db}
}

const assessmentColumns = `id, user_id, element, value_type, value_data, reasoning,
		confidence, observation_count, user_corrected, metadata, created_at, updated_at`

// Create inserts a new assessment row.
func (r *AssessmentsRepository) Create(ctx context.Context, a *models.Assessment) (*models.Assessment, error) {
	query := `
		INSERT INTO assessments (
			id, user_id, element, value_type, value_data, reasoning,
			confidence, observation_count, user_corrected, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + assessmentColumns

	id := a.ID
	if id == uuid.Nil {
		id = uuid.Must(uuid.NewV7())
	}

	row := r.db.QueryRow(ctx, query,
		id, a.UserID, a.Element, a.Value.Type, a.Value, a.Reasoning,
		a.Confidence, a.ObservationCount, a.UserCorrected, a.Metadata,
	)

	created, err := scanAssessment(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	return created, nil
}

// GetByID retrieves a single assessment by ID.
func (r *AssessmentsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("assessment", "assessment not found")
		}

		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	return a, nil
}

// GetByUserAndElement retrieves the live assessment for one (user, element)
// pair. There is at most one such row.
func (r *AssessmentsRepository) GetByUserAndElement(ctx context.Context, userID, element string) (*models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE user_id = $1 AND element = $2`

	a, err := scanAssessment(r.db.QueryRow(ctx, query, userID, element))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("assessment", "assessment not found")
		}

		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	return a, nil
}

// Update applies the non-nil fields of upd to an assessment and returns the
// updated row.
func (r *AssessmentsRepository) Update(ctx context.Context, id uuid.UUID, upd *models.AssessmentUpdate) (*models.Assessment, error) {
	setClause, args := buildAssessmentUpdate(upd)
	if len(args) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE assessments
		SET %s
		WHERE id = $%d
		RETURNING `+assessmentColumns, setClause, len(args))

	a, err := scanAssessment(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("assessment", "assessment not found")
		}

		return nil, fmt.Errorf("failed to update assessment: %w", err)
	}

	return a, nil
}

// buildAssessmentUpdate builds the SET clause and arguments from an update.
// updated_at is always touched.
func buildAssessmentUpdate(upd *models.AssessmentUpdate) (setClause string, args []any) {
	assignments := []string{"updated_at = now()"}

	argCount := 1

	if upd.Value != nil {
		assignments = append(assignments,
			fmt.Sprintf("value_type = $%d", argCount),
			fmt.Sprintf("value_data = $%d", argCount+1))
		args = append(args, upd.Value.Type, *upd.Value)
		argCount += 2
	}

	if upd.Reasoning != nil {
		assignments = append(assignments, fmt.Sprintf("reasoning = $%d", argCount))
		args = append(args, *upd.Reasoning)
		argCount++
	}

	if upd.Confidence != nil {
		assignments = append(assignments, fmt.Sprintf("confidence = $%d", argCount))
		args = append(args, *upd.Confidence)
		argCount++
	}

	if upd.ObservationCount != nil {
		assignments = append(assignments, fmt.Sprintf("observation_count = $%d", argCount))
		args = append(args, *upd.ObservationCount)
		argCount++
	}

	if upd.UserCorrected != nil {
		assignments = append(assignments, fmt.Sprintf("user_corrected = $%d", argCount))
		args = append(args, *upd.UserCorrected)
		argCount++
	}

	if upd.Metadata != nil {
		assignments = append(assignments, fmt.Sprintf("metadata = $%d", argCount))
		args = append(args, upd.Metadata)
	}

	return strings.Join(assignments, ", "), args
}

// buildListConditions builds WHERE clause conditions and arguments for List.
// user_id is always the first condition.
func buildListConditions(userID string, filters *models.ListAssessmentsFilters) (whereClause string, args []any) {
	conditions := []string{"user_id = $1"}
	args = append(args, userID)

	argCount := 2

	if filters.Element != nil {
		conditions = append(conditions, fmt.Sprintf("element = $%d", argCount))
		args = append(args, *filters.Element)
		argCount++
	}

	if filters.MinConfidence != nil {
		conditions = append(conditions, fmt.Sprintf("confidence >= $%d", argCount))
		args = append(args, *filters.MinConfidence)
		argCount++
	}

	if filters.MaxConfidence != nil {
		conditions = append(conditions, fmt.Sprintf("confidence <= $%d", argCount))
		args = append(args, *filters.MaxConfidence)
		argCount++
	}

	if filters.UserCorrected != nil {
		conditions = append(conditions, fmt.Sprintf("user_corrected = $%d", argCount))
		args = append(args, *filters.UserCorrected)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List retrieves a user's assessments with optional filters, most recently
// updated first.
func (r *AssessmentsRepository) List(ctx context.Context, userID string, filters *models.ListAssessmentsFilters) ([]models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments`

	whereClause, args := buildListConditions(userID, filters)
	query += whereClause
	query += " ORDER BY updated_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filters.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	assessments := []models.Assessment{} // Initialize as empty slice, not nil

	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}

		assessments = append(assessments, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessments: %w", err)
	}

	return assessments, nil
}

// scanAssessment scans one assessment row. value_type is read alongside
// value_data and checked for agreement.
func scanAssessment(row pgx.Row) (*models.Assessment, error) {
	var (
		a         models.Assessment
		valueType string
	)

	err := row.Scan(
		&a.ID, &a.UserID, &a.Element, &valueType, &a.Value, &a.Reasoning,
		&a.Confidence, &a.ObservationCount, &a.UserCorrected, &a.Metadata,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if string(a.Value.Type) != valueType {
		return nil, fmt.Errorf("value_type column %q disagrees with value_data type %q", valueType, a.Value.Type)
	}

	return &a, nil
}
