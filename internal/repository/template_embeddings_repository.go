package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/aperturehq/aperture/internal/apperrors"
)

// errEmbeddingScanInvalidType is returned when Scan receives a type other than []byte.
var errEmbeddingScanInvalidType = errors.New("embedding: expected []byte")

// vectorColumn scans a vector column without requiring pgvector type
// registration on the connection (pgvector.Vector.Scan panics on empty/NULL).
type vectorColumn []float32

func (v *vectorColumn) Scan(src any) error {
	if src == nil {
		*v = nil

		return nil
	}

	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T", errEmbeddingScanInvalidType, src)
	}

	if len(buf) == 0 {
		*v = nil

		return nil
	}

	var vec pgvector.Vector

	if err := vec.DecodeBinary(buf); err != nil {
		return fmt.Errorf("embedding decode: %w", err)
	}

	*v = vec.Slice()

	return nil
}

// TemplateEmbeddingsRepository caches construct-template embeddings so the
// static catalog is not re-embedded on every match request. Keyed by
// (template_name, model) because vectors from different models do not mix.
type TemplateEmbeddingsRepository struct {
	db *pgxpool.Pool
}

// NewTemplateEmbeddingsRepository creates a new template embeddings repository.
func NewTemplateEmbeddingsRepository(db *pgxpool.Pool) *TemplateEmbeddingsRepository {
	return &TemplateEmbeddingsRepository{db: db}
}

// Get retrieves the cached embedding for a template under a given model.
func (r *TemplateEmbeddingsRepository) Get(ctx context.Context, templateName, model string) ([]float32, error) {
	query := `
		SELECT embedding
		FROM template_embeddings
		WHERE template_name = $1 AND model = $2
	`

	var emb vectorColumn

	err := r.db.QueryRow(ctx, query, templateName, model).Scan(&emb)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("template embedding", "template embedding not found")
		}

		return nil, fmt.Errorf("failed to get template embedding: %w", err)
	}

	return emb, nil
}

// Upsert stores or replaces the cached embedding for a template under a
// given model.
func (r *TemplateEmbeddingsRepository) Upsert(ctx context.Context, templateName, model string, embedding []float32) error {
	query := `
		INSERT INTO template_embeddings (template_name, model, embedding, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (template_name, model)
		DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()
	`

	_, err := r.db.Exec(ctx, query, templateName, model, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to upsert template embedding: %w", err)
	}

	return nil
}
