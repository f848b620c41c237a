package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/models"
)

// AssessmentStore is the persistence surface the services need for
// assessments. Implemented by repository.AssessmentsRepository.
type AssessmentStore interface {
	Create(ctx context.Context, a *models.Assessment) (*models.Assessment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Assessment, error)
	GetByUserAndElement(ctx context.Context, userID, element string) (*models.Assessment, error)
	Update(ctx context.Context, id uuid.UUID, upd *models.AssessmentUpdate) (*models.Assessment, error)
	List(ctx context.Context, userID string, filters *models.ListAssessmentsFilters) ([]models.Assessment, error)
}

// EvidenceStore is the persistence surface for the append-only evidence
// trail. Implemented by repository.EvidenceRepository.
type EvidenceStore interface {
	Append(ctx context.Context, ev *models.Evidence) (*models.Evidence, error)
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]models.Evidence, error)
}

// CorrelationStore is the persistence surface for write-once response
// records. Implemented by repository.CorrelationsRepository.
type CorrelationStore interface {
	Create(ctx context.Context, c *models.ResponseCorrelation) (*models.ResponseCorrelation, error)
	GetByToken(ctx context.Context, token string) (*models.ResponseCorrelation, error)
}

// TemplateEmbeddingStore caches catalog template embeddings per model.
// Implemented by repository.TemplateEmbeddingsRepository.
type TemplateEmbeddingStore interface {
	Get(ctx context.Context, templateName, model string) ([]float32, error)
	Upsert(ctx context.Context, templateName, model string, embedding []float32) error
}
