package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/models"
)

// memAssessmentStore is an in-memory AssessmentStore shared by the service tests.
type memAssessmentStore struct {
	byID map[uuid.UUID]models.Assessment

	createErr error
	updateErr error
}

func newMemAssessmentStore() *memAssessmentStore {
	return &memAssessmentStore{byID: map[uuid.UUID]models.Assessment{}}
}

func (s *memAssessmentStore) Create(_ context.Context, a *models.Assessment) (*models.Assessment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}

	stored := *a
	if stored.ID == uuid.Nil {
		stored.ID = uuid.Must(uuid.NewV7())
	}

	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byID[stored.ID] = stored

	out := stored

	return &out, nil
}

func (s *memAssessmentStore) GetByID(_ context.Context, id uuid.UUID) (*models.Assessment, error) {
	a, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("assessment", "")
	}

	out := a

	return &out, nil
}

func (s *memAssessmentStore) GetByUserAndElement(_ context.Context, userID, element string) (*models.Assessment, error) {
	for _, a := range s.byID {
		if a.UserID == userID && a.Element == element {
			out := a

			return &out, nil
		}
	}

	return nil, apperrors.NewNotFoundError("assessment", "")
}

func (s *memAssessmentStore) Update(_ context.Context, id uuid.UUID, upd *models.AssessmentUpdate) (*models.Assessment, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}

	a, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("assessment", "")
	}

	if upd.Value != nil {
		a.Value = *upd.Value
	}
	if upd.Reasoning != nil {
		a.Reasoning = *upd.Reasoning
	}
	if upd.Confidence != nil {
		a.Confidence = *upd.Confidence
	}
	if upd.ObservationCount != nil {
		a.ObservationCount = *upd.ObservationCount
	}
	if upd.UserCorrected != nil {
		a.UserCorrected = *upd.UserCorrected
	}
	if upd.Metadata != nil {
		a.Metadata = upd.Metadata
	}
	a.UpdatedAt = time.Now()
	s.byID[id] = a

	out := a

	return &out, nil
}

func (s *memAssessmentStore) List(_ context.Context, userID string, _ *models.ListAssessmentsFilters) ([]models.Assessment, error) {
	out := []models.Assessment{}
	for _, a := range s.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}

	return out, nil
}

// memEvidenceStore is an in-memory append-only EvidenceStore.
type memEvidenceStore struct {
	rows []models.Evidence

	appendErr error
}

func newMemEvidenceStore() *memEvidenceStore {
	return &memEvidenceStore{}
}

func (s *memEvidenceStore) Append(_ context.Context, ev *models.Evidence) (*models.Evidence, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}

	stored := *ev
	stored.ID = uuid.Must(uuid.NewV7())
	stored.CreatedAt = time.Now()
	s.rows = append(s.rows, stored)

	out := stored

	return &out, nil
}

func (s *memEvidenceStore) ListByAssessment(_ context.Context, assessmentID uuid.UUID) ([]models.Evidence, error) {
	out := []models.Evidence{}
	for _, ev := range s.rows {
		if ev.AssessmentID == assessmentID {
			out = append(out, ev)
		}
	}

	return out, nil
}

// memCorrelationStore is an in-memory write-once CorrelationStore.
type memCorrelationStore struct {
	byToken map[string]models.ResponseCorrelation

	createErr error
}

func newMemCorrelationStore() *memCorrelationStore {
	return &memCorrelationStore{byToken: map[string]models.ResponseCorrelation{}}
}

func (s *memCorrelationStore) Create(_ context.Context, c *models.ResponseCorrelation) (*models.ResponseCorrelation, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}

	stored := *c
	stored.CreatedAt = time.Now()
	s.byToken[stored.Token] = stored

	out := stored

	return &out, nil
}

func (s *memCorrelationStore) GetByToken(_ context.Context, token string) (*models.ResponseCorrelation, error) {
	c, ok := s.byToken[token]
	if !ok {
		return nil, apperrors.NewNotFoundError("response record", "")
	}

	out := c

	return &out, nil
}

// memTemplateStore is an in-memory TemplateEmbeddingStore.
type memTemplateStore struct {
	vectors map[string][]float32

	gets    int
	upserts int
}

func newMemTemplateStore() *memTemplateStore {
	return &memTemplateStore{vectors: map[string][]float32{}}
}

func (s *memTemplateStore) Get(_ context.Context, templateName, model string) ([]float32, error) {
	s.gets++

	vec, ok := s.vectors[templateName+"/"+model]
	if !ok {
		return nil, apperrors.NewNotFoundError("template embedding", "")
	}

	return vec, nil
}

func (s *memTemplateStore) Upsert(_ context.Context, templateName, model string, embedding []float32) error {
	s.upserts++
	s.vectors[templateName+"/"+model] = embedding

	return nil
}
