package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/models"
)

// tokenBytes is the entropy of a correlation token. 9 bytes is 72 bits,
// rendered as 12 URL-safe characters.
const tokenBytes = 9

// NewCorrelationToken returns an opaque, URL-safe, unguessable token.
// Tokens carry no information about the user, conversation or assessments.
func NewCorrelationToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating correlation token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CorrelationService records which assessments each delivered response
// produced and answers "why this response" lookups. Records are write-once:
// once stored, the token and assessment ID set never change.
type CorrelationService struct {
	store       CorrelationStore
	assessments AssessmentStore
	evidence    EvidenceStore
}

// NewCorrelationService creates the correlation service.
func NewCorrelationService(store CorrelationStore, assessments AssessmentStore, evidence EvidenceStore) *CorrelationService {
	return &CorrelationService{
		store:       store,
		assessments: assessments,
		evidence:    evidence,
	}
}

// Record stores a new correlation for a delivered response. An empty
// assessment set is still recorded: "this response produced no assessments"
// is an answer worth keeping.
func (s *CorrelationService) Record(ctx context.Context, conversationID, messageID string, assessmentIDs []uuid.UUID) (*models.ResponseCorrelation, error) {
	token, err := NewCorrelationToken()
	if err != nil {
		return nil, err
	}

	if assessmentIDs == nil {
		assessmentIDs = []uuid.UUID{}
	}

	created, err := s.store.Create(ctx, &models.ResponseCorrelation{
		Token:          token,
		ConversationID: conversationID,
		MessageID:      messageID,
		AssessmentIDs:  assessmentIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("recording correlation: %w", err)
	}

	return created, nil
}

// Lookup resolves a token to its recorded correlation plus the current state
// of each referenced assessment with evidence. The recorded ID set is never
// re-derived; assessments deleted since recording are skipped with a log line
// rather than failing the lookup.
func (s *CorrelationService) Lookup(ctx context.Context, token string) (*models.CorrelationLookup, error) {
	correlation, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	assessments := make([]models.AssessmentWithEvidence, 0, len(correlation.AssessmentIDs))

	for _, id := range correlation.AssessmentIDs {
		a, err := s.assessments.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				slog.WarnContext(ctx, "correlated assessment no longer exists", "token", token, "assessment_id", id)

				continue
			}

			return nil, fmt.Errorf("loading correlated assessment %s: %w", id, err)
		}

		trail, err := s.evidence.ListByAssessment(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading evidence for assessment %s: %w", id, err)
		}

		assessments = append(assessments, models.AssessmentWithEvidence{
			Assessment: *a,
			Evidence:   trail,
		})
	}

	return &models.CorrelationLookup{
		Correlation: *correlation,
		Assessments: assessments,
	}, nil
}
