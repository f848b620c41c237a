package models

import (
	"time"

	"github.com/google/uuid"
)

// ResponseCorrelation links one delivered LLM response to the assessments the
// turn produced. Records are write-once: a token is never reassigned and the
// assessment ID set is never recomputed after the fact.
type ResponseCorrelation struct {
	Token          string      `json:"token"`
	ConversationID string      `json:"conversation_id"`
	MessageID      string      `json:"message_id"`
	AssessmentIDs  []uuid.UUID `json:"assessment_ids"`
	CreatedAt      time.Time   `json:"created_at"`
}

// CorrelationLookup is the "why this response" view: the recorded correlation
// plus the current state of each referenced assessment with its evidence.
type CorrelationLookup struct {
	Correlation ResponseCorrelation      `json:"correlation"`
	Assessments []AssessmentWithEvidence `json:"assessments"`
}
