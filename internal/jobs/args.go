// Package jobs provides River job workers for async processing tasks.
package jobs

import "github.com/aperturehq/aperture/internal/models"

// QueueExtraction is the dedicated queue for turn extraction jobs.
const QueueExtraction = "extraction"

// TurnExtractionArgs contains the arguments for a turn extraction job: one
// completed user/assistant exchange to run through the pipeline.
type TurnExtractionArgs struct {
	UserID            string                       `json:"user_id"`
	ConversationID    string                       `json:"conversation_id"`
	MessageID         string                       `json:"message_id"`
	UserMessage       string                       `json:"user_message"`
	AssistantResponse string                       `json:"assistant_response"`
	History           []models.ConversationMessage `json:"history,omitempty"`
}

// Kind returns the job type identifier for River
func (TurnExtractionArgs) Kind() string { return "turn_extraction" }

// Turn converts the args back into the pipeline's input.
func (a TurnExtractionArgs) Turn() models.Turn {
	return models.Turn{
		UserID:            a.UserID,
		ConversationID:    a.ConversationID,
		MessageID:         a.MessageID,
		UserMessage:       a.UserMessage,
		AssistantResponse: a.AssistantResponse,
		History:           a.History,
	}
}
