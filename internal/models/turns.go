package models

import "github.com/google/uuid"

// ConversationMessage is one prior message in a conversation, used as
// extraction context.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one completed user/assistant exchange pushed by the proxy after it
// has already returned the assistant response to its caller.
type Turn struct {
	UserID            string                `json:"user_id"`
	ConversationID    string                `json:"conversation_id"`
	MessageID         string                `json:"message_id"`
	UserMessage       string                `json:"user_message"`
	AssistantResponse string                `json:"assistant_response"`
	History           []ConversationMessage `json:"history,omitempty"`
}

// TurnResult reports what a processed turn produced.
type TurnResult struct {
	AssessmentIDs []uuid.UUID `json:"assessment_ids"`
	Token         string      `json:"token,omitempty"`
}
