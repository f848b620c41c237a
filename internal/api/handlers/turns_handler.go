package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aperturehq/aperture/internal/jobs"
	"github.com/aperturehq/aperture/internal/models"
)

// TurnsHandler accepts completed turns from the proxy and enqueues the
// detached extraction pipeline. The proxy has already answered its caller;
// this endpoint only acknowledges the enqueue.
type TurnsHandler struct {
	inserter jobs.JobInserter
}

// NewTurnsHandler creates a new turns handler.
func NewTurnsHandler(inserter jobs.JobInserter) *TurnsHandler {
	return &TurnsHandler{inserter: inserter}
}

// Submit handles POST /v1/turns.
func (h *TurnsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var turn models.Turn
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&turn); err != nil {
		RespondBadRequest(w, "invalid turn body: "+err.Error())

		return
	}

	if turn.UserID == "" {
		RespondBadRequest(w, "user_id is required")

		return
	}

	if turn.UserMessage == "" {
		RespondBadRequest(w, "user_message is required")

		return
	}

	err := h.inserter.InsertTurnExtraction(r.Context(), jobs.TurnExtractionArgs{
		UserID:            turn.UserID,
		ConversationID:    turn.ConversationID,
		MessageID:         turn.MessageID,
		UserMessage:       turn.UserMessage,
		AssistantResponse: turn.AssistantResponse,
		History:           turn.History,
	})
	if err != nil {
		RespondServiceError(w, r, err)

		return
	}

	RespondSuccess(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
