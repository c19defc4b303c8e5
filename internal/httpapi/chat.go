package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/concierge/internal/dialogue"
	"github.com/ent0n29/concierge/internal/policy"
	"github.com/ent0n29/concierge/internal/scheduler"
)

type chatRequest struct {
	Text       string `json:"text"`
	QuickReply string `json:"quick_reply"`
}

type transcriptResponse struct {
	SessionID string             `json:"session_id"`
	Messages  []dialogue.Message `json:"messages"`
}

// handlePostMessage runs one turn and returns the assistant reply. Blank input
// produces no turn and answers 204.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.GetActive(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	raw := req.Text
	if strings.TrimSpace(raw) == "" && req.QuickReply != "" {
		raw = dialogue.QuickReplyToInput(req.QuickReply)
	}

	text, decision := policy.ScreenInput(raw, policy.DefaultMaxInputRunes)
	if !decision.Accepted {
		if decision.Reason == "empty" {
			s.metrics.ObserveRejectedTurn("empty")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.metrics.ObserveRejectedTurn(decision.Reason)
		respondError(w, http.StatusBadRequest, "invalid_input", decision.Reason)
		return
	}

	msg, err := s.hub.Open(id).Ask(r.Context(), text)
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrQueueFull):
		respondError(w, http.StatusTooManyRequests, "turn_queue_full", err.Error())
		return
	case errors.Is(err, scheduler.ErrClosed):
		respondError(w, http.StatusGone, "session_closed", err.Error())
		return
	default:
		// Client went away while waiting for the reply.
		return
	}

	_ = s.sessions.RecordTurn(id)
	respondJSON(w, http.StatusOK, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs := s.transcript.Recent(id, limit)
	if msgs == nil {
		msgs = []dialogue.Message{}
	}
	respondJSON(w, http.StatusOK, transcriptResponse{SessionID: id, Messages: msgs})
}
