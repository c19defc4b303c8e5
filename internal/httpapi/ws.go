package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/concierge/internal/dialogue"
	"github.com/ent0n29/concierge/internal/policy"
	"github.com/ent0n29/concierge/internal/protocol"
	"github.com/ent0n29/concierge/internal/scheduler"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 64 << 10
)

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if _, err := s.sessions.GetActive(sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ObserveSessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sched := s.hub.Open(sessionID)
	replies, unsubscribe := sched.Subscribe(32)

	outbound := make(chan any, 64)
	outbound <- protocol.NewSystemEvent(sessionID, "session_ready", "")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, conn, sessionID, replies, sched.Done(), outbound)
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.queueOutbound(outbound, protocol.NewErrorEvent(sessionID, "invalid_client_message", err.Error(), false))
			continue
		}
		if t, ok := protocol.TypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}
		if !s.handleInbound(sessionID, sched, parsed, outbound) {
			break
		}
	}

	cancel()
	unsubscribe()
	<-writerDone
	s.metrics.ObserveSessionEvent("ws_disconnected")
}

// handleInbound applies one parsed client message. It returns false once the
// connection should stop reading.
func (s *Server) handleInbound(sessionID string, sched *scheduler.Scheduler, parsed any, outbound chan<- any) bool {
	var raw string
	switch msg := parsed.(type) {
	case protocol.UserMessage:
		if msg.SessionID != sessionID {
			s.queueOutbound(outbound, protocol.NewErrorEvent(sessionID, "session_mismatch", "message addressed to another session", false))
			return true
		}
		raw = msg.Text
	case protocol.QuickReply:
		if msg.SessionID != sessionID {
			s.queueOutbound(outbound, protocol.NewErrorEvent(sessionID, "session_mismatch", "message addressed to another session", false))
			return true
		}
		raw = msg.Input()
	case protocol.ClientControl:
		if msg.SessionID != sessionID {
			s.queueOutbound(outbound, protocol.NewErrorEvent(sessionID, "session_mismatch", "message addressed to another session", false))
			return true
		}
		if msg.Action != protocol.ControlEndSession {
			s.queueOutbound(outbound, protocol.NewErrorEvent(sessionID, "unsupported_action", msg.Action, false))
			return true
		}
		// Ending closes the scheduler, which closes the reply stream and lets
		// the writer emit session_ended before hanging up.
		if _, err := s.endSession(sessionID, "ended"); err != nil {
			s.queueOutbound(outbound, protocol.NewErrorEvent(sessionID, "session_not_found", err.Error(), false))
		}
		return true
	default:
		return true
	}

	_ = s.sessions.Touch(sessionID)
	text, decision := policy.ScreenInput(raw, policy.DefaultMaxInputRunes)
	if !decision.Accepted {
		s.metrics.ObserveRejectedTurn(decision.Reason)
		if decision.Reason != "empty" {
			s.queueOutbound(outbound, protocol.NewErrorEvent(sessionID, "invalid_input", decision.Reason, false))
		}
		return true
	}

	switch err := sched.Submit(text); {
	case err == nil:
		_ = s.sessions.RecordTurn(sessionID)
	case errors.Is(err, scheduler.ErrQueueFull):
		s.queueOutbound(outbound, protocol.NewErrorEvent(sessionID, "turn_queue_full", "too many pending messages", true))
	case errors.Is(err, scheduler.ErrClosed):
		return false
	default:
		s.log.Warn("submit turn failed", map[string]any{"session_id": sessionID, "error": err})
	}
	return true
}

func (s *Server) queueOutbound(outbound chan<- any, msg any) {
	t, _ := protocol.TypeOf(msg)
	select {
	case outbound <- msg:
		s.metrics.ObserveOutboundMessage(string(t), "queued")
	default:
		// Keep websocket writes single-threaded; drop if outbound queue is saturated.
		s.metrics.ObserveOutboundMessage(string(t), "drop_full")
	}
}

// writeLoop is the only goroutine that writes to conn.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sessionID string, replies <-chan dialogue.Message, schedDone <-chan struct{}, outbound <-chan any) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case msg := <-outbound:
			if !s.writeJSON(conn, msg) {
				return
			}
		case reply, ok := <-replies:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				s.drain(conn, outbound)
				s.hangUp(conn, sessionID, schedDone)
				return
			}
			if !s.writeJSON(conn, protocol.NewAssistantMessage(sessionID, reply)) {
				return
			}
		}
	}
}

// hangUp ends the connection once the reply stream closes. A stream closed
// while the scheduler still runs means this connection fell behind; the client
// can reconnect and reload the transcript.
func (s *Server) hangUp(conn *websocket.Conn, sessionID string, schedDone <-chan struct{}) {
	code, reason := websocket.CloseNormalClosure, "session ended"
	select {
	case <-schedDone:
		s.writeJSON(conn, protocol.NewSystemEvent(sessionID, "session_ended", ""))
	default:
		code, reason = websocket.CloseTryAgainLater, "reply stream overflow"
		s.writeJSON(conn, protocol.NewErrorEvent(sessionID, "reply_stream_overflow", "connection fell behind; reconnect and reload messages", true))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsWriteTimeout))
	_ = conn.Close()
}

func (s *Server) drain(conn *websocket.Conn, outbound <-chan any) {
	for {
		select {
		case msg := <-outbound:
			if !s.writeJSON(conn, msg) {
				return
			}
		default:
			return
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, msg any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	t, _ := protocol.TypeOf(msg)
	if err := conn.WriteJSON(msg); err != nil {
		s.metrics.ObserveOutboundMessage(string(t), "write_error")
		return false
	}
	s.metrics.ObserveWSMessage("outbound", string(t))
	return true
}
