package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ent0n29/concierge/internal/dialogue"
)

func TestParseClientMessageUserMessage(t *testing.T) {
	raw := []byte(`{"type":"user_message","session_id":"s1","text":"show me bags"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	um, ok := msg.(UserMessage)
	if !ok {
		t.Fatalf("message type = %T, want UserMessage", msg)
	}
	if um.SessionID != "s1" || um.Text != "show me bags" {
		t.Fatalf("unexpected user message: %+v", um)
	}
}

func TestParseClientMessageQuickReplyStripsDecoration(t *testing.T) {
	raw := []byte(`{"type":"quick_reply","session_id":"s1","label":"✨ New arrivals"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	qr, ok := msg.(QuickReply)
	if !ok {
		t.Fatalf("message type = %T, want QuickReply", msg)
	}
	if got := qr.Input(); got != "New arrivals" {
		t.Fatalf("Input() = %q, want %q", got, "New arrivals")
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"type":"user_message","text":"hi"}`,
		`{"type":"quick_reply","session_id":"s1","label":"  "}`,
		`{"type":"client_control","session_id":"s1"}`,
		`not json`,
	}
	for _, raw := range cases {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) should fail", raw)
		}
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":"end_session"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.Action != ControlEndSession {
		t.Fatalf("Action = %q, want %q", control.Action, ControlEndSession)
	}
}

func TestAssistantMessageEnvelope(t *testing.T) {
	out := NewAssistantMessage("s1", dialogue.Message{ID: "m1", Author: dialogue.AuthorAssistant, Text: "hello", QuickReplies: []string{"a"}})
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["type"] != string(TypeAssistantMessage) {
		t.Fatalf("type = %v, want %s", decoded["type"], TypeAssistantMessage)
	}
	inner, ok := decoded["message"].(map[string]any)
	if !ok || inner["text"] != "hello" {
		t.Fatalf("message = %v, want text hello", decoded["message"])
	}
	if typ, ok := TypeOf(out); !ok || typ != TypeAssistantMessage {
		t.Fatalf("TypeOf() = %v, %v", typ, ok)
	}
}
