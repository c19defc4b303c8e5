package memory

import (
	"sync"

	"github.com/ent0n29/concierge/internal/dialogue"
)

const DefaultMaxMessages = 500

// Transcript keeps each live session's messages in process memory. Nothing
// outlives Drop; conversation state is never persisted.
type Transcript struct {
	mu          sync.RWMutex
	maxMessages int
	sessions    map[string][]dialogue.Message
}

func NewTranscript(maxMessages int) *Transcript {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Transcript{
		maxMessages: maxMessages,
		sessions:    make(map[string][]dialogue.Message),
	}
}

func (t *Transcript) Append(sessionID string, msg dialogue.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := append(t.sessions[sessionID], msg)
	if over := len(msgs) - t.maxMessages; over > 0 {
		msgs = append([]dialogue.Message(nil), msgs[over:]...)
	}
	t.sessions[sessionID] = msgs
}

// Recent returns up to limit of the latest messages in chronological order.
// A non-positive limit returns everything.
func (t *Transcript) Recent(sessionID string, limit int) []dialogue.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	arr := t.sessions[sessionID]
	if len(arr) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]dialogue.Message, limit)
	copy(out, arr[len(arr)-limit:])
	return out
}

func (t *Transcript) Drop(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

func (t *Transcript) Sessions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
