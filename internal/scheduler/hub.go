package scheduler

import (
	"sync"
)

// Hub keeps one scheduler per live session. Sessions never share a scheduler,
// so a slow turn in one session does not delay another.
type Hub struct {
	mu         sync.Mutex
	cfg        Config
	deps       Deps
	schedulers map[string]*Scheduler
}

func NewHub(cfg Config, deps Deps) *Hub {
	return &Hub{
		cfg:        cfg,
		deps:       deps,
		schedulers: make(map[string]*Scheduler),
	}
}

// Open returns the session's scheduler, creating it on first use.
func (h *Hub) Open(sessionID string) *Scheduler {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.schedulers[sessionID]; ok {
		return s
	}
	s := New(sessionID, h.cfg, h.deps)
	h.schedulers[sessionID] = s
	return s
}

func (h *Hub) Get(sessionID string) (*Scheduler, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.schedulers[sessionID]
	return s, ok
}

// Close stops and forgets the session's scheduler. Unknown ids are ignored.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	s, ok := h.schedulers[sessionID]
	delete(h.schedulers, sessionID)
	h.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := make([]*Scheduler, 0, len(h.schedulers))
	for id, s := range h.schedulers {
		all = append(all, s)
		delete(h.schedulers, id)
	}
	h.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.schedulers)
}
