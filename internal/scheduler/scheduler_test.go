package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ent0n29/concierge/internal/dialogue"
	"github.com/ent0n29/concierge/internal/logger"
)

// historyHandler echoes the accumulated history so tests can see which context each turn received.
type historyHandler struct{}

func (historyHandler) HandleTurn(_ context.Context, raw string, cc dialogue.ConversationContext) (dialogue.Message, dialogue.ConversationContext) {
	next := cc.Clone()
	next.History = append(next.History, raw)
	return dialogue.Message{Author: dialogue.AuthorAssistant, Text: strings.Join(next.History, ","), Intent: "echo"}, next
}

type memTranscript struct {
	mu   sync.Mutex
	msgs []dialogue.Message
}

func (m *memTranscript) Append(_ string, msg dialogue.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *memTranscript) snapshot() []dialogue.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dialogue.Message(nil), m.msgs...)
}

type gateSleeper struct {
	started chan time.Duration
	release chan struct{}
}

func newGateSleeper() *gateSleeper {
	return &gateSleeper{started: make(chan time.Duration, 16), release: make(chan struct{})}
}

func (g *gateSleeper) Sleep(ctx context.Context, d time.Duration) error {
	g.started <- d
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.release:
		return nil
	}
}

func newTestScheduler(t *testing.T, cfg Config, transcript Transcript) *Scheduler {
	t.Helper()
	if cfg.Sleeper == nil {
		cfg.Sleeper = ImmediateSleeper
	}
	s := New("sess-1", cfg, Deps{
		Handler:    historyHandler{},
		Transcript: transcript,
		Logger:     logger.FromZap(zaptest.NewLogger(t)),
	})
	t.Cleanup(s.Close)
	return s
}

func receive(t *testing.T, ch <-chan dialogue.Message) dialogue.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return dialogue.Message{}
	}
}

func TestTurnsDeliveredInOrderWithSingleWriter(t *testing.T) {
	transcript := &memTranscript{}
	s := newTestScheduler(t, Config{QueueSize: 8}, transcript)
	out, cancel := s.Subscribe(8)
	defer cancel()

	for _, text := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, s.Submit(text))
	}

	var got []string
	for i := 0; i < 5; i++ {
		got = append(got, receive(t, out).Text)
	}
	assert.Equal(t, []string{"1", "1,2", "1,2,3", "1,2,3,4", "1,2,3,4,5"}, got)

	msgs := transcript.snapshot()
	require.Len(t, msgs, 10)
	assert.Equal(t, dialogue.AuthorUser, msgs[0].Author)
	assert.Equal(t, "1", msgs[0].Text)
	assert.Equal(t, dialogue.AuthorAssistant, msgs[1].Author)
}

func TestSlowSubscriberIsClosedInsteadOfSkipped(t *testing.T) {
	s := newTestScheduler(t, Config{QueueSize: 4}, nil)
	slow, _ := s.Subscribe(1)
	fast, cancelFast := s.Subscribe(8)
	defer cancelFast()

	require.NoError(t, s.Submit("a"))
	_, err := s.Ask(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, "a", receive(t, fast).Text)
	assert.Equal(t, "a,b", receive(t, fast).Text)

	assert.Equal(t, "a", receive(t, slow).Text)
	select {
	case msg, ok := <-slow:
		assert.False(t, ok, "slow subscriber got %q after falling behind", msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("slow subscriber was not closed")
	}

	select {
	case <-s.Done():
		t.Fatal("evicting a subscriber must not stop the scheduler")
	default:
	}
	msg, err := s.Ask(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "a,b,c", msg.Text)
}

func TestBlankInputIsIgnored(t *testing.T) {
	transcript := &memTranscript{}
	s := newTestScheduler(t, Config{}, transcript)

	require.NoError(t, s.Submit("   \t"))
	_, err := s.Ask(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	msg, err := s.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Len(t, transcript.snapshot(), 2)
}

func TestQueueFullRejects(t *testing.T) {
	gate := newGateSleeper()
	s := newTestScheduler(t, Config{QueueSize: 1, Sleeper: gate.Sleep}, nil)

	require.NoError(t, s.Submit("first"))
	<-gate.started
	require.NoError(t, s.Submit("second"))
	assert.ErrorIs(t, s.Submit("third"), ErrQueueFull)

	close(gate.release)
}

func TestCloseCancelsInFlightDelay(t *testing.T) {
	gate := newGateSleeper()
	transcript := &memTranscript{}
	s := newTestScheduler(t, Config{Sleeper: gate.Sleep}, transcript)
	out, _ := s.Subscribe(4)

	require.NoError(t, s.Submit("hello"))
	<-gate.started

	s.Close()

	_, ok := <-out
	assert.False(t, ok, "subscriber channel should be closed without a delivery")
	assert.ErrorIs(t, s.Submit("again"), ErrClosed)
	for _, m := range transcript.snapshot() {
		assert.NotEqual(t, dialogue.AuthorAssistant, m.Author)
	}
	s.Close()
}

func TestAskReturnsErrClosedWhenDropped(t *testing.T) {
	gate := newGateSleeper()
	s := newTestScheduler(t, Config{Sleeper: gate.Sleep}, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "hello")
		errCh <- err
	}()
	<-gate.started
	s.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Ask did not return after Close")
	}
}

func TestDelayIsAppliedPerTurn(t *testing.T) {
	gate := newGateSleeper()
	cfg := Config{
		Sleeper: gate.Sleep,
		Delay:   DelayPolicy{Base: 100 * time.Millisecond, PerChar: 10 * time.Millisecond, Cap: time.Second},
	}
	s := newTestScheduler(t, cfg, nil)

	require.NoError(t, s.Submit("abcde"))
	assert.Equal(t, 150*time.Millisecond, <-gate.started)
	close(gate.release)
}

func TestDelayPolicy(t *testing.T) {
	p := DelayPolicy{
		Base:    600 * time.Millisecond,
		PerChar: 15 * time.Millisecond,
		Cap:     1200 * time.Millisecond,
		Jitter:  400 * time.Millisecond,
		Rand:    func(n int64) int64 { return n - 1 },
	}
	assert.Equal(t, 600*time.Millisecond+15*time.Millisecond*2+400*time.Millisecond-1, p.For("hi"))
	assert.Equal(t, 600*time.Millisecond+1200*time.Millisecond+400*time.Millisecond-1, p.For(strings.Repeat("x", 500)))

	p.Jitter = 0
	assert.Equal(t, 600*time.Millisecond+15*time.Millisecond*2, p.For("hé"))
}

func TestHubSessionsAreIndependent(t *testing.T) {
	gate := newGateSleeper()
	slow := New("slow", Config{Sleeper: gate.Sleep}, Deps{Handler: historyHandler{}})
	defer slow.Close()

	hub := NewHub(Config{Sleeper: ImmediateSleeper}, Deps{Handler: historyHandler{}})
	defer hub.CloseAll()

	require.NoError(t, slow.Submit("blocked"))
	<-gate.started

	a := hub.Open("a")
	assert.Same(t, a, hub.Open("a"))
	msg, err := a.Ask(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", msg.Text)

	b := hub.Open("b")
	msg, err = b.Ask(context.Background(), "pong")
	require.NoError(t, err)
	assert.Equal(t, "pong", msg.Text, "sessions must not share context")
	assert.Equal(t, 2, hub.Len())

	hub.Close("a")
	_, ok := hub.Get("a")
	assert.False(t, ok)
	assert.ErrorIs(t, a.Submit("x"), ErrClosed)
	hub.Close("missing")
}
