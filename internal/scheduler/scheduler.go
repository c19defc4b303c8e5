package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ent0n29/concierge/internal/dialogue"
	"github.com/ent0n29/concierge/internal/logger"
	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/policy"
)

var (
	ErrQueueFull  = errors.New("turn queue full")
	ErrClosed     = errors.New("scheduler closed")
	ErrEmptyInput = errors.New("empty input")
)

const DefaultQueueSize = 8

// TurnHandler computes one reply and the next conversation context.
type TurnHandler interface {
	HandleTurn(ctx context.Context, raw string, cc dialogue.ConversationContext) (dialogue.Message, dialogue.ConversationContext)
}

// Transcript records every message of the session in delivery order.
type Transcript interface {
	Append(sessionID string, msg dialogue.Message)
}

type Config struct {
	QueueSize int
	Delay     DelayPolicy
	Sleeper   Sleeper
	Clock     func() time.Time
}

type Deps struct {
	Handler    TurnHandler
	Composer   *dialogue.Composer
	Transcript Transcript
	Metrics    *observability.Metrics
	Logger     logger.Logger
}

type job struct {
	text     string
	enqueued time.Time
	reply    chan dialogue.Message
}

// Scheduler owns one session's conversation. A single goroutine drains a
// bounded FIFO queue so turns never overlap and the context has one writer.
type Scheduler struct {
	sessionID string
	cfg       Config
	deps      Deps
	log       logger.Logger

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	closed      bool
	subscribers map[int]chan dialogue.Message
	nextSub     int

	// cc is only touched by the run goroutine.
	cc dialogue.ConversationContext
}

func New(sessionID string, cfg Config, deps Deps) *Scheduler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = RealSleeper
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if deps.Composer == nil {
		deps.Composer = dialogue.NewComposer(cfg.Clock)
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sessionID:   sessionID,
		cfg:         cfg,
		deps:        deps,
		log:         log.With(map[string]any{"session_id": sessionID}),
		queue:       make(chan job, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: make(map[int]chan dialogue.Message),
	}
	go s.run()
	return s
}

func (s *Scheduler) SessionID() string {
	return s.sessionID
}

// Submit queues a turn whose reply is delivered to subscribers. Blank input is
// ignored without error.
func (s *Scheduler) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		s.deps.Metrics.ObserveRejectedTurn("empty")
		return nil
	}
	return s.enqueue(job{text: text, enqueued: s.cfg.Clock()})
}

// Ask queues a turn and waits for its reply. The reply is also published to subscribers.
func (s *Scheduler) Ask(ctx context.Context, text string) (dialogue.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.deps.Metrics.ObserveRejectedTurn("empty")
		return dialogue.Message{}, ErrEmptyInput
	}
	reply := make(chan dialogue.Message, 1)
	if err := s.enqueue(job{text: text, enqueued: s.cfg.Clock(), reply: reply}); err != nil {
		return dialogue.Message{}, err
	}
	select {
	case msg := <-reply:
		return msg, nil
	case <-ctx.Done():
		return dialogue.Message{}, ctx.Err()
	case <-s.done:
		return dialogue.Message{}, ErrClosed
	}
}

func (s *Scheduler) enqueue(j job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.queue <- j:
		return nil
	default:
		s.deps.Metrics.ObserveRejectedTurn("queue_full")
		return ErrQueueFull
	}
}

// Subscribe returns a channel of delivered assistant messages. The channel is
// closed by the returned cancel func, when the scheduler closes, or when the
// subscriber falls a full buffer behind. Done tells the last two apart.
func (s *Scheduler) Subscribe(buffer int) (<-chan dialogue.Message, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan dialogue.Message, buffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close cancels any in-flight delay or lookup and drops queued turns. It is
// idempotent and waits for the run goroutine to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done

	s.mu.Lock()
	for id, sub := range s.subscribers {
		delete(s.subscribers, id)
		close(sub)
	}
	s.mu.Unlock()
}

// Done is closed once the scheduler has stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case j := <-s.queue:
			s.process(j)
		}
	}
}

func (s *Scheduler) process(j job) {
	start := s.cfg.Clock()
	ctx, span := observability.Tracer().Start(s.ctx, "concierge.turn")
	defer span.End()

	user := s.deps.Composer.UserMessage(j.text)
	s.record(user)

	reply, next := s.deps.Handler.HandleTurn(ctx, j.text, s.cc)
	computed := s.cfg.Clock()

	delay := s.cfg.Delay.For(j.text)
	if err := s.cfg.Sleeper(ctx, delay); err != nil {
		span.SetStatus(codes.Error, "cancelled before delivery")
		s.log.Debug("turn dropped before delivery", map[string]any{"error": err.Error()})
		return
	}

	s.cc = next
	s.record(reply)
	s.publish(reply)
	if j.reply != nil {
		j.reply <- reply
	}

	end := s.cfg.Clock()
	span.SetAttributes(
		attribute.String("concierge.session_id", s.sessionID),
		attribute.String("concierge.route", reply.Intent),
		attribute.String("concierge.state", string(next.State())),
		attribute.Int("concierge.products", len(reply.Products)),
	)
	s.deps.Metrics.ObserveTurn(reply.Intent, observability.TurnTiming{
		QueueWait: start.Sub(j.enqueued),
		Compute:   computed.Sub(start),
		Delay:     delay,
		Total:     end.Sub(start),
	})
	if outcome, ok := lookupOutcome(reply.Intent); ok {
		s.deps.Metrics.ObserveOrderLookup(outcome)
	}
	s.log.Debug("turn delivered", map[string]any{
		"route": reply.Intent,
		"input": policy.LogSafe(j.text),
		"delay": delay.String(),
	})
}

func (s *Scheduler) record(msg dialogue.Message) {
	if s.deps.Transcript != nil {
		s.deps.Transcript.Append(s.sessionID, msg)
	}
}

// publish delivers msg to every subscriber. A subscriber whose buffer is full
// is closed and removed rather than skipped, so a reader never sees a gap.
func (s *Scheduler) publish(msg dialogue.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subscribers {
		select {
		case sub <- msg:
			s.deps.Metrics.ObserveOutboundMessage("assistant_message", "queued")
		default:
			delete(s.subscribers, id)
			close(sub)
			s.deps.Metrics.ObserveOutboundMessage("assistant_message", "subscriber_evicted")
			s.log.Warn("closing slow subscriber", map[string]any{"message_id": msg.ID})
		}
	}
}

func lookupOutcome(intent string) (string, bool) {
	switch intent {
	case dialogue.IntentOrderStatus:
		return "found", true
	case dialogue.IntentOrderNotFound:
		return "not_found", true
	case dialogue.IntentOrderUnavailable:
		return "unavailable", true
	default:
		return "", false
	}
}
