package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// Every Observe method is safe to call on a nil *Metrics.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	Turns            *prometheus.CounterVec
	RejectedTurns    *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec
	OutboundMessages *prometheus.CounterVec
	OrderLookups     *prometheus.CounterVec
	TurnLatency      prometheus.Histogram
	ThinkingDelay    prometheus.Histogram

	gatherer prometheus.Gatherer
	stages   *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Delivered turns by route.",
		}, []string{"route"}),
		RejectedTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_rejected_total",
			Help:      "Submissions that did not become a turn, by reason.",
		}, []string{"reason"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		OutboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound message queue outcomes by type.",
		}, []string{"type", "outcome"}),
		OrderLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_lookups_total",
			Help:      "Order lookups by outcome.",
		}, []string{"outcome"}),
		TurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "Time from dequeue to delivery of a turn in milliseconds.",
			Buckets:   []float64{50, 250, 500, 800, 1200, 1600, 2000, 2500, 3500},
		}),
		ThinkingDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "thinking_delay_ms",
			Help:      "Simulated thinking delay applied before delivery in milliseconds.",
			Buckets:   []float64{100, 300, 600, 900, 1200, 1600, 2000, 2400},
		}),
		gatherer: gatherer,
		stages:   newTurnStageWindow(256),
	}
}

// TurnTiming breaks one delivered turn into its stages.
type TurnTiming struct {
	QueueWait time.Duration
	Compute   time.Duration
	Delay     time.Duration
	Total     time.Duration
}

func (m *Metrics) ObserveTurn(route string, t TurnTiming) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(route).Inc()
	m.TurnLatency.Observe(float64(t.Total.Milliseconds()))
	m.ThinkingDelay.Observe(float64(t.Delay.Milliseconds()))

	m.stages.Observe(StageQueueWait, durationMS(t.QueueWait))
	m.stages.Observe(StageCompute, durationMS(t.Compute))
	m.stages.Observe(StageThinkingDelay, durationMS(t.Delay))
	m.stages.Observe(StageTurnTotal, durationMS(t.Total))
	m.stages.ObserveRoute(route)
}

func (m *Metrics) ObserveRejectedTurn(reason string) {
	if m == nil {
		return
	}
	m.RejectedTurns.WithLabelValues(reason).Inc()
	m.stages.ObserveRejection(reason)
}

func (m *Metrics) ObserveOrderLookup(outcome string) {
	if m == nil {
		return
	}
	m.OrderLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveOutboundMessage(msgType, outcome string) {
	if m == nil {
		return
	}
	m.OutboundMessages.WithLabelValues(msgType, outcome).Inc()
}

func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m == nil {
		return TurnStageSnapshot{Stages: []TurnStageStats{}}
	}
	return m.stages.Snapshot()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
