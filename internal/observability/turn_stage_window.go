package observability

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Turn stages in pipeline order with their p95 latency targets.
const (
	StageQueueWait     = "queue_wait"
	StageCompute       = "compute"
	StageThinkingDelay = "thinking_delay"
	StageTurnTotal     = "turn_total"
)

var stageTargets = []struct {
	name  string
	p95MS float64
}{
	{StageQueueWait, 2500},
	{StageCompute, 150},
	{StageThinkingDelay, 2200},
	{StageTurnTotal, 2600},
}

type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	OverTarget  bool    `json:"over_target,omitempty"`
}

// TurnStageSnapshot is the payload of /v1/perf/latency.
type TurnStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []TurnStageStats `json:"stages"`
	Routes      map[string]int   `json:"routes,omitempty"`
	Rejections  map[string]int   `json:"rejections,omitempty"`
}

// turnStageWindow keeps the last maxSamples durations per stage plus running
// counts of delivered routes and rejected inputs.
type turnStageWindow struct {
	mu         sync.RWMutex
	maxSamples int
	rings      map[string]*sampleRing
	routes     map[string]int
	rejections map[string]int
}

type sampleRing struct {
	values []float64
	size   int
	head   int
	last   float64
}

func (r *sampleRing) push(v float64) {
	r.values[r.head] = v
	r.head = (r.head + 1) % len(r.values)
	if r.size < len(r.values) {
		r.size++
	}
	r.last = v
}

func (r *sampleRing) stats(stage string, target float64) TurnStageStats {
	sorted := slices.Clone(r.values[:r.size])
	slices.Sort(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	st := TurnStageStats{
		Stage:       stage,
		Samples:     r.size,
		LastMS:      round2(r.last),
		AvgMS:       round2(sum / float64(r.size)),
		P50MS:       round2(percentile(sorted, 0.50)),
		P95MS:       round2(percentile(sorted, 0.95)),
		P99MS:       round2(percentile(sorted, 0.99)),
		TargetP95MS: target,
	}
	st.OverTarget = target > 0 && st.P95MS > target
	return st
}

func newTurnStageWindow(maxSamples int) *turnStageWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &turnStageWindow{
		maxSamples: maxSamples,
		rings:      make(map[string]*sampleRing),
		routes:     make(map[string]int),
		rejections: make(map[string]int),
	}
}

func (w *turnStageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ring, ok := w.rings[stage]
	if !ok {
		ring = &sampleRing{values: make([]float64, w.maxSamples)}
		w.rings[stage] = ring
	}
	ring.push(ms)
}

func (w *turnStageWindow) ObserveRoute(route string) {
	w.count(w.routes, route)
}

func (w *turnStageWindow) ObserveRejection(reason string) {
	w.count(w.rejections, reason)
}

func (w *turnStageWindow) count(into map[string]int, key string) {
	if key == "" {
		return
	}
	w.mu.Lock()
	into[key]++
	w.mu.Unlock()
}

// Snapshot reports known stages in pipeline order, then any other stage by name.
func (w *turnStageWindow) Snapshot() TurnStageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Stages:      make([]TurnStageStats, 0, len(w.rings)),
	}
	seen := make(map[string]bool, len(stageTargets))
	for _, st := range stageTargets {
		seen[st.name] = true
		if ring, ok := w.rings[st.name]; ok && ring.size > 0 {
			snap.Stages = append(snap.Stages, ring.stats(st.name, st.p95MS))
		}
	}
	var extra []string
	for name := range w.rings {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	for _, name := range extra {
		if ring := w.rings[name]; ring.size > 0 {
			snap.Stages = append(snap.Stages, ring.stats(name, 0))
		}
	}

	if len(w.routes) > 0 {
		snap.Routes = make(map[string]int, len(w.routes))
		for k, v := range w.routes {
			snap.Routes[k] = v
		}
	}
	if len(w.rejections) > 0 {
		snap.Rejections = make(map[string]int, len(w.rejections))
		for k, v := range w.rejections {
			snap.Rejections[k] = v
		}
	}
	return snap
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, q float64) float64 {
	switch n := len(sorted); {
	case n == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
