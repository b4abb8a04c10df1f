package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

type AgentStats struct {
	Agent   string  `json:"agent"`
	Samples int     `json:"samples"`
	LastMS  float64 `json:"last_ms"`
	AvgMS   float64 `json:"avg_ms"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	P99MS   float64 `json:"p99_ms"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type WindowSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Agents      []AgentStats `json:"agents"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
}

// AgentWindow is a bounded ring of per-agent execution times plus named
// event counters. Pipeline runs from different sessions append concurrently,
// so every access goes through the single mutex.
type AgentWindow struct {
	mu         sync.RWMutex
	maxSamples int
	agents     map[string]*sampleBuffer
	indicators map[string]int
}

type sampleBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func NewAgentWindow(maxSamples int) *AgentWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &AgentWindow{
		maxSamples: maxSamples,
		agents:     make(map[string]*sampleBuffer),
		indicators: make(map[string]int),
	}
}

func (w *AgentWindow) Observe(agent string, ms float64) {
	if agent == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.agents[agent]
	if !ok {
		buf = &sampleBuffer{
			values: make([]float64, w.maxSamples),
		}
		w.agents[agent] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

func (w *AgentWindow) ObserveIndicator(name string) {
	if w == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *AgentWindow) Snapshot() WindowSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	agents := make([]AgentStats, 0, len(w.agents))
	keys := make([]string, 0, len(w.agents))
	for agent := range w.agents {
		keys = append(keys, agent)
	}
	sort.Strings(keys)

	for _, agent := range keys {
		buf := w.agents[agent]
		if buf == nil {
			continue
		}
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}

		agents = append(agents, AgentStats{
			Agent:   agent,
			Samples: n,
			LastMS:  round2(buf.last),
			AvgMS:   round2(sum / float64(n)),
			P50MS:   round2(quantile(samples, 0.50)),
			P95MS:   round2(quantile(samples, 0.95)),
			P99MS:   round2(quantile(samples, 0.99)),
		})
	}

	indicators := make([]Indicator, 0, len(w.indicators))
	indicatorKeys := make([]string, 0, len(w.indicators))
	for name := range w.indicators {
		indicatorKeys = append(indicatorKeys, name)
	}
	sort.Strings(indicatorKeys)
	for _, name := range indicatorKeys {
		count := w.indicators[name]
		if count <= 0 {
			continue
		}
		indicators = append(indicators, Indicator{
			Name:  name,
			Count: count,
		})
	}

	return WindowSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Agents:      agents,
		Indicators:  indicators,
	}
}

func (w *AgentWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agents = make(map[string]*sampleBuffer)
	w.indicators = make(map[string]int)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
