package service

import (
	"sort"
	"sync"
	"time"
)

// ProviderStats are the counters kept for one provider
type ProviderStats struct {
	Provider     string    `json:"provider"`
	Requests     int64     `json:"requests"`
	Failures     int64     `json:"failures"`
	AvgLatencyMS float64   `json:"avg_latency_ms"`
	LastUsedAt   time.Time `json:"last_used_at"`

	totalLatency time.Duration
}

// AssistantStats records request counts and latency per provider. Counters live
// in memory and start from zero on every process start.
type AssistantStats struct {
	mu    sync.Mutex
	stats map[string]*ProviderStats
	since time.Time
	now   func() time.Time
}

// NewAssistantStats creates an empty recorder
func NewAssistantStats() *AssistantStats {
	return &AssistantStats{
		stats: make(map[string]*ProviderStats),
		since: time.Now(),
		now:   time.Now,
	}
}

// Record adds one request outcome
func (a *AssistantStats) Record(provider string, latency time.Duration, failed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.stats[provider]
	if !ok {
		s = &ProviderStats{Provider: provider}
		a.stats[provider] = s
	}
	s.Requests++
	if failed {
		s.Failures++
	}
	s.totalLatency += latency
	s.AvgLatencyMS = float64(s.totalLatency.Milliseconds()) / float64(s.Requests)
	s.LastUsedAt = a.now()
}

// Snapshot returns a copy of the counters ordered by provider
func (a *AssistantStats) Snapshot() []ProviderStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ProviderStats, 0, len(a.stats))
	for _, s := range a.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Since reports when counting started
func (a *AssistantStats) Since() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.since
}

// Reset clears all counters
func (a *AssistantStats) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = make(map[string]*ProviderStats)
	a.since = a.now()
}
