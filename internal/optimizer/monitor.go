package optimizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nockworks/revenue-engine/internal/clock"
)

const (
	// DefaultInterval is how often the monitor re-scores the platform.
	DefaultInterval = 5 * time.Minute

	// DefaultThreshold is the score below which a re-optimization pass runs.
	DefaultThreshold = 80.0
)

// Probe scores one platform component on a 0..100 scale. Probe checks
// must be deterministic; the monitor does not smooth or average over time.
type Probe struct {
	Name   string
	Weight float64
	Check  func(ctx context.Context) float64
}

// DefaultProbes returns the built-in component probes. The scores are a
// placeholder signal, not measurements; real probes register over them.
func DefaultProbes() []Probe {
	constant := func(score float64) func(context.Context) float64 {
		return func(context.Context) float64 { return score }
	}
	return []Probe{
		{Name: "api_latency", Weight: 0.25, Check: constant(92)},
		{Name: "billing_pipeline", Weight: 0.30, Check: constant(88)},
		{Name: "bridge_throughput", Weight: 0.25, Check: constant(76)},
		{Name: "cache_hit_rate", Weight: 0.20, Check: constant(81)},
	}
}

// Assessment is one scoring pass over the registered probes.
type Assessment struct {
	Score           float64            `json:"score"`
	Components      map[string]float64 `json:"components"`
	Recommendations []string           `json:"recommendations"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

type Config struct {
	Interval  time.Duration
	Threshold float64
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	return c
}

type Param struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Config Config `optional:"true"`
}

// Monitor keeps a composite platform score from registered component
// probes and re-optimizes when the score drops under the threshold.
type Monitor struct {
	log   *zap.Logger
	clock clock.Clock
	cfg   Config

	mu       sync.Mutex
	probes   []Probe
	pending  map[string]struct{}
	lastScan *Assessment
}

func NewMonitor(p Param) *Monitor {
	return &Monitor{
		log:     p.Log.Named("optimizer.monitor"),
		clock:   p.Clock,
		cfg:     p.Config.withDefaults(),
		probes:  DefaultProbes(),
		pending: map[string]struct{}{},
	}
}

// Register replaces the probe with the same name, or adds a new one.
func (m *Monitor) Register(probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.probes {
		if existing.Name == probe.Name {
			m.probes[i] = probe
			return
		}
	}
	m.probes = append(m.probes, probe)
}

// TriggerOptimization queues a stream for attention on the next pass.
// Large revenue events land here via the stream journal.
func (m *Monitor) TriggerOptimization(_ context.Context, streamType string) {
	m.mu.Lock()
	m.pending[streamType] = struct{}{}
	m.mu.Unlock()

	m.log.Info("optimization pass requested", zap.String("stream_type", streamType))
}

// Evaluate scores every probe and drains the pending trigger set.
func (m *Monitor) Evaluate(ctx context.Context) *Assessment {
	m.mu.Lock()
	probes := append([]Probe(nil), m.probes...)
	triggered := make([]string, 0, len(m.pending))
	for streamType := range m.pending {
		triggered = append(triggered, streamType)
	}
	m.pending = map[string]struct{}{}
	m.mu.Unlock()
	sort.Strings(triggered)

	assessment := &Assessment{
		Components:  make(map[string]float64, len(probes)),
		GeneratedAt: m.clock.Now(),
	}

	var weighted, totalWeight float64
	for _, probe := range probes {
		score := probe.Check(ctx)
		assessment.Components[probe.Name] = score
		weighted += score * probe.Weight
		totalWeight += probe.Weight

		if score < m.cfg.Threshold {
			assessment.Recommendations = append(assessment.Recommendations,
				fmt.Sprintf("Investigate %s: component score %.0f below target", probe.Name, score))
		}
	}
	if totalWeight > 0 {
		assessment.Score = weighted / totalWeight
	}

	for _, streamType := range triggered {
		assessment.Recommendations = append(assessment.Recommendations,
			fmt.Sprintf("Review %s pricing after high-value event", streamType))
	}

	m.mu.Lock()
	m.lastScan = assessment
	m.mu.Unlock()
	return assessment
}

// LastAssessment returns the most recent pass, or nil before the first.
func (m *Monitor) LastAssessment() *Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastScan
}

// Run re-scores on the interval until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			assessment := m.Evaluate(ctx)
			if assessment.Score < m.cfg.Threshold {
				m.reoptimize(assessment)
			}
		}
	}
}

func (m *Monitor) reoptimize(assessment *Assessment) {
	m.log.Warn("platform score below threshold, re-optimizing",
		zap.Float64("score", assessment.Score),
		zap.Float64("threshold", m.cfg.Threshold),
		zap.Strings("recommendations", assessment.Recommendations),
	)
}
