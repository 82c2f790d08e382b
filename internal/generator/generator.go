// Package generator fabricates the mock network, agent and telemetry data
// behind the dashboard. All randomness flows through one seedable source so
// tests can pin the output.
package generator

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Generator produces mock dashboard data. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time

	syncProgress float64
	aiConfidence float64
}

// Option customises a Generator.
type Option func(*Generator)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New constructs a generator. A zero seed picks a time-based seed.
func New(seed int64, opts ...Option) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Generator{
		rng:          rand.New(rand.NewSource(seed)),
		now:          time.Now,
		syncProgress: initialSyncProgress,
		aiConfidence: initialConfidence,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Float64 returns a value in [0, 1).
func (g *Generator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// Intn returns a value in [0, n).
func (g *Generator) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

// Chance returns true with probability p.
func (g *Generator) Chance(p float64) bool {
	return g.Float64() < p
}

// Between returns a duration drawn uniformly from [min, max).
func (g *Generator) Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return min + time.Duration(g.rng.Int63n(int64(max-min)))
}

// uniform and intBetween expect g.mu to be held.
func (g *Generator) uniform(min, max float64) float64 {
	return min + g.rng.Float64()*(max-min)
}

func (g *Generator) intBetween(min, max int) int {
	return min + g.rng.Intn(max-min+1)
}

func (g *Generator) pick(options []string) string {
	return options[g.rng.Intn(len(options))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
