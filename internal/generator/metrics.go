package generator

import (
	"math"

	"github.com/Chandru6607/6g-dashboard/model"
)

const (
	initialSyncProgress = 87.0
	initialConfidence   = 94.0
)

// NetworkMetrics returns a fresh KPI sample.
func (g *Generator) NetworkMetrics() model.NetworkMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.NetworkMetrics{
		Latency:     round(g.uniform(1, 5), 2),
		Throughput:  round(g.uniform(8, 15), 2),
		PacketLoss:  round(g.uniform(0, 0.5), 3),
		ActiveNodes: g.intBetween(15, 20),
		Timestamp:   g.now().UnixMilli(),
	}
}

// SyncProgress advances the twin synchronisation counter and drifts the AI
// confidence. Progress wraps back into [85, 95) once it reaches 99.5;
// confidence stays within [88, 99].
func (g *Generator) SyncProgress() model.SyncProgress {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.syncProgress = math.Min(100, g.syncProgress+g.uniform(0, 0.5))
	if g.syncProgress >= 99.5 {
		g.syncProgress = g.uniform(85, 95)
	}
	g.aiConfidence = clamp(g.aiConfidence+g.uniform(-1, 1), 88, 99)

	return model.SyncProgress{
		Progress:   round(g.syncProgress, 1),
		Confidence: round(g.aiConfidence, 1),
	}
}

// AdvanceAgent applies one training step to a, leaving inference agents
// untouched.
func AdvanceAgent(a model.Agent) model.Agent {
	if a.State != model.AgentTraining {
		return a
	}
	a.Episodes++
	a.AvgReward = math.Min(model.MaxAvgReward, round(a.AvgReward+0.0001, 4))
	a.Convergence = math.Min(model.MaxConvergence, round(a.Convergence+0.01, 2))
	return a
}
