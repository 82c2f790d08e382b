package generator

import (
	"fmt"
	"math"
	"time"

	"github.com/Chandru6607/6g-dashboard/model"
)

const (
	predictionPoints = 20
	rewardPoints     = 50
	seriesHours      = 24
)

// Predictions returns a 20-point latency forecast at one-minute spacing
// starting now.
func (g *Generator) Predictions() []model.Prediction {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := g.now()
	out := make([]model.Prediction, predictionPoints)
	for i := range out {
		out[i] = model.Prediction{
			Timestamp:  start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Predicted:  round(g.uniform(2, 6), 2),
			Confidence: round(g.uniform(85, 98), 1),
		}
	}
	return out
}

// RewardCurves returns training reward curves for the three demo agents.
func (g *Generator) RewardCurves() model.RewardCurves {
	g.mu.Lock()
	defer g.mu.Unlock()

	curves := []struct {
		label  string
		floor  float64
		cap    float64
		jitter float64
	}{
		{"Resource Allocation", 0.3, 0.9, 0.05},
		{"Congestion Control", 0.2, 0.8, 0.08},
		{"Mobility Management", 0.35, 0.95, 0.04},
	}

	labels := make([]int, rewardPoints)
	for i := range labels {
		labels[i] = i * 100
	}
	out := model.RewardCurves{Labels: labels}
	for _, c := range curves {
		data := make([]float64, rewardPoints)
		for i := range data {
			v := c.floor + float64(i)/rewardPoints*0.6 + g.uniform(-c.jitter, c.jitter)
			data[i] = round(math.Min(c.cap, v), 3)
		}
		out.Datasets = append(out.Datasets, model.RewardDataset{Label: c.label, Data: data})
	}
	return out
}

// Analytics returns the baseline/proposed comparison and a 24h series.
func (g *Generator) Analytics() model.Analytics {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := model.Analytics{
		Metrics: []model.AnalyticsMetric{
			{Name: "Latency", Baseline: round(g.uniform(8, 12), 2), Proposed: round(g.uniform(4, 7), 2), Unit: "ms", Improvement: -23},
			{Name: "Throughput", Baseline: round(g.uniform(8, 10), 2), Proposed: round(g.uniform(11, 14), 2), Unit: "Gbps", Improvement: 18},
			{Name: "Packet Loss", Baseline: round(g.uniform(0.8, 1.2), 2), Proposed: round(g.uniform(0.3, 0.6), 2), Unit: "%", Improvement: -41},
		},
	}
	ts := model.TimeSeries{
		Labels:   make([]string, seriesHours),
		Baseline: make([]float64, seriesHours),
		Proposed: make([]float64, seriesHours),
	}
	for h := 0; h < seriesHours; h++ {
		ts.Labels[h] = fmt.Sprintf("%d:00", h)
		ts.Baseline[h] = round(g.uniform(5, 10), 2)
		ts.Proposed[h] = round(g.uniform(2, 6), 2)
	}
	out.TimeSeries = ts
	return out
}
