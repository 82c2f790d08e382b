package model

// AnalyticsMetric compares a baseline against the proposed configuration.
type AnalyticsMetric struct {
	Name        string  `json:"name"`
	Baseline    float64 `json:"baseline"`
	Proposed    float64 `json:"proposed"`
	Unit        string  `json:"unit"`
	Improvement int     `json:"improvement"`
}

// TimeSeries holds parallel baseline/proposed series keyed by label.
type TimeSeries struct {
	Labels   []string  `json:"labels"`
	Baseline []float64 `json:"baseline"`
	Proposed []float64 `json:"proposed"`
}

// Analytics is the comparative analytics payload.
type Analytics struct {
	Metrics    []AnalyticsMetric `json:"metrics"`
	TimeSeries TimeSeries        `json:"timeSeries"`
}

// RewardDataset is one agent's reward curve.
type RewardDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// RewardCurves is the training reward chart payload.
type RewardCurves struct {
	Labels   []int           `json:"labels"`
	Datasets []RewardDataset `json:"datasets"`
}

// Prediction is one point of the digital twin latency forecast. Timestamp is
// Unix milliseconds.
type Prediction struct {
	Timestamp  int64   `json:"timestamp"`
	Predicted  float64 `json:"predicted"`
	Confidence float64 `json:"confidence"`
}
