// internal/metrics/types.go
package metrics

import "time"

// ModelMetrics holds the aggregated data for a single model.
type ModelMetrics struct {
	ModelName      string      `json:"model_name"`
	LastUpdatedUTC time.Time   `json:"last_updated_utc"`
	Requests       int64       `json:"requests"`
	Failures       int64       `json:"failures"`
	LatencyMillis  RunningStat `json:"latency_ms"`
	InputTokens    RunningStat `json:"input_tokens"`
	OutputTokens   RunningStat `json:"output_tokens"`
}

// RunningStat holds the necessary values for online calculation of mean, variance, and stddev.
type RunningStat struct {
	Count int64   `json:"-"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"-"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}
