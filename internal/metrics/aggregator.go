// internal/metrics/aggregator.go
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/mwiater/llmpanel/internal/providers"
)

// Aggregator collects running per-model statistics for end-of-run summaries.
type Aggregator struct {
	mutex   sync.Mutex
	order   []string
	metrics map[string]*ModelMetrics
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{metrics: make(map[string]*ModelMetrics)}
}

// Record updates the statistics for model with one request outcome.
func (a *Aggregator) Record(model string, resp providers.Response, err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	modelMetrics, exists := a.metrics[model]
	if !exists {
		modelMetrics = &ModelMetrics{ModelName: model}
		a.metrics[model] = modelMetrics
		a.order = append(a.order, model)
	}
	modelMetrics.LastUpdatedUTC = time.Now().UTC()
	modelMetrics.Requests++
	if err != nil {
		modelMetrics.Failures++
		return
	}
	updateRunningStat(&modelMetrics.LatencyMillis, float64(resp.Latency.Milliseconds()))
	updateRunningStat(&modelMetrics.InputTokens, float64(resp.Usage.InputTokens))
	updateRunningStat(&modelMetrics.OutputTokens, float64(resp.Usage.OutputTokens))
}

// Snapshot returns a copy of the statistics. Models named in order come
// first, in that order; any others follow in first-seen order.
func (a *Aggregator) Snapshot(order ...string) []ModelMetrics {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	out := make([]ModelMetrics, 0, len(a.order))
	taken := make(map[string]bool, len(a.order))
	for _, name := range order {
		if m, ok := a.metrics[name]; ok && !taken[name] {
			out = append(out, *m)
			taken[name] = true
		}
	}
	for _, name := range a.order {
		if !taken[name] {
			out = append(out, *a.metrics[name])
		}
	}
	return out
}

// updateRunningStat updates a single running statistic using Welford's online algorithm.
func updateRunningStat(rs *RunningStat, value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}

// StdDev returns the sample standard deviation, or 0 with fewer than two values.
func (rs RunningStat) StdDev() float64 {
	if rs.Count < 2 {
		return 0
	}
	return math.Sqrt(rs.M2 / float64(rs.Count-1))
}
