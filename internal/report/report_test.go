package report

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/mwiater/llmpanel/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSummary(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	err := Render(&buf, Summary{
		Title:   "Prompt run",
		Output:  "multillm.csv",
		Headers: []string{"Model", "Answered"},
		Rows:    [][]string{{"gpt-4o", "3"}, {"claude-3-haiku", "2"}},
		OK:      5,
		Failed:  1,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Prompt run")
	assert.Contains(t, out, "gpt-4o")
	assert.Contains(t, out, "claude-3-haiku")
	assert.Contains(t, out, "|")
	assert.Contains(t, out, "ok: 5")
	assert.Contains(t, out, "failed: 1")
	assert.Contains(t, out, "multillm.csv")
}

func TestRenderWithoutTable(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Summary{OK: 2}))
	assert.Contains(t, buf.String(), "ok: 2  failed: 0")
}

func TestModelRows(t *testing.T) {
	stats := []metrics.ModelMetrics{
		{ModelName: "a", Requests: 4, Failures: 1, LatencyMillis: metrics.RunningStat{Count: 3, Mean: 12.4, M2: 8, Max: 20}, OutputTokens: metrics.RunningStat{Mean: 5}},
		{ModelName: "b", Requests: 2},
	}

	rows := ModelRows(stats)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "4", "1", "12.4", "2.0", "20.0", "5.0"}, rows[0])
	assert.Len(t, rows[1], len(ModelHeaders))
}
