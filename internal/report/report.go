// Package report prints the end-of-run summary for each pipeline.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mwiater/llmpanel/internal/metrics"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	pathStyle  = lipgloss.NewStyle().Faint(true)
	okCount    = color.New(color.FgGreen).SprintfFunc()
	failCount  = color.New(color.FgRed).SprintfFunc()
)

// Summary is the table printed when a pipeline finishes.
type Summary struct {
	Title   string
	Output  string
	Headers []string
	Rows    [][]string
	OK      int
	Failed  int
}

// Render writes the title, the summary table and the ok/failed counters.
func Render(w io.Writer, s Summary) error {
	if s.Title != "" {
		if _, err := fmt.Fprintln(w, titleStyle.Render(s.Title)); err != nil {
			return err
		}
	}
	if len(s.Headers) > 0 {
		table := createStandardTable(s.Headers, w)
		for _, row := range s.Rows {
			if err := table.Append(row); err != nil {
				return fmt.Errorf("append summary row: %w", err)
			}
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("render summary: %w", err)
		}
	}
	line := okCount("ok: %d", s.OK)
	if s.Failed > 0 {
		line += "  " + failCount("failed: %d", s.Failed)
	} else {
		line += "  failed: 0"
	}
	if s.Output != "" {
		line += "  " + pathStyle.Render("-> "+s.Output)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// ModelHeaders are the columns produced by ModelRows.
var ModelHeaders = []string{"Model", "Requests", "Failed", "Mean latency (ms)", "Latency stddev (ms)", "Max latency (ms)", "Mean output tokens"}

// ModelRows turns aggregated request statistics into summary rows.
func ModelRows(stats []metrics.ModelMetrics) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.ModelName,
			strconv.FormatInt(s.Requests, 10),
			strconv.FormatInt(s.Failures, 10),
			formatFloat(s.LatencyMillis.Mean),
			formatFloat(s.LatencyMillis.StdDev()),
			formatFloat(s.LatencyMillis.Max),
			formatFloat(s.OutputTokens.Mean),
		})
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// createStandardTable creates a markdown-style table writer.
func createStandardTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
