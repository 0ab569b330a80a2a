// Package rubric grades collected answers with an LLM judge against a
// rubric table.
package rubric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/mwiater/llmpanel/internal/appconfig"
	"github.com/mwiater/llmpanel/internal/collect"
	"github.com/mwiater/llmpanel/internal/llmjson"
	"github.com/mwiater/llmpanel/internal/prompts"
	"github.com/mwiater/llmpanel/internal/providers"
	"github.com/mwiater/llmpanel/internal/table"
	"golang.org/x/sync/errgroup"
)

// Output column names.
const (
	QuestionHeader  = "Question"
	ModelHeader     = "Model Name"
	TotalHeader     = "Total Score"
	criteriaColumn  = "Criteria"
	criterionColumn = "Criterion"
)

// Judge identifies the model that grades answers.
type Judge struct {
	Provider    string
	Model       string
	Temperature float64
}

// Options controls a rubric run.
type Options struct {
	Rubric       string
	Input        string
	Output       string
	Judge        Judge
	Models       []string
	Criteria     []string
	TemplatesDir string
	Concurrency  int
	FailFast     bool
}

// Score is the judgement for one answer.
type Score struct {
	Model    string
	Question int
	Scores   map[string]float64
	Total    float64
	// Graded is false when the answer was empty or the judge failed.
	Graded bool
}

// ModelSummary aggregates the scores of one model.
type ModelSummary struct {
	Model     string
	Graded    int
	Failed    int
	MeanTotal float64
}

// Result summarises a rubric run.
type Result struct {
	Output   string
	Criteria []string
	Scores   []Score
	Models   []ModelSummary
}

// Failed counts answers that could not be graded.
func (r *Result) Failed() int {
	n := 0
	for _, m := range r.Models {
		n += m.Failed
	}
	return n
}

// Graded counts answers that received scores.
func (r *Result) Graded() int {
	n := 0
	for _, m := range r.Models {
		n += m.Graded
	}
	return n
}

// Criteria picks the criterion names: the rubric's Criteria (or Criterion)
// column when present, else configured, else appconfig.DefaultCriteria.
func Criteria(rubric *table.Table, configured []string) []string {
	for _, column := range []string{criteriaColumn, criterionColumn} {
		values, err := rubric.Column(column)
		if err != nil {
			continue
		}
		if names := uniqueNonEmpty(values); len(names) > 0 {
			return names
		}
	}
	if names := uniqueNonEmpty(configured); len(names) > 0 {
		return names
	}
	return append([]string(nil), appconfig.DefaultCriteria...)
}

// RubricJSON renders the rubric as a JSON array of row objects whose keys
// follow the header order.
func RubricJSON(rubric *table.Table) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for r, row := range rubric.Rows {
		if r > 0 {
			buf.WriteString(", ")
		}
		buf.WriteByte('{')
		for i, name := range rubric.Header {
			if i > 0 {
				buf.WriteString(", ")
			}
			key, err := json.Marshal(name)
			if err != nil {
				return "", err
			}
			value, err := json.Marshal(row[i])
			if err != nil {
				return "", err
			}
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

// Schema requires a number for every criterion.
func Schema(criteria []string) map[string]any {
	properties := make(map[string]any, len(criteria))
	required := make([]any, 0, len(criteria))
	for _, c := range criteria {
		properties[c] = map[string]any{"type": "number"}
		required = append(required, c)
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// ParseScores validates a judge reply and returns the criterion scores and
// their sum. Keys other than the criteria are ignored.
func ParseScores(reply string, criteria []string) (map[string]float64, float64, error) {
	doc, err := llmjson.ExtractValid[map[string]any](Schema(criteria), reply)
	if err != nil {
		return nil, 0, err
	}
	scores := make(map[string]float64, len(criteria))
	total := 0.0
	for _, c := range criteria {
		v, ok := doc[c].(float64)
		if !ok {
			return nil, 0, fmt.Errorf("criterion %q is not a number", c)
		}
		scores[c] = v
		total += v
	}
	return scores, total, nil
}

type job struct {
	model    string
	question int
	text     string
	answer   string
}

// Run grades every answer of every model and writes one row per
// (model, question): Question N, Model Name, each criterion, Total Score.
func Run(ctx context.Context, provider providers.ChatProvider, opts Options) (*Result, error) {
	if provider == nil {
		return nil, errors.New("rubric: nil provider")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	rubricTable, err := table.Read(opts.Rubric)
	if err != nil {
		return nil, err
	}
	answers, err := table.Read(opts.Input)
	if err != nil {
		return nil, err
	}
	questions, err := answers.Column(collect.QuestionHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Input, err)
	}

	criteria := Criteria(rubricTable, opts.Criteria)
	rubricText, err := RubricJSON(rubricTable)
	if err != nil {
		return nil, fmt.Errorf("encode rubric: %w", err)
	}
	systemPrompt, err := prompts.Load(opts.TemplatesDir, prompts.RubricJudge, map[string]any{"Criteria": criteria})
	if err != nil {
		return nil, err
	}

	log := clog.FromContext(ctx)
	var jobs []job
	for _, model := range opts.Models {
		column, err := answers.Column(model)
		if err != nil {
			log.With("model", model).Warn("model has no answers column, skipping")
			continue
		}
		for i, answer := range column {
			jobs = append(jobs, job{model: model, question: i + 1, text: questions[i], answer: answer})
		}
	}

	scores := make([]Score, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, j := range jobs {
		scores[i] = Score{Model: j.model, Question: j.question}
		if strings.TrimSpace(j.answer) == "" {
			log.With("model", j.model, "question", j.question).Warn("empty answer, not graded")
			continue
		}
		g.Go(func() error {
			req := providers.Request{
				Provider:     opts.Judge.Provider,
				Model:        opts.Judge.Model,
				SystemPrompt: systemPrompt,
				Messages: []providers.ChatMessage{providers.UserMessage(
					fmt.Sprintf("Question: %s\nAnswer: %s\nRubric: %s", j.text, j.answer, rubricText),
				)},
				Temperature: providers.Float(opts.Judge.Temperature),
				JSONMode:    true,
			}
			resp, err := provider.Complete(gctx, req)
			if err == nil {
				var total float64
				var parsed map[string]float64
				parsed, total, err = ParseScores(resp.Content, criteria)
				if err == nil {
					scores[i].Scores = parsed
					scores[i].Total = total
					scores[i].Graded = true
					return nil
				}
			}
			log.With("model", j.model, "question", j.question).Warnf("grading failed: %v", err)
			if opts.FailFast {
				return fmt.Errorf("grade %s question %d: %w", j.model, j.question, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header := append([]string{QuestionHeader, ModelHeader}, criteria...)
	header = append(header, TotalHeader)
	out := table.New(header)
	for _, s := range scores {
		row := []string{fmt.Sprintf("Question %d", s.Question), s.Model}
		if s.Graded {
			for _, c := range criteria {
				row = append(row, formatScore(s.Scores[c]))
			}
			row = append(row, formatScore(s.Total))
		}
		out.Append(row)
	}
	if err := out.Write(opts.Output); err != nil {
		return nil, err
	}

	return &Result{Output: opts.Output, Criteria: criteria, Scores: scores, Models: summarize(opts.Models, scores)}, nil
}

func summarize(models []string, scores []Score) []ModelSummary {
	byModel := make(map[string]*ModelSummary, len(models))
	var order []string
	for _, s := range scores {
		m, ok := byModel[s.Model]
		if !ok {
			m = &ModelSummary{Model: s.Model}
			byModel[s.Model] = m
			order = append(order, s.Model)
		}
		if !s.Graded {
			m.Failed++
			continue
		}
		m.Graded++
		m.MeanTotal += (s.Total - m.MeanTotal) / float64(m.Graded)
	}
	out := make([]ModelSummary, 0, len(order))
	for _, name := range order {
		out = append(out, *byModel[name])
	}
	return out
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
