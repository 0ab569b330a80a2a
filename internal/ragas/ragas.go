// Package ragas scores collected answers for faithfulness to the retrieved
// context and relevancy to the question, writing one CSV per model.
package ragas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/chainguard-dev/clog"
	"github.com/mwiater/llmpanel/internal/collect"
	"github.com/mwiater/llmpanel/internal/embeddings"
	"github.com/mwiater/llmpanel/internal/table"
	"golang.org/x/sync/errgroup"
)

// Header is the column layout of every output file. The first column is the
// unnamed row index.
var Header = []string{"", "user_input", "retrieved_contexts", "response", "faithfulness", "answer_relevancy"}

// Options controls a scoring run.
type Options struct {
	Prompts        string
	Input          string
	OutputPrefix   string
	QuestionColumn string
	ContextColumn  string
	Models         []string
	Concurrency    int
	FailFast       bool
}

// ModelResult summarises the scores written for one model. Faithfulness and
// AnswerRelevancy are means over the rows that produced a score, NaN when
// none did.
type ModelResult struct {
	Model           string
	Output          string
	Rows            int
	Scored          int
	Failed          int
	Faithfulness    float64
	AnswerRelevancy float64
	faithfulCount   int
	relevancyCount  int
}

// Result summarises a scoring run.
type Result struct {
	Models []ModelResult
}

// Failed counts metric computations that returned an error.
func (r *Result) Failed() int {
	n := 0
	for _, m := range r.Models {
		n += m.Failed
	}
	return n
}

// OutputPath names the output file for model: slashes become underscores.
func OutputPath(prefix, model string) string {
	return prefix + strings.ReplaceAll(model, "/", "_") + ".csv"
}

type sample struct {
	question string
	context  string
}

type scored struct {
	response     string
	faithfulness float64
	relevancy    float64
	failed       bool
}

// Run scores every model's answers. Questions and contexts come from the
// prompts file. Answers are joined to them by row when both files list the
// same questions in the same order, and by question text otherwise.
func Run(ctx context.Context, scorer *Scorer, opts Options) (*Result, error) {
	if scorer == nil || scorer.Judge == nil {
		return nil, errors.New("ragas: judge provider is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	run := *scorer
	if run.Embedder != nil {
		run.Embedder = newMemoEmbedder(run.Embedder)
	}

	samples, err := loadSamples(opts)
	if err != nil {
		return nil, err
	}
	answers, err := table.Read(opts.Input)
	if err != nil {
		return nil, err
	}
	questionIdx := answers.ColumnIndex(collect.QuestionHeader)
	if questionIdx < 0 {
		return nil, fmt.Errorf("%s: column %q not found", opts.Input, collect.QuestionHeader)
	}
	rowFor := joinRows(samples, answers.Rows, questionIdx)

	log := clog.FromContext(ctx)
	result := &Result{}
	for _, model := range opts.Models {
		col := answers.ColumnIndex(model)
		if col < 0 {
			log.With("model", model).Warn("model has no answers column, skipping")
			continue
		}
		log.With("model", model, "samples", len(samples)).Info("Scoring answers")

		mr, err := scoreModel(ctx, &run, opts, model, samples, func(i int) string {
			if row := rowFor[i]; row >= 0 {
				return answers.Rows[row][col]
			}
			return ""
		})
		if err != nil {
			return result, err
		}
		result.Models = append(result.Models, mr)
	}
	return result, nil
}

func scoreModel(ctx context.Context, scorer *Scorer, opts Options, model string, samples []sample, answerFor func(int) string) (ModelResult, error) {
	rows := make([]scored, len(samples))
	var failed atomic.Int64
	log := clog.FromContext(ctx).With("model", model)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, s := range samples {
		rows[i] = scored{response: answerFor(i), faithfulness: math.NaN(), relevancy: math.NaN()}
		if strings.TrimSpace(rows[i].response) == "" {
			log.With("question", i+1).Warn("no answer to score")
			continue
		}
		g.Go(func() error {
			f, err := scorer.Faithfulness(gctx, s.question, rows[i].response, s.context)
			if err != nil {
				failed.Add(1)
				rows[i].failed = true
				log.With("question", i+1).Warnf("faithfulness failed: %v", err)
				if opts.FailFast {
					return fmt.Errorf("faithfulness for %s question %d: %w", model, i+1, err)
				}
			}
			rows[i].faithfulness = f

			r, err := scorer.AnswerRelevancy(gctx, s.question, rows[i].response)
			if err != nil {
				failed.Add(1)
				rows[i].failed = true
				log.With("question", i+1).Warnf("answer relevancy failed: %v", err)
				if opts.FailFast {
					return fmt.Errorf("answer relevancy for %s question %d: %w", model, i+1, err)
				}
			}
			rows[i].relevancy = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ModelResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ModelResult{}, err
	}

	mr := ModelResult{
		Model:           model,
		Output:          OutputPath(opts.OutputPrefix, model),
		Rows:            len(rows),
		Failed:          int(failed.Load()),
		Faithfulness:    math.NaN(),
		AnswerRelevancy: math.NaN(),
	}
	out := table.New(Header)
	for i, row := range rows {
		contexts, err := json.Marshal([]string{samples[i].context})
		if err != nil {
			return mr, err
		}
		out.Append([]string{
			strconv.Itoa(i),
			samples[i].question,
			string(contexts),
			row.response,
			formatScore(row.faithfulness),
			formatScore(row.relevancy),
		})
		mr.add(row)
	}
	if err := out.Write(mr.Output); err != nil {
		return mr, err
	}
	return mr, nil
}

func (m *ModelResult) add(row scored) {
	if strings.TrimSpace(row.response) != "" && !row.failed {
		m.Scored++
	}
	m.Faithfulness = runningMean(m.Faithfulness, row.faithfulness, &m.faithfulCount)
	m.AnswerRelevancy = runningMean(m.AnswerRelevancy, row.relevancy, &m.relevancyCount)
}

func runningMean(mean, value float64, count *int) float64 {
	if math.IsNaN(value) {
		return mean
	}
	*count++
	if *count == 1 {
		return value
	}
	return mean + (value-mean)/float64(*count)
}

// joinRows maps each sample to the answers row holding its answer, or -1.
// A run writes one answers row per prompt row, so aligned files are joined by
// position and repeated question labels keep their own answers.
func joinRows(samples []sample, rows [][]string, questionIdx int) []int {
	out := make([]int, len(samples))
	aligned := len(rows) == len(samples)
	for i := 0; aligned && i < len(rows); i++ {
		aligned = rows[i][questionIdx] == samples[i].question
	}
	if aligned {
		for i := range out {
			out[i] = i
		}
		return out
	}

	byQuestion := make(map[string]int, len(rows))
	for i, row := range rows {
		if _, dup := byQuestion[row[questionIdx]]; !dup {
			byQuestion[row[questionIdx]] = i
		}
	}
	for i, s := range samples {
		row, ok := byQuestion[s.question]
		if !ok {
			row = -1
		}
		out[i] = row
	}
	return out
}

func loadSamples(opts Options) ([]sample, error) {
	prompts, err := table.Read(opts.Prompts)
	if err != nil {
		return nil, err
	}
	questions, err := prompts.Column(opts.QuestionColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Prompts, err)
	}
	contexts, err := prompts.Column(opts.ContextColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Prompts, err)
	}
	samples := make([]sample, len(questions))
	for i := range questions {
		samples[i] = sample{question: questions[i], context: contexts[i]}
	}
	return samples, nil
}

// formatScore writes NaN as an empty cell.
func formatScore(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var _ embeddings.Embedder = (*memoEmbedder)(nil)
