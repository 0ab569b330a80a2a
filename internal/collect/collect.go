// Package collect sends every prompt to every configured model and gathers
// the answers into one table keyed by question and model name.
package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/mwiater/llmpanel/internal/appconfig"
	"github.com/mwiater/llmpanel/internal/providerfactory"
	"github.com/mwiater/llmpanel/internal/providers"
	"github.com/mwiater/llmpanel/internal/table"
	"github.com/mwiater/llmpanel/internal/util"
	"golang.org/x/sync/errgroup"
)

// QuestionHeader is the first column of the output table.
const QuestionHeader = "Question"

// Target is one model and the backend that serves it.
type Target struct {
	Backend string
	Model   string
}

// Options controls a prompt run.
type Options struct {
	Input          string
	Output         string
	QuestionColumn string
	ContextColumn  string
	SystemPrompt   string
	Targets        []Target
	Temperature    float64
	Concurrency    int
	QuestionDelay  time.Duration
	FailFast       bool
}

// ModelCount tallies the outcome of every call made to one model.
type ModelCount struct {
	Model    string
	Answered int
	Failed   int
}

// Result summarises a finished run.
type Result struct {
	Output    string
	Questions int
	Models    []ModelCount
}

// Failed returns the number of calls that produced no answer.
func (r *Result) Failed() int {
	total := 0
	for _, m := range r.Models {
		total += m.Failed
	}
	return total
}

// Answered returns the number of calls that produced an answer.
func (r *Result) Answered() int {
	total := 0
	for _, m := range r.Models {
		total += m.Answered
	}
	return total
}

// TargetsFrom resolves every model in opts to the backend that serves it.
func TargetsFrom(cfg *appconfig.Config, opts appconfig.ModelOptions) []Target {
	raw := opts.Targets()
	targets := make([]Target, 0, len(raw))
	for _, t := range raw {
		targets = append(targets, Target{Backend: providerfactory.Route(cfg, t.Provider), Model: t.Model})
	}
	return targets
}

// Backends returns the distinct backends used by targets.
func Backends(targets []Target) []string {
	seen := make(map[string]struct{}, len(targets))
	var out []string
	for _, t := range targets {
		if _, ok := seen[t.Backend]; ok {
			continue
		}
		seen[t.Backend] = struct{}{}
		out = append(out, t.Backend)
	}
	return out
}

// Run reads the prompts, asks every target each question and streams one
// output row per prompt. The header is Question followed by the model names
// in target order.
func Run(ctx context.Context, provider providers.ChatProvider, opts Options) (*Result, error) {
	if provider == nil {
		return nil, errors.New("collect: nil provider")
	}
	if len(opts.Targets) == 0 {
		return nil, errors.New("collect: no models configured")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = len(opts.Targets)
	}

	prompts, err := table.Read(opts.Input)
	if err != nil {
		return nil, err
	}
	questions, err := prompts.Column(opts.QuestionColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Input, err)
	}
	contexts, err := prompts.Column(opts.ContextColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Input, err)
	}

	header := []string{QuestionHeader}
	result := &Result{Output: opts.Output, Models: make([]ModelCount, len(opts.Targets))}
	for i, target := range opts.Targets {
		header = append(header, target.Model)
		result.Models[i].Model = target.Model
	}

	out, err := table.Create(opts.Output, header)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	log := clog.FromContext(ctx)
	for i, question := range questions {
		if i > 0 && opts.QuestionDelay > 0 {
			if err := sleep(ctx, opts.QuestionDelay); err != nil {
				return result, err
			}
		}
		log.With("question", i+1, "of", len(questions)).Info(util.TruncateRunes(util.SingleLine(question), 80))

		answers, err := askAll(ctx, provider, opts, contexts[i], result.Models)
		if err != nil {
			return result, err
		}
		if err := out.Write(append([]string{question}, answers...)); err != nil {
			return result, err
		}
		result.Questions++
	}

	if err := out.Close(); err != nil {
		return result, err
	}
	return result, nil
}

// askAll sends one prompt to every target concurrently. answers[i] belongs
// to opts.Targets[i] whatever order the calls finish in.
func askAll(ctx context.Context, provider providers.ChatProvider, opts Options, userPrompt string, counts []ModelCount) ([]string, error) {
	answers := make([]string, len(opts.Targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, target := range opts.Targets {
		g.Go(func() error {
			req := providers.Request{
				Provider:     target.Backend,
				Model:        target.Model,
				SystemPrompt: opts.SystemPrompt,
				Messages:     []providers.ChatMessage{providers.UserMessage(userPrompt)},
				Temperature:  providers.Float(opts.Temperature),
			}
			resp, err := provider.Complete(gctx, req)
			if err != nil {
				counts[i].Failed++
				clog.FromContext(ctx).With("model", target.Model, "provider", target.Backend).Warnf("request failed: %v", err)
				if opts.FailFast {
					return fmt.Errorf("model %s: %w", target.Model, err)
				}
				return nil
			}
			counts[i].Answered++
			answers[i] = resp.Content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return answers, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
