// Package questions turns interview transcripts into candidate test
// questions for the chatbot under evaluation.
package questions

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/chainguard-dev/clog"
	"github.com/mwiater/llmpanel/internal/prompts"
	"github.com/mwiater/llmpanel/internal/providers"
	"github.com/mwiater/llmpanel/internal/table"
)

// Header is the output column layout.
var Header = []string{"Document Name", "Question"}

// Options controls a generation run.
type Options struct {
	Documents    string
	OutputDir    string
	Provider     string
	Model        string
	Temperature  float64
	Topic        string
	Delay        time.Duration
	TemplatesDir string
	FailFast     bool
}

// Result summarises a generation run.
type Result struct {
	Output    string
	Documents int
	Generated int
	Failed    int
}

// OutputPath names the output file after the model and temperature.
func OutputPath(dir, model string, temperature float64) string {
	name := fmt.Sprintf("interview_questions_%s_temp_%s.csv",
		strings.ReplaceAll(model, "/", "_"),
		strconv.FormatFloat(temperature, 'g', -1, 64))
	return filepath.Join(dir, name)
}

// Discover expands the documents pattern (which may use **) into a sorted
// list of files.
func Discover(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("match documents %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Run sends each document, one at a time, to the model and writes one row
// per document with the generated questions.
func Run(ctx context.Context, provider providers.ChatProvider, opts Options) (*Result, error) {
	if provider == nil {
		return nil, errors.New("questions: nil provider")
	}
	documents, err := Discover(opts.Documents)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no documents match %q", opts.Documents)
	}

	systemPrompt, err := prompts.Load(opts.TemplatesDir, prompts.QuestionGeneration, map[string]string{"Topic": opts.Topic})
	if err != nil {
		return nil, err
	}

	result := &Result{Output: OutputPath(opts.OutputDir, opts.Model, opts.Temperature), Documents: len(documents)}
	out, err := table.Create(result.Output, Header)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	log := clog.FromContext(ctx)
	for i, path := range documents {
		if i > 0 && opts.Delay > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				return result, err
			}
		}
		name := filepath.Base(path)
		log.With("document", name, "of", len(documents)).Info("Processing document")

		generated, err := generate(ctx, provider, opts, systemPrompt, path)
		if err != nil {
			result.Failed++
			log.With("document", name).Warnf("question generation failed: %v", err)
			if opts.FailFast {
				return result, fmt.Errorf("%s: %w", name, err)
			}
		} else {
			result.Generated++
		}
		if err := out.Write([]string{name, generated}); err != nil {
			return result, err
		}
	}
	if err := out.Close(); err != nil {
		return result, err
	}
	return result, nil
}

func generate(ctx context.Context, provider providers.ChatProvider, opts Options, systemPrompt, path string) (string, error) {
	text, err := ReadDocument(path)
	if err != nil {
		return "", err
	}
	resp, err := provider.Complete(ctx, providers.Request{
		Provider:     opts.Provider,
		Model:        opts.Model,
		SystemPrompt: systemPrompt,
		Messages:     []providers.ChatMessage{providers.UserMessage(text)},
		Temperature:  providers.Float(opts.Temperature),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
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
