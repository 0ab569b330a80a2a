package ragas

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/mwiater/llmpanel/internal/embeddings"
	"github.com/mwiater/llmpanel/internal/llmjson"
	"github.com/mwiater/llmpanel/internal/prompts"
	"github.com/mwiater/llmpanel/internal/providers"
)

// generationTemperature is used for answer relevancy when several questions
// are generated from the same answer, so they are not all identical.
const generationTemperature = 0.3

var statementsSchema = map[string]any{
	"type":     "object",
	"required": []any{"statements"},
	"properties": map[string]any{
		"statements": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
}

var verdictsSchema = map[string]any{
	"type":     "object",
	"required": []any{"verdicts"},
	"properties": map[string]any{
		"verdicts": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"verdict"},
				"properties": map[string]any{
					"verdict": map[string]any{"type": "number"},
				},
			},
		},
	},
}

var questionSchema = map[string]any{
	"type":     "object",
	"required": []any{"question", "noncommittal"},
	"properties": map[string]any{
		"question":     map[string]any{"type": "string"},
		"noncommittal": map[string]any{"type": "number"},
	},
}

type statementsReply struct {
	Statements []string `json:"statements"`
}

type verdictsReply struct {
	Verdicts []struct {
		Statement string  `json:"statement"`
		Reason    string  `json:"reason"`
		Verdict   float64 `json:"verdict"`
	} `json:"verdicts"`
}

type questionReply struct {
	Question     string  `json:"question"`
	Noncommittal float64 `json:"noncommittal"`
}

// Scorer computes faithfulness and answer relevancy with an LLM judge and an
// embedder.
type Scorer struct {
	Judge        providers.ChatProvider
	Embedder     embeddings.Embedder
	Provider     string
	Model        string
	Temperature  float64
	Strictness   int
	TemplatesDir string
}

// Faithfulness splits answer into standalone statements and asks the judge
// which of them the retrieved context supports. The score is supported / judged. It is
// NaN when the answer yields no statements.
func (s *Scorer) Faithfulness(ctx context.Context, question, answer, retrieved string) (float64, error) {
	prompt, err := prompts.Load(s.TemplatesDir, prompts.FaithfulnessStatements, map[string]string{"Question": question, "Answer": answer})
	if err != nil {
		return math.NaN(), err
	}
	statements, err := ask[statementsReply](ctx, s, prompt, s.Temperature, statementsSchema)
	if err != nil {
		return math.NaN(), fmt.Errorf("extract statements: %w", err)
	}
	claims := nonEmpty(statements.Statements)
	if len(claims) == 0 {
		return math.NaN(), nil
	}

	prompt, err = prompts.Load(s.TemplatesDir, prompts.FaithfulnessVerdicts, map[string]any{"Context": retrieved, "Statements": claims})
	if err != nil {
		return math.NaN(), err
	}
	verdicts, err := ask[verdictsReply](ctx, s, prompt, s.Temperature, verdictsSchema)
	if err != nil {
		return math.NaN(), fmt.Errorf("judge statements: %w", err)
	}
	if len(verdicts.Verdicts) == 0 {
		return math.NaN(), nil
	}
	supported := 0
	for _, v := range verdicts.Verdicts {
		if v.Verdict == 1 {
			supported++
		}
	}
	return float64(supported) / float64(len(verdicts.Verdicts)), nil
}

// AnswerRelevancy generates Strictness questions from answer and returns the
// mean cosine similarity between their embeddings and the embedding of the
// original question. The score is 0 when every generation is noncommittal
// and NaN when the judge produced no usable question.
func (s *Scorer) AnswerRelevancy(ctx context.Context, question, answer string) (float64, error) {
	if s.Embedder == nil {
		return math.NaN(), errors.New("answer relevancy needs an embedder")
	}
	n := s.Strictness
	if n <= 0 {
		n = 1
	}
	temperature := s.Temperature
	if n > 1 {
		temperature = generationTemperature
	}

	prompt, err := prompts.Load(s.TemplatesDir, prompts.AnswerRelevancy, map[string]string{"Answer": answer})
	if err != nil {
		return math.NaN(), err
	}

	var generated []string
	allNoncommittal := true
	for range n {
		reply, err := ask[questionReply](ctx, s, prompt, temperature, questionSchema)
		if err != nil {
			return math.NaN(), fmt.Errorf("generate question: %w", err)
		}
		if reply.Noncommittal == 0 {
			allNoncommittal = false
		}
		if q := strings.TrimSpace(reply.Question); q != "" {
			generated = append(generated, q)
		}
	}
	if len(generated) == 0 {
		return math.NaN(), nil
	}
	if allNoncommittal {
		return 0, nil
	}

	original, err := s.Embedder.Embed(ctx, question)
	if err != nil {
		return math.NaN(), fmt.Errorf("embed question: %w", err)
	}
	sum := 0.0
	for _, q := range generated {
		vector, err := s.Embedder.Embed(ctx, q)
		if err != nil {
			return math.NaN(), fmt.Errorf("embed generated question: %w", err)
		}
		sum += embeddings.Cosine(original, vector)
	}
	return sum / float64(len(generated)), nil
}

func ask[T any](ctx context.Context, s *Scorer, prompt string, temperature float64, schema map[string]any) (T, error) {
	resp, err := s.Judge.Complete(ctx, providers.Request{
		Provider:    s.Provider,
		Model:       s.Model,
		Messages:    []providers.ChatMessage{providers.UserMessage(prompt)},
		Temperature: providers.Float(temperature),
		JSONMode:    true,
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return llmjson.ExtractValid[T](schema, resp.Content)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// memoEmbedder remembers vectors for the length of a run, so the question
// embedding is computed once for all models.
type memoEmbedder struct {
	inner embeddings.Embedder
	mu    sync.Mutex
	seen  map[string][]float64
}

func newMemoEmbedder(inner embeddings.Embedder) *memoEmbedder {
	return &memoEmbedder{inner: inner, seen: make(map[string][]float64)}
}

func (m *memoEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	vector, ok := m.seen[text]
	m.mu.Unlock()
	if ok {
		return vector, nil
	}
	vector, err := m.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.seen[text] = vector
	m.mu.Unlock()
	return vector, nil
}

func (m *memoEmbedder) Model() string {
	return m.inner.Model()
}
