// internal/commands/ragas.go
package llmpanel

import (
	"errors"
	"math"
	"strconv"

	"github.com/mwiater/llmpanel/internal/providerfactory"
	"github.com/mwiater/llmpanel/internal/ragas"
	"github.com/mwiater/llmpanel/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ragasCmd implements 'ragas'.
var ragasCmd = &cobra.Command{
	Use:   "ragas",
	Short: "Score faithfulness and answer relevancy for every model",
	Long: `The 'ragas' command joins the prompts file with the answers file and, for
each model, computes faithfulness (are the answer's claims supported by the
question context) and answer relevancy (do questions generated from the
answer resemble the original question). One CSV is written per model.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, s.close()) }()

		options, err := s.modelOptions()
		if err != nil {
			return err
		}
		backend := providerfactory.Route(s.cfg, s.cfg.Ragas.Provider)
		judge, err := s.chatProvider(backend)
		if err != nil {
			return err
		}
		embedder, err := s.embedder(s.cfg.Ragas.EmbeddingProvider, s.cfg.Ragas.EmbeddingModel)
		if err != nil {
			return err
		}

		scorer := &ragas.Scorer{
			Judge:        judge,
			Embedder:     embedder,
			Provider:     backend,
			Model:        s.cfg.Ragas.Model,
			Temperature:  s.cfg.Temperature,
			Strictness:   s.cfg.Ragas.Strictness,
			TemplatesDir: s.cfg.TemplatesDir,
		}
		res, err := ragas.Run(s.ctx, scorer, ragas.Options{
			Prompts:        s.cfg.Ragas.Prompts,
			Input:          s.cfg.Ragas.Input,
			OutputPrefix:   s.cfg.Ragas.OutputPrefix,
			QuestionColumn: s.cfg.Run.QuestionColumn,
			ContextColumn:  s.cfg.Run.ContextColumn,
			Models:         options.Models(),
			Concurrency:    s.cfg.Concurrency,
			FailFast:       s.cfg.FailFast,
		})
		if res != nil {
			rows := make([][]string, 0, len(res.Models))
			scored := 0
			for _, m := range res.Models {
				rows = append(rows, []string{
					m.Model,
					strconv.Itoa(m.Rows),
					strconv.Itoa(m.Scored),
					strconv.Itoa(m.Failed),
					meanCell(m.Faithfulness),
					meanCell(m.AnswerRelevancy),
					m.Output,
				})
				scored += m.Scored
			}
			renderErr := report.Render(cmd.OutOrStdout(), report.Summary{
				Title:   "RAG metrics (" + s.cfg.Ragas.Model + ")",
				Output:  s.cfg.Ragas.OutputPrefix + "*.csv",
				Headers: []string{"Model", "Rows", "Scored", "Failed", "Faithfulness", "Answer relevancy", "File"},
				Rows:    rows,
				OK:      scored,
				Failed:  res.Failed(),
			})
			err = errors.Join(err, renderErr)
		}
		return err
	},
}

func meanCell(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func init() {
	rootCmd.AddCommand(ragasCmd)
	ragasCmd.Flags().String("prompts", "", "prompts CSV with the question contexts (default: the run input)")
	ragasCmd.Flags().String("input", "", "answers CSV (default: the run output)")
	ragasCmd.Flags().String("outputPrefix", "", "prefix of the per-model output files (default ragas_evaluation_)")
	ragasCmd.Flags().Int("strictness", 0, "questions generated per answer for relevancy (default 3)")
	for _, name := range []string{"prompts", "input", "outputPrefix", "strictness"} {
		_ = viper.BindPFlag("ragas."+name, ragasCmd.Flags().Lookup(name))
	}
}
