// internal/commands/rubric.go
package llmpanel

import (
	"errors"
	"strconv"

	"github.com/mwiater/llmpanel/internal/providerfactory"
	"github.com/mwiater/llmpanel/internal/report"
	"github.com/mwiater/llmpanel/internal/rubric"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rubricCmd implements 'rubric'.
var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Grade every answer against the rubric with a judge model",
	Long: `The 'rubric' command sends each (question, answer, rubric) triple to the
judge model, parses the per-criterion scores from its JSON reply and writes
one row per model and question with the scores and their total.`,
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
		backend := providerfactory.Route(s.cfg, s.cfg.Rubric.Provider)
		judge, err := s.chatProvider(backend)
		if err != nil {
			return err
		}

		res, err := rubric.Run(s.ctx, judge, rubric.Options{
			Rubric: s.cfg.Rubric.Rubric,
			Input:  s.cfg.Rubric.Input,
			Output: s.cfg.Rubric.Output,
			Judge: rubric.Judge{
				Provider:    backend,
				Model:       s.cfg.Rubric.Model,
				Temperature: s.cfg.RubricTemperature(),
			},
			Models:       options.Models(),
			Criteria:     s.cfg.Rubric.Criteria,
			TemplatesDir: s.cfg.TemplatesDir,
			Concurrency:  s.cfg.Concurrency,
			FailFast:     s.cfg.FailFast,
		})
		if res != nil {
			rows := make([][]string, 0, len(res.Models))
			for _, m := range res.Models {
				rows = append(rows, []string{
					m.Model,
					strconv.Itoa(m.Graded),
					strconv.Itoa(m.Failed),
					strconv.FormatFloat(m.MeanTotal, 'f', 1, 64),
				})
			}
			renderErr := report.Render(cmd.OutOrStdout(), report.Summary{
				Title:   "Rubric scores (" + s.cfg.Rubric.Model + ")",
				Output:  res.Output,
				Headers: []string{"Model", "Graded", "Failed", "Mean total"},
				Rows:    rows,
				OK:      res.Graded(),
				Failed:  res.Failed(),
			})
			err = errors.Join(err, renderErr)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(rubricCmd)
	rubricCmd.Flags().String("rubric", "", "rubric CSV (default llmrubric.csv)")
	rubricCmd.Flags().String("input", "", "answers CSV (default: the run output)")
	rubricCmd.Flags().String("output", "", "scores CSV (default LLM-rubric-evaluation.csv)")
	rubricCmd.Flags().String("provider", "", "judge provider (default openai)")
	rubricCmd.Flags().String("model", "", "judge model (default gpt-5-mini)")
	for _, name := range []string{"rubric", "input", "output", "provider", "model"} {
		_ = viper.BindPFlag("rubric."+name, rubricCmd.Flags().Lookup(name))
	}
}
