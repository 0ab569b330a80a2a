// internal/commands/questions.go
package llmpanel

import (
	"errors"
	"strconv"

	"github.com/mwiater/llmpanel/internal/providerfactory"
	"github.com/mwiater/llmpanel/internal/questions"
	"github.com/mwiater/llmpanel/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// questionsCmd implements 'questions'.
var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Generate test questions from interview transcripts",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, s.close()) }()

		qc := s.cfg.Questions
		backend := providerfactory.Route(s.cfg, qc.Provider)
		provider, err := s.chatProvider(backend)
		if err != nil {
			return err
		}
		res, err := questions.Run(s.ctx, provider, questions.Options{
			Documents:    qc.Documents,
			OutputDir:    qc.OutputDir,
			Provider:     backend,
			Model:        qc.Model,
			Temperature:  qc.Temperature,
			Topic:        qc.Topic,
			Delay:        qc.Delay(),
			TemplatesDir: s.cfg.TemplatesDir,
			FailFast:     s.cfg.FailFast,
		})
		if res != nil {
			renderErr := report.Render(cmd.OutOrStdout(), report.Summary{
				Title:   "Question generation (" + qc.Model + ")",
				Output:  res.Output,
				Headers: []string{"Documents", "Generated", "Failed"},
				Rows:    [][]string{{strconv.Itoa(res.Documents), strconv.Itoa(res.Generated), strconv.Itoa(res.Failed)}},
				OK:      res.Generated,
				Failed:  res.Failed,
			})
			err = errors.Join(err, renderErr)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)
	questionsCmd.Flags().String("documents", "", "glob of transcripts to read, ** allowed (default *.docx)")
	questionsCmd.Flags().String("outputDir", "", "directory for the generated CSV (default gptoutputs)")
	questionsCmd.Flags().String("topic", "", "what the consultant discusses (default Pumas)")
	questionsCmd.Flags().String("model", "", "generation model (default gpt-4o)")
	for _, name := range []string{"documents", "outputDir", "topic", "model"} {
		_ = viper.BindPFlag("questions."+name, questionsCmd.Flags().Lookup(name))
	}
}
