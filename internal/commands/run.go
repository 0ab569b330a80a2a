// internal/commands/run.go
package llmpanel

import (
	"errors"

	"github.com/mwiater/llmpanel/internal/collect"
	"github.com/mwiater/llmpanel/internal/prompts"
	"github.com/mwiater/llmpanel/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runCmd implements 'run', which asks every model in the model options file
// every question in the prompts file.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send every prompt to every model and collect the answers",
	Long: `The 'run' command reads the prompts CSV (question and question_context columns),
sends each question context to every model listed in the model options file, and
writes one row per prompt: the question followed by each model's answer.`,
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
		targets := collect.TargetsFrom(s.cfg, options)
		provider, err := s.chatProvider(collect.Backends(targets)...)
		if err != nil {
			return err
		}
		systemPrompt, err := prompts.Load(s.cfg.TemplatesDir, s.cfg.Run.SystemPrompt, nil)
		if err != nil {
			return err
		}

		res, err := collect.Run(s.ctx, provider, collect.Options{
			Input:          s.cfg.Run.Input,
			Output:         s.cfg.Run.Output,
			QuestionColumn: s.cfg.Run.QuestionColumn,
			ContextColumn:  s.cfg.Run.ContextColumn,
			SystemPrompt:   systemPrompt,
			Targets:        targets,
			Temperature:    s.cfg.Temperature,
			Concurrency:    s.cfg.Concurrency,
			QuestionDelay:  s.cfg.QuestionDelay(),
			FailFast:       s.cfg.FailFast,
		})
		if res != nil {
			renderErr := report.Render(cmd.OutOrStdout(), report.Summary{
				Title:   "Prompt run",
				Output:  res.Output,
				Headers: report.ModelHeaders,
				Rows:    report.ModelRows(s.metrics.Aggregator().Snapshot(options.Models()...)),
				OK:      res.Answered(),
				Failed:  res.Failed(),
			})
			err = errors.Join(err, renderErr)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("input", "", "prompts CSV (default prompts.csv)")
	runCmd.Flags().String("output", "", "answers CSV (default multillm.csv)")
	_ = viper.BindPFlag("run.input", runCmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("run.output", runCmd.Flags().Lookup("output"))
}
