// internal/commands/embed.go
package llmpanel

import (
	"errors"
	"strconv"

	"github.com/mwiater/llmpanel/internal/report"
	"github.com/mwiater/llmpanel/internal/vectorize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// embedCmd implements 'embed'.
var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Replace every answer cell with its embedding vector",
	Long: `The 'embed' command reads an answers CSV and writes a table with the same
shape where each non-empty cell holds the embedding of its text, formatted
as "[v1, v2, ...]". Empty cells stay empty.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, s.close()) }()

		embedder, err := s.embedder(s.cfg.Embed.Provider, s.cfg.Embed.Model)
		if err != nil {
			return err
		}
		res, err := vectorize.Run(s.ctx, embedder, vectorize.Options{
			Input:       s.cfg.Embed.Input,
			Output:      s.cfg.Embed.Output,
			Concurrency: s.cfg.Concurrency,
			FailFast:    s.cfg.FailFast,
		})
		if res != nil {
			renderErr := report.Render(cmd.OutOrStdout(), report.Summary{
				Title:   "Embeddings (" + embedder.Model() + ")",
				Output:  res.Output,
				Headers: []string{"Cells", "Embedded", "Empty", "Failed"},
				Rows: [][]string{{
					strconv.Itoa(res.Rows * res.Columns),
					strconv.Itoa(res.Embedded),
					strconv.Itoa(res.Empty),
					strconv.Itoa(res.Failed),
				}},
				OK:     res.Embedded,
				Failed: res.Failed,
			})
			err = errors.Join(err, renderErr)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().String("input", "", "answers CSV (default: the run output)")
	embedCmd.Flags().String("output", "", "vectors CSV (default multillm-embedd.csv)")
	embedCmd.Flags().String("provider", "", "embedding provider (default openai)")
	embedCmd.Flags().String("model", "", "embedding model (default text-embedding-3-small)")
	embedCmd.Flags().String("redisAddr", "", "cache embeddings in this Redis instance")
	for _, name := range []string{"input", "output", "provider", "model", "redisAddr"} {
		_ = viper.BindPFlag("embed."+name, embedCmd.Flags().Lookup(name))
	}
}
