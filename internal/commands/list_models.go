// internal/commands/list_models.go
package llmpanel

import (
	"github.com/mwiater/llmpanel/internal/appconfig"
	"github.com/mwiater/llmpanel/internal/providerfactory"
	"github.com/mwiater/llmpanel/internal/report"
	"github.com/spf13/cobra"
)

// listModelsCmd implements 'list models', which prints each model in the
// panel with its provider key and the backend that will serve it.
var listModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models in the panel and the backend serving each",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			defaults := appconfig.Default()
			cfg = &defaults
		}
		options, err := appconfig.LoadModelOptions(cfg.ModelOptions)
		if err != nil {
			return err
		}

		models := options.Models()
		rows := make([][]string, 0, len(models))
		for _, model := range models {
			key, _ := options.ProviderFor(model)
			rows = append(rows, []string{model, key, providerfactory.Route(cfg, key)})
		}
		return report.Render(cmd.OutOrStdout(), report.Summary{
			Title:   "Model panel",
			Output:  cfg.ModelOptions,
			Headers: []string{"Model", "Provider key", "Backend"},
			Rows:    rows,
			OK:      len(rows),
		})
	},
}

func init() {
	listCmd.AddCommand(listModelsCmd)
}
