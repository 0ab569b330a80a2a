package llmpanel

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/mwiater/llmpanel/internal/appconfig"
	"github.com/spf13/cobra"
)

// showConfigCmd implements the 'show config' command, which displays the current configuration settings.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings and the model panel",
	Long:  `Show config settings ensuring that the JSON configs are loaded properly and overridden by flags accordingly, followed by the models listed in the model options file.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := GetConfig()
		if cfg == nil {
			defaults := appconfig.Default()
			cfg = &defaults
		}

		var opts *appconfig.ModelOptions
		loaded, err := appconfig.LoadModelOptions(cfg.ModelOptions)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		} else {
			opts = &loaded
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), *cfg, opts, !color.NoColor)
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
}
