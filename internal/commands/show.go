// internal/commands/show.go
package llmpanel

import "github.com/spf13/cobra"

// showCmd groups the 'show' subcommands.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration details",
}

func init() {
	rootCmd.AddCommand(showCmd)
}
