// internal/commands/list.go
package llmpanel

import "github.com/spf13/cobra"

// listCmd groups the 'list' subcommands.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List commands and models",
}

func init() {
	rootCmd.AddCommand(listCmd)
}
