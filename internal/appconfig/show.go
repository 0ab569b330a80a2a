package appconfig

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the current configuration and the model options it points to.
func ShowConfig(out io.Writer, cfg Config, opts *ModelOptions, colored bool) {
	if cfg.ConfigPath == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", cfg.ConfigPath)
	}

	pp.ColoringEnabled = colored
	fmt.Fprintln(out, "Current configuration:")
	pp.Fprintln(out, cfg)

	fmt.Fprintf(out, "\nModel options (%s):\n", cfg.ModelOptions)
	if opts == nil {
		fmt.Fprintln(out, "  (not loaded)")
		return
	}
	for _, entry := range opts.Entries {
		fmt.Fprintf(out, "  %s:\n", entry.Provider)
		for _, model := range entry.Models {
			fmt.Fprintf(out, "    - %s\n", model)
		}
	}
}
