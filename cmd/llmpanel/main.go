// cmd/llmpanel/main.go
package main

import (
	llmpanel "github.com/mwiater/llmpanel/internal/commands"
)

// Set by the linker: -ldflags "-X main.version=... -X main.commit=... -X main.date=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = llmpanel.SetVersionInfo
	executeCmd     = llmpanel.Execute
)

// main starts the llmpanel CLI by delegating to the cobra root command.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}
