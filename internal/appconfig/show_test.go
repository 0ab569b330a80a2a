package appconfig

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShowConfig(t *testing.T) {
	cfg := Default()
	opts := &ModelOptions{Entries: []ProviderModels{{Provider: "openai", Models: []string{"gpt-4o"}}}}

	var buf bytes.Buffer
	ShowConfig(&buf, cfg, opts, false)

	out := buf.String()
	assert.Contains(t, out, "No config file loaded")
	assert.Contains(t, out, "Current configuration:")
	assert.Contains(t, out, "multillm.csv")
	assert.Contains(t, out, "  openai:\n    - gpt-4o\n")
}
