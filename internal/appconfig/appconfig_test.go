// internal/appconfig/appconfig_test.go
package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// TestLoadAppliesDefaults verifies that a minimal file is filled in with the
// defaults every pipeline relies on.
func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"concurrency": 2}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 600, cfg.TimeoutSeconds)
	assert.Equal(t, 600*time.Second, cfg.RequestTimeout())
	assert.Equal(t, time.Second, cfg.QuestionDelay())
	assert.Equal(t, DefaultModelOptionsPath, cfg.ModelOptions)
	assert.Equal(t, "openrouter", cfg.DefaultProvider)
	assert.Equal(t, "multillm.csv", cfg.Run.Output)
	assert.Equal(t, "multillm.csv", cfg.Embed.Input)
	assert.Equal(t, "text-embedding-3-small", cfg.Embed.Model)
	assert.Equal(t, "gpt-5-mini", cfg.Rubric.Model)
	assert.Equal(t, 1.0, cfg.RubricTemperature())
	assert.Equal(t, 3, cfg.Ragas.Strictness)
	assert.Equal(t, "Pumas", cfg.Questions.Topic)
	assert.Equal(t, 100*time.Millisecond, cfg.Questions.Delay())
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "llmpanel.log", cfg.LogFilePath())
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{
		"temperature": 0.5,
		"questionDelayMs": -1,
		"run": {"output": "answers.csv"},
		"rubric": {"temperature": 0},
		"retry": {"maxRetries": -1},
		"logFile": "logs/run.log"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Temperature)
	assert.Equal(t, time.Duration(0), cfg.QuestionDelay())
	assert.Equal(t, "answers.csv", cfg.Run.Output)
	assert.Equal(t, "answers.csv", cfg.Embed.Input, "downstream inputs follow the run output")
	assert.Equal(t, 0.0, cfg.RubricTemperature())
	assert.Equal(t, 0, cfg.Retry.MaxRetries)
	assert.Equal(t, "logs/run.log", cfg.LogFilePath())
}

func TestLoadKeepsZeroDelays(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{
		"questionDelayMs": 0,
		"questions": {"delayMs": 0}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.QuestionDelayMs)
	assert.Zero(t, *cfg.QuestionDelayMs)
	assert.Equal(t, time.Duration(0), cfg.QuestionDelay())
	assert.Equal(t, time.Duration(0), cfg.Questions.Delay())
}

func TestDelaysWithoutDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, time.Second, cfg.QuestionDelay())
	assert.Equal(t, 100*time.Millisecond, cfg.Questions.Delay())

	cfg.Questions.DelayMs = intPtr(-5)
	assert.Equal(t, time.Duration(0), cfg.Questions.Delay())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeConfig(t, dir, `{ "run": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read config file")

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration file found")
}

func TestLoadDefaultPathFallsBackToLegacy(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `{"concurrency": 4}`)

	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, legacyConfigPath, cfg.ConfigPath)
}

func TestProviderResolution(t *testing.T) {
	cfg := Default()
	cfg.Providers = map[string]ProviderConfig{
		"local":  {Type: "ollama", BaseURL: "http://gpu:11434"},
		"openai": {BaseURL: "http://proxy/v1", APIKeyEnv: "PROXY_KEY"},
	}

	pc, ok := cfg.Provider("OpenRouter")
	require.True(t, ok)
	assert.Equal(t, OpenRouterBaseURL, pc.BaseURL)
	assert.Equal(t, "OPENROUTER_API_KEY", pc.APIKeyEnv)

	pc, ok = cfg.Provider("openai")
	require.True(t, ok)
	assert.Equal(t, "openai", pc.Type, "type defaults to the entry name")
	assert.Equal(t, "PROXY_KEY", pc.APIKeyEnv)

	pc, ok = cfg.Provider("local")
	require.True(t, ok)
	assert.Equal(t, "ollama", pc.Type)

	_, ok = cfg.Provider("meta-llama")
	assert.False(t, ok)

	assert.Equal(t, []string{"anthropic", "google", "local", "ollama", "openai", "openrouter"}, cfg.ProviderNames())
}
