package llmpanel

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/spf13/viper"
)

func resetFlag(cmdFlag string) {
	flag := rootCmd.PersistentFlags().Lookup(cmdFlag)
	if flag == nil {
		return
	}
	_ = flag.Value.Set(flag.DefValue)
	flag.Changed = false
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func useConfig(t *testing.T, path string) {
	t.Helper()
	prevCfgFile := cfgFile
	cfgFile = path
	viper.SetConfigFile(path)
	t.Cleanup(func() {
		cfgFile = prevCfgFile
		viper.SetConfigFile(prevCfgFile)
	})
	t.Cleanup(func() { _ = logging.Close() })
	for _, name := range []string{"debug", "failFast", "logFile", "metricsFile", "modelOptions", "concurrency"} {
		resetFlag(name)
	}
}

func TestPersistentPreRunEUsesFlagValues(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "llmpanel.log")
	configPath := writeTempConfig(t, `{"concurrency": 2, "temperature": 0.5, "modelOptions": "panel.json"}`)
	useConfig(t, configPath)

	_ = rootCmd.PersistentFlags().Set("debug", "true")
	_ = rootCmd.PersistentFlags().Set("failFast", "true")
	_ = rootCmd.PersistentFlags().Set("concurrency", "4")
	_ = rootCmd.PersistentFlags().Set("logFile", logPath)

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err != nil {
		t.Fatalf("PersistentPreRunE error: %v", err)
	}

	if currentConfig == nil || currentConfig.ConfigPath != configPath {
		t.Fatalf("expected config loaded with path %s", configPath)
	}
	if !currentConfig.Debug || !currentConfig.FailFast {
		t.Fatalf("expected flag values to flow into config: %+v", currentConfig)
	}
	if currentConfig.Concurrency != 4 {
		t.Fatalf("expected flag to override config concurrency, got %d", currentConfig.Concurrency)
	}
	if currentConfig.Temperature != 0.5 || currentConfig.ModelOptions != "panel.json" {
		t.Fatalf("expected file values to survive: %+v", currentConfig)
	}
	if currentConfig.Run.Output != "multillm.csv" {
		t.Fatalf("expected defaults applied, got run output %q", currentConfig.Run.Output)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected log file to be created: %v", err)
	}
}

func TestPersistentPreRunEMissingConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	useConfig(t, missing)

	err := rootCmd.PersistentPreRunE(rootCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestShowConfigCommandOutput(t *testing.T) {
	dir := t.TempDir()
	optionsPath := filepath.Join(dir, "model_options.json")
	if err := os.WriteFile(optionsPath, []byte(`{"openai": ["gpt-4o"], "meta-llama": ["llama-3-8b"]}`), 0o644); err != nil {
		t.Fatalf("write model options: %v", err)
	}
	configPath := writeTempConfig(t, `{"modelOptions": "`+filepath.ToSlash(optionsPath)+`"}`)
	useConfig(t, configPath)
	_ = rootCmd.PersistentFlags().Set("logFile", filepath.Join(dir, "llmpanel.log"))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"show", "config"})
	t.Cleanup(func() { rootCmd.SetArgs([]string{}) })
	if _, err := rootCmd.ExecuteC(); err != nil {
		t.Fatalf("ExecuteC error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Config file: "+configPath) {
		t.Fatalf("expected config file path in output, got %s", out)
	}
	for _, want := range []string{"openai:", "- gpt-4o", "meta-llama:", "- llama-3-8b"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %s", want, out)
		}
	}
}
