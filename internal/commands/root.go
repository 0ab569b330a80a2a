// internal/commands/root.go
package llmpanel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwiater/llmpanel/internal/appconfig"
	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	loadedConfig  string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "llmpanel",
	Short: "Ask a panel of LLMs the same questions and score their answers",
	Long: `llmpanel sends every prompt in a CSV file to a panel of models, collects the
answers into one table, and scores them with embeddings, an LLM rubric judge
and RAG quality metrics. Every step reads and writes plain CSV files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = loadedConfig
		cfg.ApplyDefaults()
		currentConfig = &cfg

		if err := logging.Init(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.SetDebug(currentConfig.Debug)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("failFast", false, "abort on the first failed request instead of leaving an empty cell")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("metricsFile", "", "write Prometheus metrics to this file when the command exits")
	rootCmd.PersistentFlags().String("modelOptions", "", "path to the provider -> models file (default model_options.json)")
	rootCmd.PersistentFlags().Int("concurrency", 0, "maximum concurrent API calls (default 8)")

	for _, name := range []string{"debug", "failFast", "logFile", "metricsFile", "modelOptions", "concurrency"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig points viper at the config file.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// ensureConfigLoaded reads the config file. A missing default file is not an
// error; the legacy ./config.json is tried before falling back to defaults.
func ensureConfigLoaded() error {
	loadedConfig = ""
	path := cfgFile
	if path == "" {
		path = appconfig.DefaultConfigPath
	}
	candidates := []string{path}
	if path == appconfig.DefaultConfigPath {
		candidates = append(candidates, "config.json")
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load config: %w", err)
		}
		viper.SetConfigFile(candidate)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		loadedConfig = candidate
		return nil
	}
	if path != appconfig.DefaultConfigPath {
		return fmt.Errorf("failed to load config: %s does not exist", path)
	}
	return nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
