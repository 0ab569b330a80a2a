// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is checked when the default path does not exist.
	legacyConfigPath = "config.json"
	// DefaultModelOptionsPath is the default location of the provider -> models map.
	DefaultModelOptionsPath = "model_options.json"
	// DefaultDotenvPath is where API keys are read from when not set in the environment.
	DefaultDotenvPath = ".env"
	// DefaultProvider receives every model whose provider key is not a configured backend.
	DefaultProvider = "openrouter"
	// OpenRouterBaseURL is the OpenAI-compatible OpenRouter endpoint.
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	defaultRequestTimeout  = 600 * time.Second
	defaultConcurrency     = 8
	defaultQuestionDelayMs = 1000
	defaultDocumentDelayMs = 100
	defaultTemplatesDir    = "prompts/templates"
	defaultLogFile         = "llmpanel.log"
	defaultMaxRetries      = 3
	defaultBaseBackoffMs   = 1000
	defaultMaxBackoffMs    = 60000
)

// DefaultCriteria are the rubric criteria used when neither the rubric file nor the config names any.
var DefaultCriteria = []string{"Relevance", "Comprehensiveness", "Clarity and Coherence", "Depth and Detail"}

// Config represents the top-level application configuration.
type Config struct {
	ModelOptions    string                    `json:"modelOptions"`
	Dotenv          string                    `json:"dotenv"`
	Temperature     float64                   `json:"temperature"`
	Concurrency     int                       `json:"concurrency"`
	QuestionDelayMs *int                      `json:"questionDelayMs,omitempty"`
	TimeoutSeconds  int                       `json:"timeout,omitempty" mapstructure:"timeout"`
	Debug           bool                      `json:"debug"`
	FailFast        bool                      `json:"failFast"`
	LogFile         string                    `json:"logFile,omitempty"`
	MetricsFile     string                    `json:"metricsFile,omitempty"`
	TemplatesDir    string                    `json:"templatesDir"`
	DefaultProvider string                    `json:"defaultProvider"`
	Providers       map[string]ProviderConfig `json:"providers"`
	Retry           RetryConfig               `json:"retry"`
	Run             RunConfig                 `json:"run"`
	Embed           EmbedConfig               `json:"embed"`
	Rubric          RubricConfig              `json:"rubric"`
	Ragas           RagasConfig               `json:"ragas"`
	Questions       QuestionsConfig           `json:"questions"`
	ConfigPath      string                    `json:"-" mapstructure:"-"`
}

// ProviderConfig describes one backend that model-options keys can route to.
type ProviderConfig struct {
	Type      string `json:"type"`
	BaseURL   string `json:"baseURL,omitempty"`
	APIKeyEnv string `json:"apiKeyEnv,omitempty"`
}

// RetryConfig bounds retries of transient provider errors.
type RetryConfig struct {
	MaxRetries    int `json:"maxRetries"`
	BaseBackoffMs int `json:"baseBackoffMs"`
	MaxBackoffMs  int `json:"maxBackoffMs"`
}

// RunConfig configures the multi-model prompt run.
type RunConfig struct {
	Input          string `json:"input"`
	Output         string `json:"output"`
	QuestionColumn string `json:"questionColumn"`
	ContextColumn  string `json:"contextColumn"`
	SystemPrompt   string `json:"systemPrompt"`
}

// EmbedConfig configures answer embeddings.
type EmbedConfig struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	RedisAddr string `json:"redisAddr,omitempty"`
}

// RubricConfig configures rubric scoring.
type RubricConfig struct {
	Rubric      string   `json:"rubric"`
	Input       string   `json:"input"`
	Output      string   `json:"output"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	Criteria    []string `json:"criteria,omitempty"`
}

// RagasConfig configures faithfulness and answer relevancy scoring.
type RagasConfig struct {
	Prompts           string `json:"prompts"`
	Input             string `json:"input"`
	OutputPrefix      string `json:"outputPrefix"`
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	EmbeddingProvider string `json:"embeddingProvider"`
	EmbeddingModel    string `json:"embeddingModel"`
	Strictness        int    `json:"strictness"`
}

// QuestionsConfig configures question generation from interview transcripts.
type QuestionsConfig struct {
	Documents   string  `json:"documents"`
	OutputDir   string  `json:"outputDir"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Topic       string  `json:"topic"`
	DelayMs     *int    `json:"delayMs,omitempty"`
}

// RequestTimeout returns the timeout duration for provider requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QuestionDelay returns the pause between consecutive prompt rows.
func (c Config) QuestionDelay() time.Duration {
	return millis(c.QuestionDelayMs, defaultQuestionDelayMs)
}

// Delay returns the pause between consecutive documents.
func (q QuestionsConfig) Delay() time.Duration {
	return millis(q.DelayMs, defaultDocumentDelayMs)
}

// millis converts an optional millisecond setting. Unset uses fallback and
// negative values mean no delay.
func millis(ms *int, fallback int) time.Duration {
	if ms == nil {
		return time.Duration(fallback) * time.Millisecond
	}
	if *ms < 0 {
		return 0
	}
	return time.Duration(*ms) * time.Millisecond
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return defaultLogFile
}

// RubricTemperature returns the judge temperature for rubric scoring.
func (c Config) RubricTemperature() float64 {
	if c.Rubric.Temperature == nil {
		return 1
	}
	return *c.Rubric.Temperature
}

// Backoff returns the configured retry durations.
func (r RetryConfig) Backoff() (base, ceiling time.Duration) {
	return time.Duration(r.BaseBackoffMs) * time.Millisecond, time.Duration(r.MaxBackoffMs) * time.Millisecond
}

// builtinProviders are available without any "providers" entry in the config file.
var builtinProviders = map[string]ProviderConfig{
	"openrouter": {Type: "openai", BaseURL: OpenRouterBaseURL, APIKeyEnv: "OPENROUTER_API_KEY"},
	"openai":     {Type: "openai", APIKeyEnv: "OPENAI_API_KEY"},
	"anthropic":  {Type: "anthropic", APIKeyEnv: "ANTHROPIC_API_KEY"},
	"google":     {Type: "google", APIKeyEnv: "GOOGLE_API_KEY"},
	"ollama":     {Type: "ollama"},
}

// Provider resolves a backend by name, preferring entries from the config file.
func (c Config) Provider(name string) (ProviderConfig, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if pc, ok := c.Providers[key]; ok {
		if pc.Type == "" {
			pc.Type = key
		}
		return pc, true
	}
	pc, ok := builtinProviders[key]
	return pc, ok
}

// ProviderNames lists every backend name that Provider resolves, sorted.
func (c Config) ProviderNames() []string {
	seen := make(map[string]struct{}, len(builtinProviders)+len(c.Providers))
	for name := range builtinProviders {
		seen[name] = struct{}{}
	}
	for name := range c.Providers {
		seen[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a configuration with every default applied.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.ModelOptions == "" {
		c.ModelOptions = DefaultModelOptionsPath
	}
	if c.Dotenv == "" {
		c.Dotenv = DefaultDotenvPath
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.QuestionDelayMs == nil {
		c.QuestionDelayMs = intPtr(defaultQuestionDelayMs)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = defaultTemplatesDir
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = DefaultProvider
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = defaultMaxRetries
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.BaseBackoffMs <= 0 {
		c.Retry.BaseBackoffMs = defaultBaseBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = defaultMaxBackoffMs
	}

	setDefault(&c.Run.Input, "prompts.csv")
	setDefault(&c.Run.Output, "multillm.csv")
	setDefault(&c.Run.QuestionColumn, "question")
	setDefault(&c.Run.ContextColumn, "question_context")
	setDefault(&c.Run.SystemPrompt, "system_prompt")

	setDefault(&c.Embed.Input, c.Run.Output)
	setDefault(&c.Embed.Output, "multillm-embedd.csv")
	setDefault(&c.Embed.Provider, "openai")
	setDefault(&c.Embed.Model, "text-embedding-3-small")

	setDefault(&c.Rubric.Rubric, "llmrubric.csv")
	setDefault(&c.Rubric.Input, c.Run.Output)
	setDefault(&c.Rubric.Output, "LLM-rubric-evaluation.csv")
	setDefault(&c.Rubric.Provider, "openai")
	setDefault(&c.Rubric.Model, "gpt-5-mini")

	setDefault(&c.Ragas.Prompts, c.Run.Input)
	setDefault(&c.Ragas.Input, c.Run.Output)
	setDefault(&c.Ragas.OutputPrefix, "ragas_evaluation_")
	setDefault(&c.Ragas.Provider, "openai")
	setDefault(&c.Ragas.Model, "gpt-4o-mini")
	setDefault(&c.Ragas.EmbeddingProvider, c.Embed.Provider)
	setDefault(&c.Ragas.EmbeddingModel, c.Embed.Model)
	if c.Ragas.Strictness <= 0 {
		c.Ragas.Strictness = 3
	}

	setDefault(&c.Questions.Documents, "*.docx")
	setDefault(&c.Questions.OutputDir, "gptoutputs")
	setDefault(&c.Questions.Provider, "openai")
	setDefault(&c.Questions.Model, "gpt-4o")
	setDefault(&c.Questions.Topic, "Pumas")
	if c.Questions.DelayMs == nil {
		c.Questions.DelayMs = intPtr(defaultDocumentDelayMs)
	}
}

func intPtr(v int) *int {
	return &v
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// Load reads the application configuration from the specified path, with fallback to a legacy path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if path == DefaultConfigPath {
			config, legacyErr := loadFromPath(legacyConfigPath)
			if legacyErr == nil {
				config.ConfigPath = legacyConfigPath
				return config, nil
			}
			if errors.Is(legacyErr, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found (searched %q and %q)", DefaultConfigPath, legacyConfigPath)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Config{}, fmt.Errorf("no configuration file found at %q", path)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}
	config.ApplyDefaults()
	return config, nil
}
