package appconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/viper"
)

// Secrets holds API credentials and endpoints. The process environment wins over the dotenv file.
type Secrets struct {
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	GoogleAPIKey     string `env:"GOOGLE_API_KEY"`
	OllamaHost       string `env:"OLLAMA_HOST, default=http://localhost:11434"`
	RedisAddr        string `env:"REDIS_ADDR"`

	lookuper envconfig.Lookuper
}

// LoadSecrets resolves credentials from the environment and the dotenv file at path.
// A missing dotenv file is not an error.
func LoadSecrets(ctx context.Context, path string) (Secrets, error) {
	values, err := readDotenv(path)
	if err != nil {
		return Secrets{}, err
	}
	return loadSecrets(ctx, envconfig.MultiLookuper(envconfig.OsLookuper(), envconfig.MapLookuper(values)))
}

// SecretsFromMap resolves credentials from values only, ignoring the process environment.
func SecretsFromMap(ctx context.Context, values map[string]string) (Secrets, error) {
	return loadSecrets(ctx, envconfig.MapLookuper(values))
}

func loadSecrets(ctx context.Context, lookuper envconfig.Lookuper) (Secrets, error) {
	var s Secrets
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &s,
		Lookuper: lookuper,
	}); err != nil {
		return Secrets{}, fmt.Errorf("process environment: %w", err)
	}
	s.lookuper = lookuper
	return s, nil
}

// Lookup returns the value of an arbitrary variable, such as a provider's apiKeyEnv.
func (s Secrets) Lookup(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	var (
		value string
		ok    bool
	)
	if s.lookuper == nil {
		value, ok = os.LookupEnv(name)
	} else {
		value, ok = s.lookuper.Lookup(name)
	}
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// Require returns the named variable or an error naming it.
func (s Secrets) Require(name string) (string, error) {
	if value, ok := s.Lookup(name); ok {
		return value, nil
	}
	return "", fmt.Errorf("%s not found in environment variables or dotenv file", name)
}

// readDotenv parses KEY=VALUE lines with a dedicated viper instance so the
// global viper used for flags is untouched.
func readDotenv(path string) (map[string]string, error) {
	values := map[string]string{}
	if strings.TrimSpace(path) == "" {
		return values, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("stat dotenv %q: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read dotenv %q: %w", path, err)
	}
	// viper lowercases keys; environment names are conventionally upper case.
	for _, key := range v.AllKeys() {
		values[strings.ToUpper(key)] = v.GetString(key)
	}
	return values, nil
}
