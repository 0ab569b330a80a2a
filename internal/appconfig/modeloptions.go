package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// modelOptionsSchema requires an object of non-empty arrays of non-empty strings.
var modelOptionsSchema = map[string]any{
	"type":          "object",
	"minProperties": 1,
	"additionalProperties": map[string]any{
		"type":     "array",
		"minItems": 1,
		"items": map[string]any{
			"type":      "string",
			"minLength": 1,
		},
	},
}

// ProviderModels is one entry of the model options file.
type ProviderModels struct {
	Provider string
	Models   []string
}

// Target is a single model together with the provider key it was listed under.
type Target struct {
	Provider string
	Model    string
}

// ModelOptions maps provider keys to model names, preserving file order.
type ModelOptions struct {
	Entries []ProviderModels
}

// LoadModelOptions reads a JSON or YAML model options file.
func LoadModelOptions(path string) (ModelOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelOptions{}, fmt.Errorf("read model options %q: %w", path, err)
	}
	opts, err := ParseModelOptions(data)
	if err != nil {
		return ModelOptions{}, fmt.Errorf("model options %q: %w", path, err)
	}
	return opts, nil
}

// ParseModelOptions decodes model options. JSON is accepted as a YAML subset,
// and node decoding keeps keys in the order they appear.
func ParseModelOptions(data []byte) (ModelOptions, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ModelOptions{}, fmt.Errorf("decode: %w", err)
	}
	if err := validateModelOptions(doc); err != nil {
		return ModelOptions{}, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return ModelOptions{}, fmt.Errorf("decode: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return ModelOptions{}, errors.New("expected an object mapping providers to model lists")
	}

	mapping := root.Content[0]
	var opts ModelOptions
	seen := map[string]string{}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		provider := strings.TrimSpace(mapping.Content[i].Value)
		var models []string
		if err := mapping.Content[i+1].Decode(&models); err != nil {
			return ModelOptions{}, fmt.Errorf("provider %q: %w", provider, err)
		}
		for j, model := range models {
			model = strings.TrimSpace(model)
			if prev, ok := seen[model]; ok {
				return ModelOptions{}, fmt.Errorf("model %q listed under both %q and %q", model, prev, provider)
			}
			seen[model] = provider
			models[j] = model
		}
		opts.Entries = append(opts.Entries, ProviderModels{Provider: provider, Models: models})
	}
	return opts, nil
}

func validateModelOptions(doc any) error {
	if doc == nil {
		return errors.New("model options are empty")
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(modelOptionsSchema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("model options failed validation: %s", strings.Join(details, "; "))
}

// Targets flattens the options into (provider, model) pairs in file order.
func (m ModelOptions) Targets() []Target {
	var targets []Target
	for _, entry := range m.Entries {
		for _, model := range entry.Models {
			targets = append(targets, Target{Provider: entry.Provider, Model: model})
		}
	}
	return targets
}

// Models returns every model name in file order.
func (m ModelOptions) Models() []string {
	var models []string
	for _, entry := range m.Entries {
		models = append(models, entry.Models...)
	}
	return models
}

// ProviderFor returns the provider key a model was listed under.
func (m ModelOptions) ProviderFor(model string) (string, bool) {
	for _, entry := range m.Entries {
		for _, candidate := range entry.Models {
			if candidate == model {
				return entry.Provider, true
			}
		}
	}
	return "", false
}
