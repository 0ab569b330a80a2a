// Package llmjson pulls JSON objects out of model replies and checks them
// against a JSON Schema.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrNoJSON is returned when a reply contains nothing that looks like JSON.
var ErrNoJSON = errors.New("reply contains no JSON")

// ExtractJSON returns the JSON payload of a reply. It prefers the body of the
// first ```json fence, then any ``` fence, then the outermost {...} span.
func ExtractJSON(reply string) string {
	lines := strings.Split(reply, "\n")
	var body []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock && (trimmed == "```json" || trimmed == "```JSON" || trimmed == "```") {
			inBlock = true
			continue
		}
		if inBlock && trimmed == "```" {
			break
		}
		if inBlock {
			body = append(body, line)
		}
	}
	if inBlock {
		return strings.TrimSpace(strings.Join(body, "\n"))
	}

	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// Extract unmarshals the JSON payload of reply into T.
func Extract[T any](reply string) (T, error) {
	var result T
	payload := ExtractJSON(reply)
	if payload == "" {
		return result, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return result, fmt.Errorf("decode reply JSON: %w", err)
	}
	return result, nil
}

// Validate checks the JSON payload of reply against schema.
func Validate(schema map[string]any, reply string) error {
	payload := ExtractJSON(reply)
	if payload == "" {
		return ErrNoJSON
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(payload))
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
	return fmt.Errorf("reply failed validation: %s", strings.Join(details, "; "))
}

// ExtractValid validates reply against schema, then unmarshals it into T.
func ExtractValid[T any](schema map[string]any, reply string) (T, error) {
	if err := Validate(schema, reply); err != nil {
		var zero T
		return zero, err
	}
	return Extract[T](reply)
}
