// Package prompts renders the system and judge prompts used by the pipelines.
// Templates are looked up in a directory on disk first, so they can be edited
// without rebuilding, and fall back to the defaults compiled into the binary.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Template names understood by Load.
const (
	SystemPrompt           = "system_prompt"
	RubricJudge            = "rubric_judge"
	FaithfulnessStatements = "faithfulness_statements"
	FaithfulnessVerdicts   = "faithfulness_verdicts"
	AnswerRelevancy        = "answer_relevancy"
	QuestionGeneration     = "question_generation"
)

var extensions = []string{".tmpl", ".j2"}

//go:embed defaults/*.tmpl
var defaults embed.FS

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Load renders the template called name with data. A file <dir>/<name>.tmpl
// (or .j2) takes precedence over the built-in default.
func Load(dir, name string, data any) (string, error) {
	source, origin, err := lookup(dir, name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse prompt template %s: %w", origin, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt template %s: %w", origin, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Names lists the built-in templates.
func Names() []string {
	entries, err := fs.Glob(defaults, "defaults/*.tmpl")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(filepath.Base(entry), ".tmpl"))
	}
	return names
}

func lookup(dir, name string) (string, string, error) {
	if strings.TrimSpace(dir) != "" {
		for _, ext := range extensions {
			path := filepath.Join(dir, name+ext)
			data, err := os.ReadFile(path)
			if err == nil {
				return string(data), path, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", "", fmt.Errorf("read prompt template %s: %w", path, err)
			}
		}
	}
	data, err := defaults.ReadFile("defaults/" + name + ".tmpl")
	if err != nil {
		return "", "", fmt.Errorf("unknown prompt template %q", name)
	}
	return string(data), "builtin:" + name, nil
}
