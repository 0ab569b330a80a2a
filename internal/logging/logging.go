// Package logging configures the process-wide structured logger.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/mwiater/llmpanel/internal/util"
)

// maxPayloadRunes bounds request/response payloads written at debug level.
const maxPayloadRunes = 2000

var (
	mu      sync.Mutex
	logFile *os.File
	level   = new(slog.LevelVar)
	logger  = clog.NewLogger(slog.Default())
)

// Init routes logs to stdout and, when logPath is set, to an append-only file.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	writers := []io.Writer{os.Stdout}
	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	install(io.MultiWriter(writers...))
	return nil
}

// InitWriter routes logs to w only. Used by tests and embedding callers.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	install(w)
}

func install(w io.Writer) {
	base := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(base)
	logger = clog.NewLogger(base)
}

// SetDebug toggles debug level output.
func SetDebug(enabled bool) {
	if enabled {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// Close releases the log file and restores stderr output.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	install(os.Stderr)
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Logger returns the current process logger.
func Logger() *clog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// WithContext attaches the process logger to ctx so pipelines can use clog.FromContext.
func WithContext(ctx context.Context) context.Context {
	return clog.WithLogger(ctx, Logger())
}

// LogEvent writes a formatted informational message.
func LogEvent(format string, args ...any) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// LogRequest writes a provider exchange at debug level. The payload is not
// formatted unless debug output is enabled.
func LogRequest(direction, provider, model string, payload any) {
	if level.Level() > slog.LevelDebug {
		return
	}
	Logger().Debug(buildRequestMessage(direction, provider, model, payload))
}

func buildRequestMessage(direction, provider, model string, payload any) string {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	providerValue := strings.TrimSpace(provider)
	if providerValue == "" {
		providerValue = "unknown"
	}
	modelValue := strings.TrimSpace(model)
	if modelValue == "" {
		modelValue = "unknown"
	}
	parts := []string{
		fmt.Sprintf("[%s]", dir),
		fmt.Sprintf("provider=%s", providerValue),
		fmt.Sprintf("model=%s", modelValue),
		fmt.Sprintf("payload=%s", util.TruncateRunes(formatPayload(payload), maxPayloadRunes)),
	}
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
