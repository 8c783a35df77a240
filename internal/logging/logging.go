package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"planetalign/internal/config"
)

// New returns a slog.Logger with the provided level string (info, debug, warn, error).
// format may be "json" or "text".
func New(level string, format string) *slog.Logger {
	return newWithWriter(os.Stdout, level, format)
}

// Setup configures logging per config, optionally teeing to a dated
// log file, and installs the logger as the process default.
func Setup(cfg *config.Config) (*slog.Logger, error) {
	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if cfg.Logging.FileOutput {
		if err := os.MkdirAll(cfg.Logging.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}
		logFile := filepath.Join(cfg.Logging.LogDir, fmt.Sprintf("planetalign-%s.log",
			time.Now().Format("2006-01-02")))
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %v", err)
		}
		writers = append(writers, file)
	}

	logger := newWithWriter(io.MultiWriter(writers...), cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return logger, nil
}

func newWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogBatchStart logs the beginning of an alignment batch.
func LogBatchStart(logger *slog.Logger, batchID, outputDir string, frameCount int) {
	logger.Info("batch started",
		"id", batchID,
		"output", outputDir,
		"frames", frameCount,
	)
}

// LogBatchComplete logs successful batch completion.
func LogBatchComplete(logger *slog.Logger, batchID string, duration time.Duration, resultInfo map[string]any) {
	logger.Info("batch completed",
		"id", batchID,
		"duration_ms", duration.Milliseconds(),
		"result", resultInfo,
	)
}

// LogBatchError logs batch failures.
func LogBatchError(logger *slog.Logger, batchID string, duration time.Duration, err error) {
	logger.Error("batch failed",
		"id", batchID,
		"duration_ms", duration.Milliseconds(),
		"error", err.Error(),
	)
}

// LogToolStatus logs tool detection results.
func LogToolStatus(logger *slog.Logger, tool string, available bool, version, path string, err error) {
	if available {
		logger.Debug("tool detected",
			"tool", tool,
			"version", version,
			"path", path,
		)
	} else {
		logger.Debug("tool not available",
			"tool", tool,
			"error", err,
		)
	}
}
