package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tribunal-mc/tribunal/internal/setup/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLoggers builds the main and database loggers. Both write to stdout
// and to a timestamped file under logDir; old log files beyond the
// configured retention are removed at startup.
func NewLoggers(debug *config.Debug, logDir string) (*zap.Logger, *zap.Logger, error) {
	level, err := zapcore.ParseLevel(debug.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if debug.MaxLogsToKeep > 0 {
		pruneOldLogs(logDir, debug.MaxLogsToKeep)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")

	mainLogger, err := newLogger(filepath.Join(logDir, "main_"+timestamp+".log"), level)
	if err != nil {
		return nil, nil, err
	}

	dbLogger, err := newLogger(filepath.Join(logDir, "db_"+timestamp+".log"), level)
	if err != nil {
		return nil, nil, err
	}

	return mainLogger, dbLogger, nil
}

func newLogger(path string, level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout", path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// pruneOldLogs removes the oldest log files so at most keep remain.
// Errors are ignored; log rotation must never block startup.
func pruneOldLogs(logDir string, keep int) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	var names []string

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".log" {
			names = append(names, entry.Name())
		}
	}

	if len(names) <= keep {
		return
	}

	sort.Strings(names)

	for _, name := range names[:len(names)-keep] {
		os.Remove(filepath.Join(logDir, name))
	}
}
