// Package logging writes the structured run log. The terminal belongs to the host UI, so
// nothing here ever writes to stdout.
package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// LevelEnv selects the minimum log level (debug, info, warn, error).
const LevelEnv = "SSW_LOG_LEVEL"

// Option configures RuntimeLogger creation.
type Option func(*newOptions)

type newOptions struct {
	dir    string
	runID  string
	pageID string
	level  log.Level
}

// WithDir writes the log file under dir instead of ~/.ssw/logs.
func WithDir(dir string) Option {
	return func(opts *newOptions) {
		opts.dir = strings.TrimSpace(dir)
	}
}

// WithRunID sets the run_id field. A random id is generated when empty.
func WithRunID(runID string) Option {
	return func(opts *newOptions) {
		opts.runID = strings.TrimSpace(runID)
	}
}

// WithPageID sets the page_id field carried by every record.
func WithPageID(pageID string) Option {
	return func(opts *newOptions) {
		opts.pageID = strings.TrimSpace(pageID)
	}
}

// WithLevel sets the minimum level, overriding SSW_LOG_LEVEL.
func WithLevel(level log.Level) Option {
	return func(opts *newOptions) {
		opts.level = level
	}
}

// RuntimeLogger writes JSON records to a per-run file.
type RuntimeLogger struct {
	Logger *log.Logger
	file   *os.File
	path   string
	runID  string
}

// New opens ~/.ssw/logs/ssw-<timestamp>-<run>.log.
func New(ctx context.Context, options ...Option) (*RuntimeLogger, error) {
	resolved, err := resolveOptions(options)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(resolved.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	filePath := filepath.Join(resolved.dir, fmt.Sprintf("ssw-%s-%s.log", timestamp, resolved.runID))
	// #nosec G304 -- filePath is constructed from trusted local paths.
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	base := log.NewWithOptions(file, log.Options{
		Level:           resolved.level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	base.SetFormatter(log.JSONFormatter)

	fields := []interface{}{"run_id", resolved.runID}
	if resolved.pageID != "" {
		fields = append(fields, "page_id", resolved.pageID)
	}
	runtimeLogger := &RuntimeLogger{
		Logger: base.With(fields...),
		file:   file,
		path:   filePath,
		runID:  resolved.runID,
	}
	runtimeLogger.Logger.Info("logger initialized", "log_file", filePath)

	_ = ctx
	return runtimeLogger, nil
}

// Close closes the log file.
func (r *RuntimeLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Path returns the log file path.
func (r *RuntimeLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// RunID returns the run_id stamped on every record.
func (r *RuntimeLogger) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

func resolveOptions(options []Option) (newOptions, error) {
	resolved := newOptions{level: levelFromEnv()}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&resolved)
	}
	if resolved.dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return newOptions{}, fmt.Errorf("resolve home directory: %w", err)
		}
		resolved.dir = filepath.Join(homeDir, ".ssw", "logs")
	}
	if resolved.runID == "" {
		resolved.runID = uuid.NewString()[:8]
	}
	return resolved, nil
}

func levelFromEnv() log.Level {
	value := strings.TrimSpace(os.Getenv(LevelEnv))
	if value == "" {
		return log.InfoLevel
	}
	level, err := log.ParseLevel(value)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
