package installer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Logger writes structured log lines to a timestamped file and keeps an
// in-memory copy for display after the run. The embedded charmbracelet
// logger can be passed to packages that only need to emit lines.
// It is safe for concurrent use from multiple goroutines.
type Logger struct {
	*log.Logger

	sink  *sink
	path  string
	runID string
}

// LoggerOption configures a Logger.
type LoggerOption func(*loggerConfig)

type loggerConfig struct {
	dir     string
	level   log.Level
	console io.Writer
	noFile  bool
}

// WithLogDir places the log file in dir instead of the temp directory.
func WithLogDir(dir string) LoggerOption {
	return func(c *loggerConfig) {
		if dir != "" {
			c.dir = dir
		}
	}
}

// WithLevel sets the minimum level written.
func WithLevel(level log.Level) LoggerOption {
	return func(c *loggerConfig) { c.level = level }
}

// WithConsole mirrors every line to w.
func WithConsole(w io.Writer) LoggerOption {
	return func(c *loggerConfig) { c.console = w }
}

// WithoutFile keeps log lines in memory only.
func WithoutFile() LoggerOption {
	return func(c *loggerConfig) { c.noFile = true }
}

// NewLogger creates a Logger writing to {prefix}-{timestamp}.log.
//
// Example:
//
//	logger, err := installer.NewLogger("fxsetup", installer.WithLevel(log.DebugLevel))
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.Info("starting", "target", target)
func NewLogger(prefix string, opts ...LoggerOption) (*Logger, error) {
	cfg := loggerConfig{dir: os.TempDir(), level: log.InfoLevel}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &sink{console: cfg.console}
	var logPath string
	if !cfg.noFile {
		if err := os.MkdirAll(cfg.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logPath = filepath.Join(cfg.dir, fmt.Sprintf("%s-%s.log", prefix, time.Now().Format("20060102-150405")))
		f, err := os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		s.file = f
	}

	runID := uuid.NewString()
	base := log.NewWithOptions(s, log.Options{
		Level:           cfg.level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Formatter:       log.TextFormatter,
	})

	l := &Logger{
		Logger: base.With("run", runID[:8]),
		sink:   s,
		path:   logPath,
		runID:  runID,
	}
	l.Info("log started", "prefix", prefix, "time", time.Now().Format(time.RFC3339), "file", logPath)
	return l, nil
}

// NewMemoryLogger returns a Logger that keeps lines in memory only.
func NewMemoryLogger() *Logger {
	l, _ := NewLogger("memory", WithoutFile(), WithLevel(log.DebugLevel))
	return l
}

// Step logs a major milestone.
func (l *Logger) Step(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	l.Logger.WithPrefix("step").Info(msg, keyvals...)
}

// Close flushes and closes the log file.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.Info("log ended", "time", time.Now().Format(time.RFC3339))
	l.sink.close()
}

// Path returns the path to the log file, or "" for memory loggers.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID identifies this process run in every log line.
func (l *Logger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Content returns everything logged so far.
func (l *Logger) Content() string {
	if l == nil {
		return ""
	}
	return l.sink.content()
}

// sink fans log output to the file, the memory buffer and an optional console.
// Child loggers created with With share it, so it does its own locking.
type sink struct {
	mu      sync.Mutex
	file    *os.File
	console io.Writer
	buf     bytes.Buffer
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Write(p)
	if s.console != nil {
		_, _ = s.console.Write(p)
	}
	if s.file != nil {
		if _, err := s.file.Write(p); err != nil {
			return 0, err
		}
		_ = s.file.Sync()
	}
	return len(p), nil
}

func (s *sink) content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *sink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
}
