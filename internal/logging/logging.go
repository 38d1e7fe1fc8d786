// Package logging configures the shared logrus logger: a timestamped log
// file that captures everything down to the configured level, plus a stderr
// mirror for warnings and errors so long runs stay quiet unless something
// goes wrong.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration.
type Config struct {
	Level     string // minimum level written to the file sink
	Directory string // log file directory; empty keeps stderr-only logging
	Timestamp string // run timestamp used in the log file name
}

var logFile *os.File

// Setup configures and returns the standard logrus logger. With a directory
// set, all output goes to vulnhist-<timestamp>.log and warnings or worse are
// mirrored to stderr.
func Setup(cfg Config) (*logrus.Logger, error) {
	logger := logrus.StandardLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	formatter := &logrus.TextFormatter{FullTimestamp: true}
	logger.SetFormatter(formatter)

	if cfg.Directory == "" {
		logger.SetOutput(os.Stderr)
		return logger, nil
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", cfg.Directory, err)
	}

	path := filepath.Join(cfg.Directory, fmt.Sprintf("vulnhist-%s.log", cfg.Timestamp))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	logFile = file
	logger.SetOutput(file)
	logger.AddHook(&mirrorHook{
		writer:    os.Stderr,
		formatter: formatter,
		levels:    []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel},
	})

	return logger, nil
}

// FilePath returns the active log file path, empty when logging to stderr.
func FilePath() string {
	if logFile == nil {
		return ""
	}
	return logFile.Name()
}

// Close closes the log file if one is open.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// mirrorHook copies selected levels to a second writer.
type mirrorHook struct {
	writer    io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *mirrorHook) Levels() []logrus.Level { return h.levels }

func (h *mirrorHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}
