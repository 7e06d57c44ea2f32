// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console as a log file means stderr.
const Console = "console"

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Options holds the rotation settings for file logging.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultOptions keeps a week of small logs next to the launcher.
var DefaultOptions = Options{
	MaxSizeMB:  5,
	MaxBackups: 3,
	MaxAgeDays: 7,
	Compress:   true,
}

// Setup parses level and points the standard logger at logFile, or at stderr
// when logFile is empty or "console".
func Setup(level, logFile string) error {
	return SetupWithOptions(log.StandardLogger(), level, logFile, DefaultOptions)
}

// SetupWithOptions configures logger.
func SetupWithOptions(logger *log.Logger, level, logFile string, opts Options) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed parsing log-level %s: %w", level, err)
	}

	var out io.Writer = os.Stderr
	if logFile != "" && logFile != Console {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		out = &lumberjack.Logger{
			Filename:   filepath.ToSlash(logFile),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
	}

	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
		DisableColors:   out != io.Writer(os.Stderr),
	})
	logger.SetLevel(lvl)
	return nil
}

// Close releases a rotating log file, if the logger writes to one.
func Close(logger *log.Logger) error {
	if c, ok := logger.Out.(io.Closer); ok && logger.Out != io.Writer(os.Stderr) {
		return c.Close()
	}
	return nil
}
