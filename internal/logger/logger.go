// Package logger configures the process-wide logrus logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.New()

// Levels ordered by verbosity; Options.Verbosity indexes from DefaultLevel.
var Levels = []log.Level{
	log.FatalLevel,
	log.ErrorLevel,
	log.WarnLevel,
	log.InfoLevel,
	log.DebugLevel,
	log.TraceLevel,
}

// DefaultLevel is the index into Levels used when Verbosity is zero.
const DefaultLevel = 3

// Options configures Setup.
type Options struct {
	// Verbosity shifts the level from info: +1 debug, +2 trace, -1 warn ...
	Verbosity int
	// File, if set, receives log output instead of stderr.
	File string
	// JSON selects the JSON formatter.
	JSON bool
}

func init() {
	logger.Out = os.Stderr
	logger.SetLevel(log.InfoLevel)
	logger.Formatter = &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// Setup applies opts to the shared logger. The returned closer releases the
// log file, if any.
func Setup(opts Options) (io.Closer, error) {
	idx := DefaultLevel + opts.Verbosity
	if idx < 0 || idx >= len(Levels) {
		return nil, fmt.Errorf("bad log verbosity: %d", opts.Verbosity)
	}
	logger.SetLevel(Levels[idx])

	if opts.JSON {
		logger.Formatter = &log.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	}

	if opts.File == "" {
		logger.Out = os.Stderr
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.Out = f
	return f, nil
}

// SetOutput redirects the shared logger. Tests use it to capture output.
func SetOutput(w io.Writer) {
	logger.Out = w
}

// GetLogger returns an entry annotated with the caller's location.
func GetLogger() *log.Entry {
	function, file, line, _ := runtime.Caller(1)

	name := ""
	if fn := runtime.FuncForPC(function); fn != nil {
		name = fn.Name()
	}
	return logger.WithFields(log.Fields{
		"function": name,
		"file":     filepath.Base(file),
		"line":     line,
	})
}
