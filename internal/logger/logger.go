// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance.
var Log zerolog.Logger

// output is the writer Log currently writes to.
var output io.Writer

func init() {
	output = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	Log = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetLevel sets the global log level.
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// SetJSON switches to JSON output (for production).
func SetJSON() {
	output = os.Stdout
	Log = zerolog.New(output).
		With().
		Timestamp().
		Logger()
}

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SetFile tees log lines into a rotating file next to the current output.
// The returned closer closes the file.
func SetFile(opts FileOptions) io.Closer {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 50
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 28
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	output = zerolog.MultiLevelWriter(output, rotator)
	Log = Log.Output(output)
	return rotator
}
