package contract

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger = newLogger(os.Stdout, os.Stderr, zerolog.InfoLevel)

// levelWriter forwards only the listed levels to the wrapped writer.
type levelWriter struct {
	io.Writer
	levels []zerolog.Level
}

// WriteLevel implements zerolog.LevelWriter.
func (w levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	for _, l := range w.levels {
		if l == level {
			return w.Write(p)
		}
	}
	return len(p), nil
}

func newLogger(out, errOut io.Writer, level zerolog.Level) zerolog.Logger {
	writer := zerolog.MultiLevelWriter(
		levelWriter{
			Writer: zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339},
			levels: []zerolog.Level{zerolog.TraceLevel, zerolog.DebugLevel, zerolog.InfoLevel},
		},
		levelWriter{
			Writer: zerolog.ConsoleWriter{Out: errOut, TimeFormat: time.RFC3339},
			levels: []zerolog.Level{zerolog.WarnLevel, zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel},
		},
	)
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// InitLogger configures the process logger. When quiet is set every level is
// routed to stderr, which keeps stdout clean for protocol traffic (MCP).
func InitLogger(level string, quiet bool) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		lvl = parsed
	}
	out := io.Writer(os.Stdout)
	if quiet {
		out = os.Stderr
	}
	logger = newLogger(out, os.Stderr, lvl)
	return nil
}

// SetLogOutput replaces the logger with one writing plain JSON lines to w.
// Tests use it to capture log output.
func SetLogOutput(w io.Writer) {
	logger = zerolog.New(w).Level(logger.GetLevel()).With().Timestamp().Logger()
}

// Logger returns the process logger.
func Logger() *zerolog.Logger {
	return &logger
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	logger.Error().Err(err).Msg(msg)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	logger.Warn().Err(err).Msg(msg)
}
