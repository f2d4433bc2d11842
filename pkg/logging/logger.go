package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// InitLogging initializes logging.
// In debug mode output is human readable, otherwise one JSON object per line.
func InitLogging(mode string) {
	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if mode == "debug" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}
	SetOutput(out, level)
}

// SetOutput replaces the process logger. Tests use it to capture output.
func SetOutput(w io.Writer, level zerolog.Level) {
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Logger returns the process logger.
func Logger() *zerolog.Logger {
	return &logger
}

// Debug starts a structured debug event
func Debug() *zerolog.Event {
	return logger.Debug()
}

// Info starts a structured info event
func Info() *zerolog.Event {
	return logger.Info()
}

// Warn starts a structured warn event
func Warn() *zerolog.Event {
	return logger.Warn()
}

// Error starts a structured error event
func Error() *zerolog.Event {
	return logger.Error()
}

// Infof logs info level messages
func Infof(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

// Warnf logs warn level messages
func Warnf(format string, v ...interface{}) {
	logger.Warn().Msgf(format, v...)
}

// Errorf logs error level messages
func Errorf(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}
