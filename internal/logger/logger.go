// Package logger provides a centralized logging facility with configurable
// verbosity levels.
//
// The call-site API stays printf-style (Errorf, Infof, Debugf, Tracef) while
// output is produced by a zerolog logger, so every line carries a timestamp,
// level and caller. An optional rotating log file can be attached with Init.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("starting engine")
//	logger.Debugf("spot=%f vol=%f", spot, vol)
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// Config selects the log sinks. The zero value logs to stderr at Info.
type Config struct {
	Verbosity  int    // 0=errors,1=info,2=debug,3=trace
	File       string // optional rotating log file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu   sync.RWMutex
	base = newLogger(os.Stderr)
)

// Filtering happens per logger; the global floor must not hide Trace.
func init() {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(toZerolog(Info)).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()
}

// Init replaces the package logger according to cfg. A log file that cannot
// be created is reported on stderr and skipped.
func Init(cfg Config) {
	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    orDefault(cfg.MaxSizeMB, 50),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 30),
				Compress:   true,
			})
		} else {
			os.Stderr.WriteString("logger: cannot create log dir: " + err.Error() + "\n")
		}
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	mu.Lock()
	base = newLogger(w)
	mu.Unlock()
	SetVerbosity(cfg.Verbosity)
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	lvl := base.GetLevel()
	base = newLogger(w).Level(lvl)
	mu.Unlock()
}

// SetVerbosity sets the global logging verbosity. Values outside 0..3 are
// clamped.
func SetVerbosity(v int) {
	if v < int(Error) {
		v = int(Error)
	}
	if v > int(Trace) {
		v = int(Trace)
	}
	mu.Lock()
	base = base.Level(toZerolog(Level(v)))
	mu.Unlock()
}

// Get returns the underlying zerolog logger for structured call sites.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case Error:
		return zerolog.ErrorLevel
	case Debug:
		return zerolog.DebugLevel
	case Trace:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	l := Get()
	l.Error().Msgf(format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	l := Get()
	l.Info().Msgf(format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	l := Get()
	l.Debug().Msgf(format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	l := Get()
	l.Trace().Msgf(format, args...)
}
