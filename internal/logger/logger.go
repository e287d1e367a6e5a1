package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Options controls how the default logger is built.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // console or json
	Output io.Writer // defaults to os.Stderr
}

// Init initializes the default logger with console output on os.Stderr at
// info level. It only takes effect once; use Configure to change settings.
func Init() {
	once.Do(func() {
		mu.Lock()
		defaultLogger = build(Options{Level: "info", Format: "console"})
		mu.Unlock()
	})
}

// Configure replaces the default logger.
func Configure(opts Options) {
	once.Do(func() {})
	mu.Lock()
	defaultLogger = build(opts)
	mu.Unlock()
}

func build(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Get returns the initialized default logger.
func Get() zerolog.Logger {
	Init()
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Component returns the default logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Info logs an informational message using the default logger.
func Info(msg string) {
	l := Get()
	l.Info().Msg(msg)
}

// Warn logs a warning message using the default logger.
func Warn(msg string) {
	l := Get()
	l.Warn().Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error) {
	l := Get()
	l.Error().Err(err).Msg(msg)
}

// Debug logs a debug message using the default logger.
func Debug(msg string) {
	l := Get()
	l.Debug().Msg(msg)
}
