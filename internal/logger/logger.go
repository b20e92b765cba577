package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

var (
	once sync.Once
	base *slog.Logger
)

// Options configures the process logger. Zero values give colorized info
// logging on stdout with time-of-day stamps.
type Options struct {
	Level      slog.Leveler
	Writer     io.Writer
	TimeFormat string
}

// Init installs a tint handler as the process and slog default logger.
// Only the first call takes effect.
func Init(opts *Options) {
	once.Do(func() {
		if opts == nil {
			opts = &Options{}
		}
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		format := opts.TimeFormat
		if format == "" {
			format = time.TimeOnly
		}
		base = slog.New(tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: format,
		}))
		slog.SetDefault(base)
	})
}

// L returns the process logger, falling back to the slog default before
// Init has run.
func L() *slog.Logger {
	if base == nil {
		return slog.Default()
	}
	return base
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

func Info(msg string, args ...any) { L().Info(msg, args...) }

func Warn(msg string, args ...any) { L().Warn(msg, args...) }

func Error(msg string, args ...any) { L().Error(msg, args...) }
