// Package logger builds the structured logger used by the server. Records
// go to a text sink and, through the OpenTelemetry slog bridge, to whatever
// log provider is installed globally.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"
)

// Name is the instrumentation scope used for bridged records.
const Name = "github.com/freekieb7/bytegate"

// Level is the verbosity of the server log. Levels are ordered: a logger at
// Debug emits everything, a logger at Off emits nothing.
type Level int

const (
	Off Level = iota
	Error
	Info
	Debug
)

func (l Level) String() string {
	switch l {
	case Off:
		return "OFF"
	case Error:
		return "ERROR"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Enabled reports whether a logger configured at l emits records at target.
func (l Level) Enabled(target Level) bool {
	return target != Off && l >= target
}

// SlogLevel maps l to the minimum slog level it lets through.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case Off:
		return slog.Level(math.MaxInt32)
	case Error:
		return slog.LevelError
	case Debug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

var ErrUnknownLevel = errors.New("unknown log level")

// ParseLevel accepts off, error, info and debug in any case. An empty string
// means Info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return Off, nil
	case "error":
		return Error, nil
	case "", "info":
		return Info, nil
	case "debug":
		return Debug, nil
	}
	return Info, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

type options struct {
	provider log.LoggerProvider
	bridge   bool
}

type Option func(*options)

// WithLoggerProvider sends bridged records to provider instead of the
// global provider.
func WithLoggerProvider(provider log.LoggerProvider) Option {
	return func(o *options) {
		o.provider = provider
		o.bridge = true
	}
}

// WithoutBridge disables the OpenTelemetry bridge; only w receives records.
func WithoutBridge() Option {
	return func(o *options) {
		o.bridge = false
	}
}

// New returns a logger at level writing text records to w (stdout when w is
// nil) and to the OpenTelemetry bridge.
func New(level Level, w io.Writer, opts ...Option) *slog.Logger {
	o := options{bridge: true}
	for _, opt := range opts {
		opt(&o)
	}

	if w == nil {
		w = os.Stdout
	}

	minLevel := level.SlogLevel()
	handlers := []slog.Handler{
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: minLevel}),
	}
	if o.bridge {
		var bridgeOpts []otelslog.Option
		if o.provider != nil {
			bridgeOpts = append(bridgeOpts, otelslog.WithLoggerProvider(o.provider))
		}
		gate := slogmulti.NewEnabledInlineMiddleware(
			func(ctx context.Context, l slog.Level, next func(context.Context, slog.Level) bool) bool {
				return l >= minLevel && next(ctx, l)
			})
		handlers = append(handlers, slogmulti.Pipe(gate).Handler(otelslog.NewHandler(Name, bridgeOpts...)))
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return New(Off, io.Discard, WithoutBridge())
}
