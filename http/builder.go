package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/freekieb7/bytegate/logger"
)

// Builder assembles a Server. Routes and controllers are registered in call
// order; the first registration error is reported by Build.
//
//	server, err := http.NewBuilder().
//		Port(8080).
//		Controller(notes).
//		Route("GET", "/health", health).
//		Build()
type Builder struct {
	cfg    Config
	router *Router
	errs   []error
}

func NewBuilder() *Builder {
	b := &Builder{router: NewRouter()}
	return b.WithDefaultParameters()
}

// WithDefaultParameters resets port, pool size and log level to their
// defaults: 8080, 10 and INFO.
func (b *Builder) WithDefaultParameters() *Builder {
	b.cfg.Port = DefaultPort
	b.cfg.PoolSize = DefaultPoolSize
	b.cfg.LogLevel = logger.Info
	return b
}

func (b *Builder) Host(host string) *Builder {
	b.cfg.Host = host
	return b
}

func (b *Builder) Port(port int) *Builder {
	b.cfg.Port = port
	return b
}

// PoolSize requests a core pool size; it is clamped to the core window.
func (b *Builder) PoolSize(size int) *Builder {
	b.cfg.PoolSize = size
	return b
}

// PoolConfig replaces the derived pool sizing entirely.
func (b *Builder) PoolConfig(cfg PoolConfig) *Builder {
	b.cfg.Pool = &cfg
	return b
}

func (b *Builder) LogLevel(level logger.Level) *Builder {
	b.cfg.LogLevel = level
	return b
}

func (b *Builder) Logger(log *slog.Logger) *Builder {
	b.cfg.Logger = log
	return b
}

// RecoverPanics makes the server answer panicking handlers with a 500.
func (b *Builder) RecoverPanics(enabled bool) *Builder {
	b.cfg.InternalErrorOnPanic = enabled
	return b
}

func (b *Builder) IOTimeout(timeout time.Duration) *Builder {
	b.cfg.IOTimeout = timeout
	return b
}

func (b *Builder) Route(method, pattern string, handler Handler) *Builder {
	err := Endpoint{Method: method, Path: pattern, Handler: handler}.validate()
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.router.Register(method, pattern, handler)
	return b
}

func (b *Builder) Controller(c Controller) *Builder {
	if err := b.router.Mount(c); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

func (b *Builder) Config() Config { return b.cfg }

func (b *Builder) Build() (*Server, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return NewServer(b.cfg, b.router)
}
