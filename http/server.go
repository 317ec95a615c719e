package http

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/freekieb7/bytegate/logger"
)

const (
	DefaultPort               = 8080
	DefaultReadBufferSize     = 4096 // 4kB
	DefaultRejectWriteTimeout = 100 * time.Millisecond

	rejectDrainLimit = 64 << 10 // 64kB

	acceptBackoffInitial = 5 * time.Millisecond
	acceptBackoffMax     = time.Second
)

var ErrServerStarted = errors.New("server already started")

// Config holds everything a Server needs besides its routes.
type Config struct {
	Host string
	// Port 0 binds an ephemeral port; see Server.Addr.
	Port     int
	PoolSize int
	LogLevel logger.Level

	// Pool overrides the pool sizing derived from PoolSize.
	Pool *PoolConfig
	// Logger overrides the logger built from LogLevel.
	Logger *slog.Logger

	// InternalErrorOnPanic answers a panicking handler with a 500 instead of
	// closing the connection without a response.
	InternalErrorOnPanic bool
	// IOTimeout bounds reading the request and writing the response of one
	// connection. Zero disables the deadline.
	IOTimeout time.Duration
	// RejectWriteTimeout bounds writing the 503 and draining the rejected
	// request on the accept goroutine.
	RejectWriteTimeout time.Duration
}

func (cfg Config) addr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

func (cfg Config) poolConfig() PoolConfig {
	if cfg.Pool != nil {
		return *cfg.Pool
	}
	return DefaultPoolConfig(cfg.PoolSize)
}

// Stats is a point-in-time view of a Server.
type Stats struct {
	Pool     PoolStats
	Accepted uint64
	Rejected uint64
}

// Server owns the listening socket and couples it to a WorkerPool. Each
// accepted connection carries exactly one request and is closed after the
// response.
type Server struct {
	cfg    Config
	router *Router
	logger *slog.Logger
	inst   *instruments

	mu         sync.Mutex
	listener   net.Listener
	pool       *WorkerPool
	conns      map[net.Conn]struct{}
	started    bool
	stopped    bool
	acceptDone chan struct{}

	closing  atomic.Bool
	accepted atomic.Uint64
	rejected atomic.Uint64
}

func NewServer(cfg Config, router *Router) (*Server, error) {
	if router == nil {
		router = NewRouter()
	}
	if cfg.RejectWriteTimeout <= 0 {
		cfg.RejectWriteTimeout = DefaultRejectWriteTimeout
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New(cfg.LogLevel, nil)
	}

	inst, err := newInstruments()
	if err != nil {
		return nil, errors.Wrap(err, "create instruments")
	}

	return &Server{
		cfg:    cfg,
		router: router,
		logger: log,
		inst:   inst,
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

func (s *Server) Router() *Router { return s.router }

func (s *Server) Logger() *slog.Logger { return s.logger }

// Start binds the listener, creates the worker pool and launches the accept
// goroutine. It returns as soon as the server is accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrServerStarted
	}

	pool, err := NewWorkerPool(s.cfg.poolConfig(), s.logger)
	if err != nil {
		return errors.Wrap(err, "create worker pool")
	}

	listener, err := net.Listen("tcp", s.cfg.addr())
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.addr())
	}

	if err := s.inst.observePool(pool); err != nil {
		s.logger.Warn("pool_metrics_unavailable", "error", err)
	}

	s.listener = listener
	s.pool = pool
	s.started = true
	s.acceptDone = make(chan struct{})

	for _, route := range s.router.Routes() {
		s.logger.Debug("route_registered", "method", route.Method, "pattern", route.Pattern, "kind", route.Kind.String())
	}

	go s.acceptLoop(listener)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer close(s.acceptDone)

	s.logger.Info("server_running", "addr", listener.Addr().String())

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = acceptBackoffInitial
	retry.MaxInterval = acceptBackoffMax
	retry.MaxElapsedTime = 0
	retry.Reset()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			delay := retry.NextBackOff()
			s.logger.Error("accept_failed", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		retry.Reset()

		s.dispatch(conn)
	}
}

// dispatch hands conn to the pool. When the pool refuses it, the 503 is
// written right here on the accept goroutine.
func (s *Server) dispatch(conn net.Conn) {
	s.accepted.Add(1)
	s.inst.accepted.Add(context.Background(), 1)

	s.track(conn)
	if s.pool.Submit(func() { s.serveConn(conn) }) {
		return
	}

	s.rejected.Add(1)
	s.inst.rejected.Add(context.Background(), 1)
	s.reject(conn)
}

func (s *Server) reject(conn net.Conn) {
	defer s.closeConn(conn, s.logger)

	s.logger.Error("connection_rejected",
		"remote", conn.RemoteAddr().String(),
		"reason", "worker pool exhausted",
	)

	if err := conn.SetDeadline(time.Now().Add(s.cfg.RejectWriteTimeout)); err != nil {
		s.logger.Error("set_deadline_failed", "error", err)
	}
	if err := WriteResponse(conn, ServiceUnavailable()); err != nil {
		s.logger.Error("reject_write_failed", "error", errors.Wrap(err, "write 503"))
		return
	}

	// Closing with the request still unread would reset the connection and
	// the client could lose the 503. Half-close, then drain what it sent.
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcp.CloseWrite(); err != nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(conn, rejectDrainLimit))
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

// closeConn closes and forgets conn. It is the single release point for
// every connection the server accepted.
func (s *Server) closeConn(conn net.Conn, log *slog.Logger) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error("connection_close_failed", "error", err)
	}
}

// closeTracked force-closes connections still owned by queued or running
// tasks so their blocked reads and writes return.
func (s *Server) closeTracked() int {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		s.closeConn(conn, s.logger)
	}
	return len(conns)
}

// Stop closes the listener, then closes the pool. When the pool does not
// drain in time, remaining connections are closed underneath their tasks.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	listener, pool := s.listener, s.pool
	s.mu.Unlock()

	s.logger.Info("server_stopping")
	s.closing.Store(true)

	var firstErr error
	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		firstErr = errors.Wrap(err, "close listener")
	}
	<-s.acceptDone

	if err := pool.Close(); err != nil {
		if errors.Is(err, ErrShutdownTimeout) {
			closed := s.closeTracked()
			s.logger.Warn("connections_force_closed", "count", closed)
		}
		if firstErr == nil {
			firstErr = errors.Wrap(err, "close worker pool")
		}
	}

	if err := s.inst.close(); err != nil {
		s.logger.Warn("pool_metrics_unregister_failed", "error", err)
	}

	s.logger.Info("server_stopped")
	return firstErr
}

// Run starts the server and stops it once ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()

	var poolStats PoolStats
	if pool != nil {
		poolStats = pool.Stats()
	}

	return Stats{
		Pool:     poolStats,
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
	}
}
