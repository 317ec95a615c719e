package http

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// serveConn runs the request pipeline for one connection: parse, route,
// invoke, write, close. It owns conn and releases it on every path.
//
// A panicking handler is not recovered here unless InternalErrorOnPanic is
// set; the panic reaches the worker, which logs it, and the client sees the
// connection close without a response.
func (s *Server) serveConn(conn net.Conn) {
	start := time.Now()
	log := s.logger.With(
		"conn_id", uuid.NewString(),
		"remote", conn.RemoteAddr().String(),
	)

	ctx, span := s.inst.tracer.Start(context.Background(), "bytegate.request",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	defer s.closeConn(conn, log)
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "handler panicked")
			span.SetAttributes(attribute.String("panic", fmt.Sprint(r)))
			if !s.cfg.InternalErrorOnPanic {
				panic(r)
			}
			log.Error("handler_panicked", "panic", fmt.Sprint(r))
			s.write(conn, InternalServerError(), log)
		}
	}()

	if s.cfg.IOTimeout > 0 {
		if err := conn.SetDeadline(start.Add(s.cfg.IOTimeout)); err != nil {
			log.Error("set_deadline_failed", "error", err)
		}
	}

	req, err := ParseRequest(bufio.NewReaderSize(conn, DefaultReadBufferSize))
	if err != nil {
		err = errors.Wrap(err, "parse request")
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed request")
		log.Error("request_parse_failed", "error", err)
		return
	}
	req = req.WithContext(ctx)

	span.SetAttributes(
		attribute.String("http.request.method", req.Method()),
		attribute.String("url.path", req.Path()),
	)
	s.logRequest(req, log)

	res := s.handle(req, log)

	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode()))
	if !s.write(conn, res, log) {
		span.SetStatus(codes.Error, "response write failed")
		return
	}

	elapsed := time.Since(start)
	s.inst.recordRequest(ctx, req.Method(), res.StatusCode(), elapsed.Seconds())
	log.Info("request_handled",
		"method", req.Method(),
		"path", req.Path(),
		"status", res.StatusCode(),
		"duration", elapsed,
	)
}

// handle routes req and invokes the matched handler, or builds the 404.
func (s *Server) handle(req *Request, log *slog.Logger) *Response {
	match, ok := s.router.Resolve(req.Method(), req.Path())
	if !ok {
		return routeNotFound(req.Method(), req.Path())
	}

	if match.Route.Kind == RouteParameterized {
		req = req.withPathParams(match.Params)
		log.Debug("path_params", "params", match.Params.Map())
	}

	res := match.Route.Handler(req)
	if res == nil {
		log.Error("handler_returned_nil", "method", match.Route.Method, "pattern", match.Route.Pattern)
		return InternalServerError()
	}
	return res
}

func (s *Server) write(conn net.Conn, res *Response, log *slog.Logger) bool {
	bw := bufio.NewWriterSize(conn, DefaultWriteBufferSize)
	if err := WriteResponse(bw, res); err != nil {
		log.Error("response_write_failed", "error", errors.Wrap(err, "write response"))
		return false
	}
	return true
}

func (s *Server) logRequest(req *Request, log *slog.Logger) {
	log.Info("request_received", "method", req.Method(), "uri", req.URI())

	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	headers := make([]any, 0, len(req.headers))
	for _, h := range req.headers {
		headers = append(headers, slog.String(h.Name, h.Value))
	}
	log.Debug("request_headers", slog.Group("headers", headers...))

	if len(req.query) > 0 {
		log.Debug("request_query", "params", req.query.Map())
	}
	if req.HasBody() {
		log.Debug("request_body", "length", req.ContentLength(), "body", string(req.body))
	}
}
