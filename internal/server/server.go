// Package server turns inbound TCP connections into worker-pool jobs.
//
// The accept loop is the pool's production producer: it parses one request
// line per connection, resolves a handler from the route table (or a
// fallback from the error table) and submits exactly one job carrying the
// connection. Ownership of the connection transfers into the job; the loop
// never touches it after Submit, and results of handler execution are not
// observable here.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/scarson/relayd/internal/pool"
)

// RouteFunc is an application route body: it receives the parsed request and
// returns the response body, or an error that selects a fallback response
// (an [ErrorKind], or anything else for a 500). RouteFuncs run on worker
// goroutines and must be safe for concurrent use.
type RouteFunc func(Request) (string, error)

type routeKey struct {
	method Method
	uri    string
}

// Server owns the route and error tables and the accept loop. Both tables
// are populated before Serve and read-only afterwards; the pool executes
// whatever handler it is handed without interpreting either table.
type Server struct {
	pool    *pool.Pool[net.Conn]
	routes  map[routeKey]pool.Handler[net.Conn]
	errors  map[ErrorKind]pool.Handler[net.Conn]
	limiter *rate.Limiter
	log     *slog.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithTimeouts sets the per-connection read deadline (request line) and
// write deadline (response). Zero disables the respective deadline.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// WithAcceptLimit drops connections beyond perSecond (burst b) at the accept
// loop, before any parsing. perSecond <= 0 leaves limiting disabled.
func WithAcceptLimit(perSecond float64, b int) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), b)
		}
	}
}

// New creates a Server submitting to p. The error table starts with default
// handlers that write the bare status text for each kind; override them with
// [Server.HandleError].
func New(p *pool.Pool[net.Conn], opts ...Option) *Server {
	s := &Server{
		pool:   p,
		routes: make(map[routeKey]pool.Handler[net.Conn]),
		errors: make(map[ErrorKind]pool.Handler[net.Conn]),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, kind := range []ErrorKind{ErrBadRequest, ErrNotFound, ErrInternal} {
		s.errors[kind] = s.wrapError(kind, func(Request) (string, error) {
			return kind.Status(), nil
		})
	}
	return s
}

// Handle registers fn for the (method, uri) route key. Not safe to call
// after Serve has started.
func (s *Server) Handle(m Method, uri string, fn RouteFunc) {
	s.routes[routeKey{method: m, uri: uri}] = s.wrap(Request{Method: m, URI: uri}, fn)
}

// HandleError replaces the fallback handler for kind. The response always
// carries kind's status line; fn supplies only the body. If fn itself
// fails, the bare status text is used.
func (s *Server) HandleError(kind ErrorKind, fn RouteFunc) {
	s.errors[kind] = s.wrapError(kind, fn)
}

// wrap turns a RouteFunc into the pool handler that owns the connection: run
// the body, format the status line, write the response, close. The returned
// handler is shared by every worker; req and fn are read-only after
// registration, so it is safe to invoke concurrently.
func (s *Server) wrap(req Request, fn RouteFunc) pool.Handler[net.Conn] {
	return pool.HandlerFunc[net.Conn](func(conn net.Conn) {
		defer conn.Close() //nolint:errcheck

		status := statusOK
		body, err := fn(req)
		if err != nil {
			kind := classify(err)
			status = kind.Status()
			body = kind.Status()
		}
		s.writeResponse(conn, status, body)
	})
}

// wrapError is wrap for the error table: the status line is fixed by kind
// regardless of what fn returns.
func (s *Server) wrapError(kind ErrorKind, fn RouteFunc) pool.Handler[net.Conn] {
	return pool.HandlerFunc[net.Conn](func(conn net.Conn) {
		defer conn.Close() //nolint:errcheck

		body, err := fn(Request{})
		if err != nil {
			body = kind.Status()
		}
		s.writeResponse(conn, kind.Status(), body)
	})
}

func (s *Server) writeResponse(conn net.Conn, status, body string) {
	if s.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)) //nolint:errcheck
	}
	if _, err := io.WriteString(conn, FormatResponse(status, body)); err != nil {
		s.log.Warn("write response failed", "error", err)
	}
}

// Serve listens on addr and runs the accept loop until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener runs the accept loop on ln until ctx is cancelled, at which
// point the listener is closed and ServeListener returns nil. Jobs already
// submitted keep running on the pool; nothing drains or interrupts them.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	addr := ln.Addr().String()
	stop := context.AfterFunc(ctx, func() { ln.Close() }) //nolint:errcheck
	defer stop()

	s.log.Info("server started", "addr", addr, "workers", s.pool.Workers())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("server stopped", "addr", addr)
				return nil
			}
			s.log.Error("accept failed", "error", err)
			continue
		}
		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn("connection dropped by accept limit",
				"remote", conn.RemoteAddr().String())
			conn.Close() //nolint:errcheck
			continue
		}
		s.dispatch(conn)
	}
}

// dispatch resolves the one handler for conn and submits the one job. After
// Submit the connection belongs to the pool and must not be retained here.
func (s *Server) dispatch(conn net.Conn) {
	connID := uuid.New().String()
	if s.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout)) //nolint:errcheck
	}

	req, err := ReadRequest(bufio.NewReaderSize(conn, maxLineBytes))
	if err != nil {
		s.log.Warn("bad request",
			"conn_id", connID,
			"remote", conn.RemoteAddr().String(),
			"error", err,
		)
		s.pool.Submit(s.errors[ErrBadRequest], conn)
		return
	}

	h, ok := s.routes[routeKey{method: req.Method, uri: req.URI}]
	if !ok {
		s.log.Info("no route",
			"conn_id", connID,
			"method", string(req.Method),
			"uri", req.URI,
		)
		s.pool.Submit(s.errors[ErrNotFound], conn)
		return
	}

	s.log.Info("request",
		"conn_id", connID,
		"method", string(req.Method),
		"uri", req.URI,
	)
	s.pool.Submit(h, conn)
}
