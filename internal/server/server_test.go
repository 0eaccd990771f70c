package server_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scarson/relayd/internal/pool"
	"github.com/scarson/relayd/internal/server"
)

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// startServer builds a server over a 2-worker pool, lets configure register
// routes, and runs the accept loop on an ephemeral port until test cleanup.
func startServer(t *testing.T, configure func(*server.Server), opts ...server.Option) string {
	t.Helper()

	p := pool.New[net.Conn](2, pool.WithLogger(quietLogger()))
	opts = append(opts, server.WithLogger(quietLogger()))
	s := server.New(p, opts...)
	if configure != nil {
		configure(s)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.ServeListener(ctx, ln); err != nil {
			t.Errorf("ServeListener: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return ln.Addr().String()
}

// roundTrip writes raw to a fresh connection and returns everything read
// back until the handler closes it.
func roundTrip(t *testing.T, addr, raw string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestServer_RoutesRequestToHandler(t *testing.T) {
	t.Parallel()
	addr := startServer(t, func(s *server.Server) {
		s.Handle(server.MethodGet, "/", func(req server.Request) (string, error) {
			return "hello from " + req.URI, nil
		})
	})

	got := roundTrip(t, addr, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	want := "HTTP/1.1 200 OK\r\nContent-Length: 12\r\n\r\nhello from /"
	if got != want {
		t.Errorf("response = %q, want %q", got, want)
	}
}

func TestServer_UnknownRouteGets404(t *testing.T) {
	t.Parallel()
	addr := startServer(t, nil)

	got := roundTrip(t, addr, "GET /missing HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("response = %q, want 404 status line", got)
	}
}

func TestServer_MalformedRequestGets400(t *testing.T) {
	t.Parallel()
	addr := startServer(t, nil)

	for _, raw := range []string{"FROB / HTTP/1.1\r\n\r\n", "garbage\r\n\r\n"} {
		got := roundTrip(t, addr, raw)
		if !strings.HasPrefix(got, "HTTP/1.1 400 Bad Request\r\n") {
			t.Errorf("response to %q = %q, want 400 status line", raw, got)
		}
	}
}

func TestServer_RouteErrorSelectsFallback(t *testing.T) {
	t.Parallel()
	addr := startServer(t, func(s *server.Server) {
		s.Handle(server.MethodGet, "/gone", func(server.Request) (string, error) {
			return "", fmt.Errorf("lookup: %w", server.ErrNotFound)
		})
		s.Handle(server.MethodGet, "/broken", func(server.Request) (string, error) {
			return "", errors.New("backend exploded")
		})
	})

	if got := roundTrip(t, addr, "GET /gone HTTP/1.1\r\n\r\n"); !strings.HasPrefix(got, "HTTP/1.1 404 ") {
		t.Errorf("/gone response = %q, want 404", got)
	}
	if got := roundTrip(t, addr, "GET /broken HTTP/1.1\r\n\r\n"); !strings.HasPrefix(got, "HTTP/1.1 500 ") {
		t.Errorf("/broken response = %q, want 500", got)
	}
}

func TestServer_CustomErrorHandler(t *testing.T) {
	t.Parallel()
	addr := startServer(t, func(s *server.Server) {
		s.HandleError(server.ErrNotFound, func(server.Request) (string, error) {
			return "nothing here", nil
		})
	})

	got := roundTrip(t, addr, "GET /nope HTTP/1.1\r\n\r\n")
	// The override supplies the body; the status line stays fixed by kind.
	if !strings.HasPrefix(got, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("response = %q, want 404 status line", got)
	}
	if !strings.HasSuffix(got, "nothing here") {
		t.Errorf("response = %q, want custom body", got)
	}
}

func TestServer_ServeFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	addr := startServer(t, func(s *server.Server) {
		s.Handle(server.MethodGet, "/", server.ServeFile(root, "hello.html"))
		s.Handle(server.MethodGet, "/missing", server.ServeFile(root, "nope.html"))
	})

	got := roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n")
	if !strings.HasSuffix(got, "<h1>hi</h1>") || !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("response = %q, want 200 with file body", got)
	}

	if got := roundTrip(t, addr, "GET /missing HTTP/1.1\r\n\r\n"); !strings.HasPrefix(got, "HTTP/1.1 404 ") {
		t.Errorf("missing file response = %q, want 404", got)
	}
}

func TestServer_OneJobPerConnection(t *testing.T) {
	t.Parallel()
	var jobs atomic.Int32
	addr := startServer(t, func(s *server.Server) {
		s.Handle(server.MethodGet, "/", func(server.Request) (string, error) {
			jobs.Add(1)
			return "ok", nil
		})
	})

	const conns = 10
	for i := 0; i < conns; i++ {
		roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n")
	}
	if n := jobs.Load(); n != conns {
		t.Errorf("handler ran %d times for %d connections", n, conns)
	}
}

func TestServer_AcceptLimitDropsExcessConnections(t *testing.T) {
	t.Parallel()
	// Burst of 1 and a near-zero refill rate: the first connection is
	// admitted, the second is closed before any response.
	addr := startServer(t, func(s *server.Server) {
		s.Handle(server.MethodGet, "/", func(server.Request) (string, error) {
			return "ok", nil
		})
	}, server.WithAcceptLimit(0.001, 1))

	first := roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(first, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("first response = %q, want 200", first)
	}

	second := roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n")
	if second != "" {
		t.Errorf("second response = %q, want connection closed without response", second)
	}
}
