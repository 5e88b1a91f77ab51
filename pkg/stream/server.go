// Package stream serves the ring buffer over HTTP: a multipart MJPEG stream,
// a WebSocket frame feed, single-frame snapshots, health and metrics.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/framecast/pkg/capture"
	"github.com/user/framecast/pkg/metrics"
	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/ring"
)

// Route labels used in logs and metrics.
const (
	routeMJPEG = "mjpeg"
	routeWS    = "ws"
)

// Session is the capture session the handlers hold while serving.
type Session interface {
	Acquire(ctx context.Context) (release func(), err error)
	State() capture.State
	SourceName() string
}

// Options configures the HTTP layer.
type Options struct {
	StreamPath      string        // default "/stream.mjpg"
	PollInterval    time.Duration // idle wake-up for streaming loops; default 100ms
	WriteTimeout    time.Duration // per-frame write deadline; 0 disables
	SnapshotTimeout time.Duration // wait for a first frame; default 5s
	SnapshotQuality int           // JPEG quality for resized snapshots
	ShutdownTimeout time.Duration // default 5s
}

// Server is the HTTP front end.
type Server struct {
	buf      *ring.Buffer
	session  Session
	renderer ports.Renderer
	metrics  *metrics.Metrics
	logger   ports.Logger
	opts     Options

	upgrader websocket.Upgrader
	viewers  atomic.Int64
	mux      *http.ServeMux
}

// New creates a Server. m may be nil to disable /metrics.
func New(buf *ring.Buffer, session Session, renderer ports.Renderer, m *metrics.Metrics, logger ports.Logger, opts Options) *Server {
	if opts.StreamPath == "" {
		opts.StreamPath = "/stream.mjpg"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.SnapshotTimeout <= 0 {
		opts.SnapshotTimeout = 5 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		buf:      buf,
		session:  session,
		renderer: renderer,
		metrics:  m,
		logger:   logger.WithComponent("http"),
		opts:     opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}

	// GET patterns also match HEAD; other methods get 405 from the mux.
	s.mux.HandleFunc("GET "+opts.StreamPath, s.handleStream)
	s.mux.HandleFunc("GET /snapshot.jpg", s.handleSnapshot)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if m != nil {
		s.mux.Handle("GET /metrics", m.Handler())
	}
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Viewers returns the number of connected streaming clients.
func (s *Server) Viewers() int {
	return int(s.viewers.Load())
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Request contexts derive from ctx, so open streams end on cancellation
// instead of holding up the shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx, cancelBase := context.WithCancel(ctx)
	defer cancelBase()

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
