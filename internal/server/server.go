// Package server hosts a bridge over HTTP. Methods are invoked with
// POST /bridge/:module/:method and a JSON argument array; bridge events
// stream to WebSocket clients on /events.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/native-reverb/bridge"
	"github.com/cwbudde/native-reverb/internal/logging"
)

const (
	defaultBodyLimit    = 8 << 20
	defaultEventBuffer  = 64
	defaultWriteTimeout = 5 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logging.Module(l, "server")
	}
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithOriginPatterns allows cross-origin WebSocket clients matching patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.originPatterns = patterns
	}
}

// WithBodyLimit bounds request bodies in bytes.
func WithBodyLimit(n int64) Option {
	return func(s *Server) {
		s.bodyLimit = n
	}
}

// Server is the HTTP host of a bridge.
type Server struct {
	bridge         *bridge.Bridge
	echo           *echo.Echo
	logger         *slog.Logger
	gatherer       prometheus.Gatherer
	originPatterns []string
	bodyLimit      int64

	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	streams sync.WaitGroup
	dropped atomic.Int64
}

// New builds the routes for b.
func New(b *bridge.Bridge, opts ...Option) *Server {
	s := &Server{
		bridge:    b,
		logger:    logging.Discard(),
		bodyLimit: defaultBodyLimit,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	e.GET("/bridge", s.handleModules)
	e.POST("/bridge/:module/:method", s.handleInvoke)
	e.GET("/events", s.handleEvents)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			ErrorHandling: promhttp.HTTPErrorOnError,
		})))
	}
	s.echo = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// DroppedEvents counts events not delivered to slow WebSocket clients.
func (s *Server) DroppedEvents() int64 {
	return s.dropped.Load()
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully, closing event streams.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()
	s.logger.Info("listening", "addr", l.Addr().String())

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errc
	return err
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Close ends every event stream and waits for their handlers to return.
func (s *Server) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	s.streams.Wait()
}

func (s *Server) beginStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.streams.Add(1)
	return true
}

func (s *Server) handleHealth(c echo.Context) error {
	status := "ok"
	if !s.bridge.Valid() {
		status = "invalidated"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  status,
		"modules": s.bridge.Modules(),
	})
}

func (s *Server) handleModules(c echo.Context) error {
	out := make(map[string][]string)
	for _, name := range s.bridge.Modules() {
		out[name] = s.bridge.Methods(name)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleInvoke(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, s.bodyLimit+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	if int64(len(body)) > s.bodyLimit {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	result, err := s.bridge.Invoke(c.Request().Context(), c.Param("module"), c.Param("method"), body)
	if err != nil {
		be := bridge.AsError(err)
		return c.JSON(StatusFor(be.Code), map[string]any{"error": be})
	}
	return c.JSONBlob(http.StatusOK, result)
}

// StatusFor maps a bridge error code to an HTTP status.
func StatusFor(code bridge.Code) int {
	switch code {
	case bridge.CodeOK:
		return http.StatusOK
	case bridge.CodeInvalidArgument:
		return http.StatusBadRequest
	case bridge.CodeUnknownMethod:
		return http.StatusNotFound
	case bridge.CodeNotInitialized, bridge.CodeBusy:
		return http.StatusConflict
	case bridge.CodeDeviceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleEvents(c echo.Context) error {
	if !s.beginStream() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server shutting down")
	}
	defer s.streams.Done()

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		// Accept has already written the response.
		return nil
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(c.Request().Context())
	msgs := make(chan []byte, defaultEventBuffer)
	unsubscribe := s.bridge.Subscribe(func(_ string, payload []byte) {
		select {
		case msgs <- payload:
		default:
			s.dropped.Add(1)
		}
	})
	defer unsubscribe()

	s.logger.Debug("event stream opened", "remote", c.RealIP())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return nil
		case payload := <-msgs:
			wctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Debug("event stream write failed", "error", err)
				}
				return nil
			}
		}
	}
}
