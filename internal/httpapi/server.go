// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

// Package httpapi exposes the account service as a JSON HTTP API.
//
// Every reply, success and failure alike, is wrapped in the same envelope:
//
//	{"status": <http status>, "message": <human summary>, "response": <payload>}
//
// Domain errors are translated to client-safe statuses and messages in
// envelope.go; raw store and transport errors never leak into bodies.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/oops"

	"github.com/userforge/userforge/internal/account"
	"github.com/userforge/userforge/internal/observability"
)

const defaultRequestTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request and failure logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics attaches application metrics. Without it the server runs
// fine and simply records nothing.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRequestTimeout bounds the store and mail work done per request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// Server serves the user-account API over HTTP.
type Server struct {
	addr           string
	echo           *echo.Echo
	listener       net.Listener
	accounts       *account.Service
	resets         *account.ResetService
	metrics        *observability.Metrics
	logger         *slog.Logger
	requestTimeout time.Duration
	running        atomic.Bool
}

// NewServer creates an API server bound to the given account services.
// addr is a "host:port" listen address.
func NewServer(addr string, accounts *account.Service, resets *account.ResetService, opts ...Option) (*Server, error) {
	if accounts == nil {
		return nil, oops.Code("API_SERVER_INVALID").Errorf("account service is required")
	}
	if resets == nil {
		return nil, oops.Code("API_SERVER_INVALID").Errorf("reset service is required")
	}

	s := &Server{
		addr:           addr,
		accounts:       accounts,
		resets:         resets,
		logger:         slog.Default(),
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(s.requestLogger())

	e.HTTPErrorHandler = s.handleEchoError

	users := e.Group("/users")
	users.POST("/register", s.handleRegister)
	users.POST("/login", s.handleLogin)
	users.GET("", s.handleListUsers)
	users.GET("/:username", s.handleGetUser)
	users.PUT("/:username", s.handleUpdateUser)
	users.PATCH("/:username", s.handlePatchUser)
	users.DELETE("/:username", s.handleDeleteUser)
	users.POST("/request-password-reset", s.handleRequestReset)
	users.PUT("/reset-password/:email", s.handleChangePassword)

	s.echo = e
	return s, nil
}

// requestLogger emits one structured line per completed request.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote", c.RealIP(),
			)
			return err
		}
	}
}

// handleEchoError renders framework-level failures (unmatched routes,
// unsupported methods, oversized bodies) through the envelope so clients
// never see echo's default error shape.
func (s *Server) handleEchoError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case http.StatusNotFound:
			msg := fmt.Sprintf("The route %s does not exist on this server.", c.Request().URL.Path)
			//nolint:errcheck // response write failure means the client is gone
			respond(c, http.StatusNotFound, msg, nil)
			return
		case http.StatusMethodNotAllowed:
			//nolint:errcheck // response write failure means the client is gone
			respond(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
			return
		}
		//nolint:errcheck // response write failure means the client is gone
		respond(c, httpErr.Code, fmt.Sprint(httpErr.Message), nil)
		return
	}

	status, message, response := mapDomainError(err)
	//nolint:errcheck // response write failure means the client is gone
	respond(c, status, message, response)
}

// Start begins serving the API. It returns an error channel that receives
// any serve failure after startup; the channel closes on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener
	s.echo.Listener = listener

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := s.echo.Start(""); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server, waiting for in-flight
// requests up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.With("operation", "shutdown_api_server").Wrap(err)
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" when stopped.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Handler exposes the routing tree for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
