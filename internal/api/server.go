package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/estately/internal/api/auth"
	apimw "github.com/estately/internal/api/middleware"
	"github.com/estately/internal/chat"
	"github.com/estately/internal/logging"
	"github.com/estately/internal/metrics"
)

// Dependencies are the collaborators the HTTP layer is wired to
type Dependencies struct {
	Service    *chat.Service
	Tokens     *auth.TokenService
	CookieName string
	Metrics    *metrics.Collector // optional
	RateLimit  apimw.RateLimitConfig

	// Health reports whether the backing store is reachable; nil means always healthy
	Health func(ctx context.Context) error
}

// Server represents the API server
type Server struct {
	echo            *echo.Echo
	port            int
	shutdownTimeout time.Duration
	deps            Dependencies
}

// NewServer creates a new API server
func NewServer(port int, shutdownTimeout time.Duration, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(logging.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	server := &Server{
		echo:            e,
		port:            port,
		shutdownTimeout: shutdownTimeout,
		deps:            deps,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", s.health)

	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	rateLimit := s.deps.RateLimit
	if rateLimit.OnLimited == nil && s.deps.Metrics != nil {
		rateLimit.OnLimited = s.deps.Metrics.RateLimited
	}

	chats := NewChatHandlers(s.deps.Service)
	api := s.echo.Group("/api", auth.RequireAuth(s.deps.Tokens, s.deps.CookieName))

	// Reads are not rate limited
	api.GET("/chats", chats.ListChats)
	api.GET("/chats/:id", chats.GetChat)
	api.GET("/users/notification", chats.UnreadCount)

	limiter := apimw.RateLimitByPrincipal(rateLimit)
	api.POST("/chats", chats.OpenChat, limiter)
	api.PUT("/chats/read/:id", chats.MarkRead, limiter)
	api.POST("/messages/:chatId", chats.SendMessage, limiter)
}

func (s *Server) health(c echo.Context) error {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", s.shutdownTimeout).Msg("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	return s.echo.Shutdown(shutdownCtx)
}

type errorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

var kindStatus = map[chat.Kind]int{
	chat.KindValidation:       http.StatusBadRequest,
	chat.KindUnauthenticated:  http.StatusUnauthorized,
	chat.KindNotFound:         http.StatusNotFound,
	chat.KindConflict:         http.StatusConflict,
	chat.KindStoreUnavailable: http.StatusServiceUnavailable,
	chat.KindInternal:         http.StatusInternalServerError,
}

var statusKind = map[int]string{
	http.StatusBadRequest:            string(chat.KindValidation),
	http.StatusUnauthorized:          string(chat.KindUnauthenticated),
	http.StatusForbidden:             "invalid_credential",
	http.StatusNotFound:              string(chat.KindNotFound),
	http.StatusMethodNotAllowed:      "method_not_allowed",
	http.StatusRequestEntityTooLarge: string(chat.KindValidation),
	http.StatusTooManyRequests:       "rate_limited",
	http.StatusServiceUnavailable:    string(chat.KindStoreUnavailable),
}

// errorHandler renders every failure as {"message", "kind"}. Internal
// details stay in the logs.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := errorResponse{Message: "Internal server error", Kind: string(chat.KindInternal)}

	var ce *chat.Error
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ce):
		if code, ok := kindStatus[ce.Kind]; ok {
			status = code
		}
		body.Kind = string(ce.Kind)
		if ce.Kind != chat.KindInternal {
			body.Message = ce.Message
		}
	case errors.As(err, &he):
		status = he.Code
		if kind, ok := statusKind[he.Code]; ok {
			body.Kind = kind
		}
		if status < http.StatusInternalServerError {
			body.Message = fmt.Sprint(he.Message)
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Int("status", status).Msg("Request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write error response")
	}
}
