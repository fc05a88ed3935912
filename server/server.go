// Package server exposes validation engines over HTTP with echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/reoring/ccv"
	"github.com/reoring/ccv/internal/logctx"
	"github.com/reoring/ccv/schema"
)

// Config configures a Server.
type Config struct {
	// Engines maps each served kind to its engine. Kinds without an engine
	// have no route.
	Engines map[ccv.ConfigKind]*ccv.Engine
	// Logger receives request and server events. Default: discard.
	Logger *slog.Logger
	// MaxConcurrency bounds validations running at once. Default: 64.
	MaxConcurrency int64
	// BodyLimit bounds request bodies in bytes. Default: 4 MiB.
	BodyLimit int64
}

// Server is the HTTP front of the validator.
type Server struct {
	echo     *echo.Echo
	engines  map[ccv.ConfigKind]*ccv.Engine
	envelope *schema.Node
	sem      *semaphore.Weighted
	log      *slog.Logger
}

// New builds the routes:
//
//	GET  /                            ["/v1"]
//	GET  /healthz                     {"status":"ok"}
//	POST /v1/cloud-config/validate    report
//	POST /v1/network-config/validate  report
func New(cfg Config) (*Server, error) {
	if len(cfg.Engines) == 0 {
		return nil, errors.New("server: no engines configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = logctx.Discard()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 64
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 4 << 20
	}
	envelope, err := compileRequestSchema()
	if err != nil {
		return nil, fmt.Errorf("server: request schema: %w", err)
	}

	s := &Server{
		echo:     echo.New(),
		engines:  cfg.Engines,
		envelope: envelope,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrency),
		log:      cfg.Logger,
	}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = goJSONSerializer{}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			r := c.Request()
			ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
				RequestID:  id,
				Method:     r.Method,
				UserAgent:  r.UserAgent(),
				RemoteAddr: r.RemoteAddr,
				Path:       r.URL.Path,
			})
			c.SetRequest(r.WithContext(ctx))
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{slog.Int("status", v.Status), slog.Duration("latency", v.Latency)}
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			s.log.LogAttrs(c.Request().Context(), level, "http.request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", cfg.BodyLimit)))

	e.GET("/", func(c echo.Context) error { return c.JSON(http.StatusOK, []string{"/v1"}) })
	e.GET("/healthz", func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]string{"status": "ok"}) })
	v1 := e.Group("/v1")
	for _, kind := range ccv.Kinds {
		if eng, ok := cfg.Engines[kind]; ok {
			v1.POST("/"+kind.Slug()+"/validate", s.handleValidate(kind, eng), ValidateEnvelope(envelope))
		}
	}
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) handleValidate(kind ccv.ConfigKind, eng *ccv.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, ok := RequestFromContext(c.Request().Context())
		if !ok {
			return echo.NewHTTPError(http.StatusInternalServerError, "request envelope missing")
		}
		ctx := logctx.WithValidationData(c.Request().Context(), &logctx.ValidationData{
			Kind:   kind.String(),
			Format: string(req.Format),
			Bytes:  len(req.Payload),
		})

		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.log.WarnContext(ctx, "validate.busy", "err", err)
			return c.JSON(http.StatusServiceUnavailable, ErrorPayload("server busy, retry later"))
		}
		defer s.sem.Release(1)

		report, err := eng.Validate(ctx, req.Format, []byte(req.Payload))
		if err != nil {
			if pe, ok := ccv.AsParseError(err); ok {
				s.log.InfoContext(ctx, "validate.parse_error", "err", pe)
				return c.JSON(http.StatusBadRequest, ErrorPayload(pe.Error()))
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return c.JSON(http.StatusServiceUnavailable, ErrorPayload(err.Error()))
			}
			return err
		}
		s.log.InfoContext(ctx, "validate.done", "valid", report.Valid(), "errors", len(report.Errors))
		return c.JSON(http.StatusOK, report)
	}
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.InfoContext(ctx, "server.listen", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.InfoContext(ctx, "server.stopped")
	return nil
}
