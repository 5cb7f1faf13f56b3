package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lwelte/gozp/pkg/config"
	"github.com/lwelte/gozp/pkg/handlers"
	"go.uber.org/fx"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var Module = fx.Module("api",
	fx.Provide(
		NewServer,
		handlers.NewHealthHandler,
		handlers.NewPoolHandler,
		handlers.NewScrubHandler,
		handlers.NewSnapshotHandler,
		handlers.NewMirrorHandler,
		handlers.NewAlertHandler,
		handlers.NewJobHandler,
	),
	fx.Invoke(registerHooks),
)

type Server struct {
	http   *http.Server
	logger *slog.Logger
}

type HandlerParams struct {
	fx.In

	Health   *handlers.HealthHandler
	Pool     *handlers.PoolHandler
	Scrub    *handlers.ScrubHandler
	Snapshot *handlers.SnapshotHandler
	Mirror   *handlers.MirrorHandler
	Alert    *handlers.AlertHandler
	Job      *handlers.JobHandler
}

type ServerParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	Handlers HandlerParams
}

func NewServer(p ServerParams) *Server {
	logger := p.Logger.With("component", "api")
	h := p.Handlers

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	v1 := e.Group("/api/v1")
	h.Health.Register(v1)
	h.Pool.Register(v1)
	h.Scrub.Register(v1)
	h.Snapshot.Register(v1)
	h.Mirror.Register(v1)
	h.Alert.Register(v1)
	h.Job.Register(v1)

	// Register pprof handlers for profiling
	e.GET("/debug/pprof/", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	e.GET("/debug/pprof/cmdline", echo.WrapHandler(http.HandlerFunc(pprof.Cmdline)))
	e.GET("/debug/pprof/profile", echo.WrapHandler(http.HandlerFunc(pprof.Profile)))
	e.GET("/debug/pprof/symbol", echo.WrapHandler(http.HandlerFunc(pprof.Symbol)))
	e.GET("/debug/pprof/trace", echo.WrapHandler(http.HandlerFunc(pprof.Trace)))
	logger.Info("pprof endpoints enabled at /debug/pprof/")

	// Use h2c for HTTP/2 without TLS
	h2cHandler := h2c.NewHandler(e, &http2.Server{})

	return &Server{
		http: &http.Server{
			Addr:    p.Config.APIAddress,
			Handler: h2cHandler,
		},
		logger: logger,
	}
}

func registerHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				s.logger.Info("starting api server", "address", s.http.Addr)
				if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.logger.Error("api server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("stopping api server")
			return s.http.Shutdown(ctx)
		},
	})
}
