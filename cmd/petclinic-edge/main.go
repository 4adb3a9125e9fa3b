package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"github.com/reynecat/petclinic-edge/internal/cache"
	"github.com/reynecat/petclinic-edge/internal/config"
	"github.com/reynecat/petclinic-edge/internal/deploy"
	"github.com/reynecat/petclinic-edge/internal/handler"
	"github.com/reynecat/petclinic-edge/internal/metrics"
	"github.com/reynecat/petclinic-edge/internal/middleware"
	"github.com/reynecat/petclinic-edge/internal/service"
	"github.com/reynecat/petclinic-edge/internal/upstream"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kctx := kong.Parse(&cli,
		kong.Name("petclinic-edge"),
		kong.Description(fmt.Sprintf("Edge reverse proxy and deployment tooling for the PetClinic application. %s (%s, %s)", version, commit, date)),
	)

	switch kctx.Command() {
	case "serve":
		runServe(&cli)
	case "deploy render":
		kctx.FatalIfErrorf(runRender(&cli))
	case "deploy apply":
		kctx.FatalIfErrorf(runApply(&cli))
	default:
		kctx.FatalIfErrorf(fmt.Errorf("unknown command %q", kctx.Command()))
	}
}

func runServe(cli *config.CLI) {
	fx.New(
		fx.Provide(
			func() *config.CLI { return cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			newCache,
			newPool,
			upstream.NewClient,
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, startServer),
	).Run()
}

func runRender(cli *config.CLI) error {
	cfg, logger, err := loadDeploy(cli)
	if err != nil {
		return err
	}

	d, err := deploy.NewDeployer(nil, cfg.Deploy, deployCreds(cli), logger)
	if err != nil {
		return err
	}

	out := os.Stdout
	if path := cli.Deploy.Render.Output; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	return d.Render(out)
}

func runApply(cli *config.CLI) error {
	cfg, logger, err := loadDeploy(cli)
	if err != nil {
		return err
	}

	clientset, err := deploy.BuildKubeClient(cli.Deploy.Apply.Kubeconfig)
	if err != nil {
		return err
	}

	d, err := deploy.NewDeployer(clientset, cfg.Deploy, deployCreds(cli), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return d.Apply(ctx)
}

func loadDeploy(cli *config.CLI) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cli)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg), nil
}

func deployCreds(cli *config.CLI) deploy.Credentials {
	return deploy.Credentials{
		Username: cli.Deploy.DBUser,
		Password: cli.Deploy.DBPassword,
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newMetrics() *metrics.Metrics {
	return metrics.New()
}

func newCache(cfg *config.Config) *cache.LRU {
	if cfg.Cache.Disabled {
		return nil
	}
	return cache.New(
		cfg.Cache.Capacity,
		cfg.Cache.MaxBodyBytes,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
	)
}

func newPool(cfg *config.Config) *upstream.Pool {
	return upstream.NewPool(
		cfg.Upstream.Endpoints,
		time.Duration(cfg.Upstream.CooldownSeconds)*time.Second,
	)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// The edge terminates client connections directly; the peer address is
	// the client address. Inbound X-Forwarded-For is never trusted.
	e.IPExtractor = echo.ExtractIPDirect()

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0) to avoid cutting off valid long-running
	// streamed responses. Protection is provided by the upstream client
	// timeout, ReadTimeout, and IdleTimeout.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())
	if cfg.Metrics.Enabled {
		e.Use(middleware.Metrics(m, cfg.Metrics.Path))
	}

	if cfg.Server.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server",
				"addr", addr,
				"upstreams", cfg.Upstream.Endpoints,
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
