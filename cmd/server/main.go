package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	route "github.com/bassista/go_gallery/internal/api/route"
	appctx "github.com/bassista/go_gallery/internal/app"
	"github.com/bassista/go_gallery/internal/cache"
	"github.com/bassista/go_gallery/internal/config"
	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/media"
	"github.com/bassista/go_gallery/internal/migrate"
	"github.com/bassista/go_gallery/internal/repository"
	"github.com/bassista/go_gallery/internal/repository/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	// Set log level from configuration
	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', keeping '%s': %v", cfg.Misc.LogLevel, logger.Logger.GetLevel(), err)
	}
	if cfg.Misc.LogFormat == "json" {
		logger.UseJSON()
	}
	logger.WithComponent("main").Debugf("log level set to: %s", logger.Logger.GetLevel())
	logger.WithComponent("main").Infof("App will run on port: %d with %s backend", cfg.Server.Port, cfg.Data.Backend)

	backend, err := openBackend(context.Background(), cfg)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init %s backend: %v", cfg.Data.Backend, err)
	}

	mediaStore, err := openMedia(cfg.Media)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init media store: %v", err)
	}

	app, err := appctx.New(cfg, backend, mediaStore)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer app.Shutdown()

	if err := app.StartWatchers(); err != nil {
		logger.WithComponent("main").Fatalf("cannot start watchers: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := route.SetupRoutes(app, logger.Logger)
	srv := createGraceHttpServer(app.BaseCtx, "main-server", app.Config.Server, r)

	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Error(err)
	}
}

// openBackend wires the configured persistence backend.
func openBackend(ctx context.Context, cfg *config.Config) (appctx.Backend, error) {
	switch cfg.Data.Backend {
	case config.BackendPostgres:
		return openPostgres(ctx, cfg)
	default:
		return openJSON(ctx, cfg.Data)
	}
}

func openJSON(ctx context.Context, cfg config.DataConfig) (appctx.Backend, error) {
	repo, err := repository.NewJSONRepository(cfg.FilePath)
	if err != nil {
		return appctx.Backend{}, err
	}
	doc, err := repo.Load(ctx)
	if err != nil {
		return appctx.Backend{}, fmt.Errorf("cannot load data file: %w", err)
	}

	store := cache.NewStore(*doc)
	if cfg.WriteThrough {
		store = store.WithWriteThrough(repo)
	}
	return appctx.Backend{Store: store, Repo: repo, Cache: store}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (appctx.Backend, error) {
	if err := migrate.Up(ctx, cfg.Data.PostgresDSN); err != nil {
		return appctx.Backend{}, err
	}
	db, err := postgres.New(ctx, cfg.Data.PostgresDSN)
	if err != nil {
		return appctx.Backend{}, fmt.Errorf("connect postgres: %w", err)
	}

	origin, err := uuid.NewV4()
	if err != nil {
		db.Close()
		return appctx.Backend{}, err
	}
	logger.WithComponent("main").Infof("instance %s publishes invalidations on %s", origin, cfg.Cache.NotifyChannel)

	return appctx.Backend{
		Store:    postgres.NewPhotoRepo(db),
		Notifier: invalidation.NewPGNotifier(db.Pool, cfg.Cache.NotifyChannel, origin.String()),
		Connect:  invalidation.PoolConnector(db.Raw),
		Origin:   origin.String(),
		Close:    db.Close,
	}, nil
}

// openMedia uses object storage when an endpoint is configured and keeps uploads
// in memory otherwise.
func openMedia(cfg config.MediaConfig) (media.Store, error) {
	if cfg.Endpoint == "" {
		logger.WithComponent("main").Warn("media.endpoint is not set; uploads are kept in memory")
		return media.NewMemoryStore(cfg.MaxBytes), nil
	}
	return media.NewS3Store(cfg)
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
	return srv
}
