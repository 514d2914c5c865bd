package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shorturls/internal/adapter/geoip"
	"github.com/vadimbarashkov/shorturls/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shorturls/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shorturls/internal/adapter/repository/redis"
	"github.com/vadimbarashkov/shorturls/internal/config"
	"github.com/vadimbarashkov/shorturls/internal/entity"
	"github.com/vadimbarashkov/shorturls/internal/usecase"
	"github.com/vadimbarashkov/shorturls/migrations"
	pg "github.com/vadimbarashkov/shorturls/pkg/postgres"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shorturls/internal/adapter/delivery/http"
)

const serviceName = "url-shortener"

type urlRepository interface {
	Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.ShortURL, error)
	AddClick(ctx context.Context, shortCode string, click entity.Click) error
}

// NewLogger builds the request logger shared by the router and the adapters.
func NewLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger(serviceName, httplog.Options{
		JSON:     cfg.Log.JSON,
		LogLevel: cfg.Log.SlogLevel(),
		Concise:  cfg.Env == config.EnvDev,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (urlRepository, func() error, error) {
	const op = "app.openRepository"

	switch cfg.Storage {
	case config.StoragePostgres:
		dsn := cfg.Postgres.DSN()

		db, err := pg.New(
			ctx,
			dsn,
			pg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			pg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			pg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			pg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}

		if err := pg.RunMigrations(migrations.FS, dsn); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		logger.Info("using postgres storage", slog.String("host", cfg.Postgres.Host))

		return postgres.NewURLRepository(db), db.Close, nil
	case config.StorageRedis:
		client, err := redis.New(ctx, &goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		logger.Info("using redis storage", slog.String("addr", cfg.Redis.Addr))

		return redis.NewURLRepository(client), client.Close, nil
	case config.StorageMemory:
		logger.Warn("using in-memory storage, records are lost on restart")

		return memory.NewURLRepository(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%s: unknown storage %q", op, cfg.Storage)
	}
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := NewLogger(cfg)

	urlRepo, closeRepo, err := openRepository(ctx, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeRepo()

	locator, err := geoip.Open(cfg.GeoIP.DBPath, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer locator.Close()

	urlUseCase := usecase.NewURLUseCase(
		urlRepo,
		locator,
		usecase.WithShortCodeLength(cfg.ShortCodeLength),
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(logger, urlUseCase),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
