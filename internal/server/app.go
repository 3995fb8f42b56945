// Package server initializes and runs the payment API server.
// It opens the database, applies migrations, selects the refresh-token
// store, handles graceful shutdown, and runs the HTTP API alongside the
// gRPC health endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/paymentapi/internal/logging"
	"github.com/dmitrijs2005/paymentapi/internal/server/auth"
	"github.com/dmitrijs2005/paymentapi/internal/server/config"
	"github.com/dmitrijs2005/paymentapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/paymentapi/internal/server/rest"
	"github.com/dmitrijs2005/paymentapi/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/paymentapi/internal/server/grpc"
)

const redisKeyPrefix = "paymentapi"

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       *redis.Client
	codec       *auth.Codec
	userService *services.UserService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	codec, err := auth.NewCodec([]byte(c.SecretKey), c.SigningAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("codec init error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, codec: codec}

	var opts []repomanager.Option
	if c.TokenStore == config.StoreRedis {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		opts = append(opts, repomanager.WithRedisTokens(app.redis, redisKeyPrefix))
	}

	m := repomanager.NewPostgresRepositoryManager(opts...)
	if err := m.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app.userService = services.NewUserService(db, m, codec, c, logger)

	if _, err := app.userService.SweepExpired(ctx); err != nil {
		logger.Warn(ctx, "expired refresh token sweep failed", "error", err)
	}

	return app, nil
}

// Close releases the database and Redis connections.
func (app *App) Close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	handler := rest.NewHandler(app.userService, app.logger)
	router := rest.NewRouter(handler, rest.NewAuthMiddleware(app.codec, app.logger), app.config.AllowedOrigins, app.logger)

	s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	opts := []gs.Option{gs.WithProbe("postgres", app.db.PingContext)}
	if app.redis != nil {
		opts = append(opts, gs.WithProbe("redis", func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}))
	}

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, opts...)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "token_store", app.config.TokenStore)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.Close()

	app.logger.Info(context.Background(), "App stopped")
}
