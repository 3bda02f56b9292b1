// Command identity runs the identity service: it consumes commands from the
// broker, applies them against the credential store and replies exactly once
// per command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/core/ports"
	"github.com/99minutos/identity-system/internal/core/service"
	"github.com/99minutos/identity-system/internal/core/token"
	"github.com/99minutos/identity-system/internal/infrastructure/config"
	mongodb "github.com/99minutos/identity-system/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/identity-system/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-system/internal/infrastructure/db/sqlstore"
	httpinfra "github.com/99minutos/identity-system/internal/infrastructure/http"
	"github.com/99minutos/identity-system/internal/infrastructure/http/handlers"
	"github.com/99minutos/identity-system/internal/infrastructure/identityrpc"
	"github.com/99minutos/identity-system/internal/rpc"
	"github.com/99minutos/identity-system/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoadIdentity(zerolog.New(os.Stderr).With().Timestamp().Str("service", "identity").Logger())
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Service: "identity"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("identity service stopped")
	}
}

func run(ctx context.Context, cfg *config.IdentityConfig, log zerolog.Logger) error {
	codec, err := token.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Attempts: cfg.Redis.Attempts,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	checks := map[string]handlers.Check{"redis": handlers.RedisCheck(rdb)}
	store, closeStore, err := openStore(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens := service.NewTokenService(codec, redisdb.NewTokenCache(rdb), store, cfg.RefreshCacheTTL, log)
	users := service.NewUserService(store, service.NewBcryptHasher(cfg.BcryptCost), tokens, log)

	if cfg.AdminEmail != "" {
		admin, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		log.Info().Int64("user_id", admin.ID).Msg("admin account ready")
	}

	router := rpc.NewRouter(log)
	identityrpc.RegisterHandlers(router, users)

	server := rpc.NewServer(redisdb.NewBroker(rdb, cfg.RPC.ReplyTTL), cfg.RPC.Queue, router, log,
		rpc.WithWorkers(cfg.Workers),
		rpc.WithHandlerTimeout(cfg.HandlerTimeout),
	)

	ops := httpinfra.NewOpsRouter(checks)
	go func() {
		log.Info().Str("port", cfg.OpsPort).Msg("ops listener started")
		if err := ops.Start(":" + cfg.OpsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops listener")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ops shutdown")
		}
	}()

	log.Info().Str("store", cfg.StoreDriver).Int("workers", cfg.Workers).Msg("identity service started")
	return server.Run(ctx)
}

// openStore connects the configured credential store and registers its
// readiness check.
func openStore(ctx context.Context, cfg *config.IdentityConfig, log zerolog.Logger, checks map[string]handlers.Check) (ports.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if cfg.Postgres.AutoMigrate {
			if err := sqlstore.ApplyMigrations(cfg.Postgres.DSN, log); err != nil {
				return nil, nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		store, err := sqlstore.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		checks["postgres"] = store.Ping
		return store, closer(store, log), nil

	case config.StoreSQLite:
		store, err := sqlstore.OpenSQLite(ctx, cfg.SQLite.File)
		if err != nil {
			return nil, nil, err
		}
		checks["sqlite"] = store.Ping
		return store, closer(store, log), nil

	default:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, AppName: "identity"})
		if err != nil {
			return nil, nil, err
		}
		repo := mongodb.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		checks["mongodb"] = handlers.MongoCheck(db)
		return repo, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("mongo disconnect")
			}
		}, nil
	}
}

func closer(c io.Closer, log zerolog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}
}
