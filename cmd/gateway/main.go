// Command gateway serves the public HTTP API and forwards every request to the
// identity service over the broker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/api"
	"github.com/99minutos/identity-system/internal/api/handler"
	"github.com/99minutos/identity-system/internal/core/token"
	"github.com/99minutos/identity-system/internal/infrastructure/config"
	redisdb "github.com/99minutos/identity-system/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-system/internal/infrastructure/http/handlers"
	"github.com/99minutos/identity-system/internal/infrastructure/identityrpc"
	"github.com/99minutos/identity-system/internal/rpc"
	"github.com/99minutos/identity-system/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoadGateway(zerolog.New(os.Stderr).With().Timestamp().Str("service", "gateway").Logger())
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Service: "gateway"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := token.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Attempts: cfg.Redis.Attempts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect broker")
	}
	defer rdb.Close()

	broker := redisdb.NewBroker(rdb, cfg.RPC.ReplyTTL)
	rpcClient := rpc.NewClient(broker, cfg.RPC.Queue, log, rpc.WithCallTimeout(cfg.RPC.Timeout))
	// Replies keep flowing while e.Shutdown drains handlers; the deferred Close
	// stops the loop afterwards.
	rpcClient.Start(context.Background())
	defer rpcClient.Close()

	cookie := handler.DefaultRefreshCookie()
	cookie.Domain = cfg.Cookie.Domain
	cookie.Secure = cfg.Cookie.Secure
	cookie.MaxAge = cfg.Cookie.MaxAge

	e := api.NewRouter(api.Deps{
		Identity: identityrpc.NewClient(rpcClient, cfg.RPC.Timeout),
		Codec:    codec,
		Cookie:   cookie,
		Checks:   map[string]handlers.Check{"broker": broker.Ping},
		Log:      log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("queue", cfg.RPC.Queue).Msg("gateway listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("gateway server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown")
	}
}
