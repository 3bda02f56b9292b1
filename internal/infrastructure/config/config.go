package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Common holds the settings both processes need to agree on.
type Common struct {
	Env       string `env:"ENV,       default=development"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	JWTSecret string `env:"JWT_SECRET"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,  default=15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL, default=168h"`

	RPC   RPCConfig
	Redis RedisConfig
}

type RPCConfig struct {
	Queue    string        `env:"RPC_QUEUE,     default=rpc:identity"`
	Timeout  time.Duration `env:"RPC_TIMEOUT,   default=5s"`
	ReplyTTL time.Duration `env:"RPC_REPLY_TTL, default=1m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,             default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,               default=0"`
	Attempts int    `env:"REDIS_CONNECT_ATTEMPTS, default=5"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity_system"`
}

type PostgresConfig struct {
	DSN         string `env:"POSTGRES_DSN"`
	AutoMigrate bool   `env:"POSTGRES_AUTO_MIGRATE, default=true"`
}

type SQLiteConfig struct {
	File string `env:"SQLITE_FILE, default=identity.db"`
}

type CookieConfig struct {
	Domain string        `env:"COOKIE_DOMAIN"`
	Secure bool          `env:"COOKIE_SECURE,  default=true"`
	MaxAge time.Duration `env:"COOKIE_MAX_AGE, default=24h"`
}

// GatewayConfig configures cmd/gateway.
type GatewayConfig struct {
	Common
	Port   string `env:"PORT, default=8080"`
	Cookie CookieConfig
}

// IdentityConfig configures cmd/identity.
type IdentityConfig struct {
	Common
	OpsPort         string        `env:"OPS_PORT,          default=9090"`
	Workers         int           `env:"WORKERS,           default=8"`
	HandlerTimeout  time.Duration `env:"HANDLER_TIMEOUT,   default=10s"`
	RefreshCacheTTL time.Duration `env:"REFRESH_CACHE_TTL, default=24h"`
	BcryptCost      int           `env:"BCRYPT_COST,       default=10"`

	StoreDriver string `env:"STORE_DRIVER, default=mongo"`
	Mongo       MongoConfig
	Postgres    PostgresConfig
	SQLite      SQLiteConfig

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c Common) IsDevelopment() bool {
	return c.Env == "development"
}

func (c Common) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AccessTokenTTL < time.Minute || c.AccessTokenTTL > time.Hour {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be between 1m and 60m, got %s", c.AccessTokenTTL)
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must exceed ACCESS_TOKEN_TTL (%s)", c.RefreshTokenTTL, c.AccessTokenTTL)
	}
	if c.RPC.Queue == "" {
		return errors.New("RPC_QUEUE must not be empty")
	}
	if c.RPC.Timeout <= 0 {
		return errors.New("RPC_TIMEOUT must be positive")
	}
	return nil
}

// Validate checks the gateway settings.
func (c *GatewayConfig) Validate() error {
	return c.Common.validate()
}

// Validate checks the identity service settings.
func (c *IdentityConfig) Validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	switch c.StoreDriver {
	case StoreMongo, StoreSQLite:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of mongo, postgres, sqlite, got %q", c.StoreDriver)
	}
	return nil
}

type validator interface {
	Validate() error
}

// process fills target from lookuper and validates it. A nil lookuper reads
// the process environment.
func process(ctx context.Context, target validator, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: target, Lookuper: lookuper}); err != nil {
		return err
	}
	return target.Validate()
}

// LoadGateway reads the gateway configuration.
func LoadGateway(ctx context.Context, lookuper envconfig.Lookuper) (*GatewayConfig, error) {
	var cfg GatewayConfig
	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadIdentity reads the identity service configuration.
func LoadIdentity(ctx context.Context, lookuper envconfig.Lookuper) (*IdentityConfig, error) {
	var cfg IdentityConfig
	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoadGateway reads the gateway configuration from the environment and
// panics when it is invalid.
func MustLoadGateway(logger zerolog.Logger) *GatewayConfig {
	cfg, err := LoadGateway(context.Background(), nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		panic(err)
	}
	return cfg
}

// MustLoadIdentity reads the identity service configuration from the
// environment and panics when it is invalid.
func MustLoadIdentity(logger zerolog.Logger) *IdentityConfig {
	cfg, err := LoadIdentity(context.Background(), nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		panic(err)
	}
	return cfg
}
