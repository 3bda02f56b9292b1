// Command migrate manages the postgres credential-store schema.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/99minutos/identity-system/internal/infrastructure/db/sqlstore"
	"github.com/99minutos/identity-system/pkg/logger"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down, 0 = all)")
		version = flag.Int("version", -1, "Target version (for force command)")
		dsn     = flag.String("dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN (defaults to $POSTGRES_DSN)")
	)
	flag.Parse()

	log := logger.Init(logger.Options{Level: os.Getenv("LOG_LEVEL"), Pretty: true, Service: "migrate"})
	if *dsn == "" {
		log.Fatal().Msg("postgres DSN required: set POSTGRES_DSN or pass -dsn")
	}

	switch *command {
	case "up":
		if *steps == 0 {
			if err := sqlstore.ApplyMigrations(*dsn, log); err != nil {
				log.Fatal().Err(err).Msg("migration up failed")
			}
			return
		}
		if err := sqlstore.MigrateSteps(*dsn, true, *steps); err != nil {
			log.Fatal().Err(err).Msg("migration up failed")
		}
		log.Info().Int("steps", *steps).Msg("migrations applied")
	case "down":
		if err := sqlstore.MigrateSteps(*dsn, false, *steps); err != nil {
			log.Fatal().Err(err).Msg("migration down failed")
		}
		log.Info().Int("steps", *steps).Msg("migrations rolled back")
	case "version":
		v, dirty, err := sqlstore.MigrationVersion(*dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get version")
		}
		if dirty {
			log.Error().Uint("version", v).Msg("database is in a dirty state")
			os.Exit(1)
		}
		fmt.Printf("Current migration version: %d\n", v)
	case "force":
		if *version < 0 {
			log.Fatal().Msg("version required for force command (use -version flag)")
		}
		if err := sqlstore.ForceVersion(*dsn, *version); err != nil {
			log.Fatal().Err(err).Msg("force migration failed")
		}
		log.Info().Int("version", *version).Msg("forced database version")
	default:
		log.Fatal().Str("command", *command).Msg("unknown command (supported: up, down, version, force)")
	}
}
