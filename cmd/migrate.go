package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/estately/internal/database"
	"github.com/estately/internal/logging"
	"github.com/estately/internal/retry"
)

// MigrateCommand applies the chat schema and River's job tables
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty, os.Stderr); err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database url is required to migrate")
			}

			policy := retry.ConnectPolicy()
			policy.MaxRetries = cfg.Database.ConnectRetries
			pool, err := database.NewPool(c.Context, cfg.Database.URL, database.PoolOptions{Connect: policy})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(c.Context, pool); err != nil {
				return err
			}
			log.Info().Msg("Migrations applied")
			return nil
		},
	}
}
