package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/estately/internal/api"
	"github.com/estately/internal/api/auth"
	apimw "github.com/estately/internal/api/middleware"
	"github.com/estately/internal/chat"
	"github.com/estately/internal/chat/memstore"
	"github.com/estately/internal/chat/pgstore"
	"github.com/estately/internal/config"
	"github.com/estately/internal/database"
	"github.com/estately/internal/jobqueue"
	"github.com/estately/internal/logging"
	"github.com/estately/internal/metrics"
	"github.com/estately/internal/retry"
	"github.com/estately/internal/users"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the chat API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides server.port)",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply database migrations before serving",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty, os.Stderr); err != nil {
		return err
	}

	ctx := c.Context
	collector := metrics.New()
	deps := api.Dependencies{
		Tokens:     auth.NewTokenService(cfg.Auth.Secret),
		CookieName: cfg.Auth.Cookie,
		Metrics:    collector,
		RateLimit:  apimw.RateLimitConfig{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst},
	}
	opts := []chat.Option{chat.WithObserver(collector)}

	var store chat.Store
	var directory chat.Directory

	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn().Msg("Using the in-memory store; conversations are lost on restart")
		store = memstore.New()
		directory = users.StaticDirectory{}

	case config.DriverPostgres:
		policy := retry.ConnectPolicy()
		policy.MaxRetries = cfg.Database.ConnectRetries

		pool, err := database.NewPool(ctx, cfg.Database.URL, database.PoolOptions{
			MaxConns: cfg.Database.MaxConns,
			Connect:  policy,
		})
		if err != nil {
			return err
		}
		defer pool.Close()

		if c.Bool("migrate") {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
		}

		db, err := database.NewDB(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		pgs := pgstore.New(pool)
		profiles := users.NewDirectory(db)
		store = pgs
		directory = profiles
		deps.Health = pool.Ping

		if cfg.Reminders.Enabled {
			worker := jobqueue.NewUnreadReminderWorker(pgs, profiles, jobqueue.LogNotifier{}, collector)
			queue, err := jobqueue.NewJobQueue(pool, jobqueue.QueueConfig{
				MaxWorkers: cfg.Reminders.Workers,
				Delay:      cfg.Reminders.Delay,
			}, worker)
			if err != nil {
				return err
			}
			if err := queue.Start(ctx); err != nil {
				return fmt.Errorf("failed to start job queue: %w", err)
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := queue.Stop(stopCtx); err != nil {
					log.Warn().Err(err).Msg("Job queue did not stop cleanly")
				}
			}()
			opts = append(opts, chat.WithReminders(queue))
			log.Info().Dur("delay", cfg.Reminders.Delay).Msg("Unread reminders enabled")
		}

	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	deps.Service = chat.NewService(store, directory, opts...)

	log.Info().
		Str("store", cfg.Store.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting estately chat API")

	server := api.NewServer(cfg.Server.Port, cfg.Server.ShutdownTimeout, deps)
	return server.Start(ctx)
}
