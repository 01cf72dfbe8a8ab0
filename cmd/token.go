package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/estately/internal/api/auth"
	"github.com/estately/internal/config"
	"github.com/estately/internal/database"
)

// TokenCommand mints a token for local development and manual testing
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint an identity token signed with the configured secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "User id to put in the token",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			if err := database.LoadEnv(); err != nil {
				return err
			}
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth secret is required (auth.secret or JWT_SECRET_KEY)")
			}

			tokens := auth.NewTokenService(cfg.Auth.Secret)
			tokens.TokenDuration = c.Duration("ttl")
			token, err := tokens.SignToken(c.String("user"))
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
}
