package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/usecase/turn"
)

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Inspect and archive conversation sessions",
		Commands: []*cli.Command{
			sessionShowCommand(),
			sessionArchiveCommand(),
		},
	}
}

func sessionShowCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session ID to show",
			Sources:     cli.EnvVars("WHIPPET_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, engineFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Print the reference-resolution context block for a session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rds, err := cfg.newRedis(ctx)
			if err != nil {
				return err
			}
			uc := turn.New(turn.NewInput{Store: rds})

			block, err := uc.Context(ctx, model.SessionID(sessionID))
			if err != nil {
				return goerr.Wrap(err, "failed to load session context")
			}
			if block == "" {
				block = "(no conversation state yet)"
			}
			fmt.Fprintf(c.Root().Writer, "%s\n", block)
			return nil
		},
	}
}

func sessionArchiveCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session ID to archive",
			Sources:     cli.EnvVars("WHIPPET_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, engineFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "archive",
		Usage: "Export a session's full metadata history to Cloud Storage",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rds, err := cfg.newRedis(ctx)
			if err != nil {
				return err
			}
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}
			uc := turn.New(turn.NewInput{Store: rds, Storage: storage})

			if err := uc.Archive(ctx, model.SessionID(sessionID)); err != nil {
				return goerr.Wrap(err, "failed to archive session")
			}
			fmt.Fprintf(c.Root().Writer, "Session archived: %s\n", sessionID)
			return nil
		},
	}
}
