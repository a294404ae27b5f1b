package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/usecase/turn"
)

func chatCommand() *cli.Command {
	var (
		cfg       config
		domain    string
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "domain",
			Usage:       "Storefront domain for this session",
			Sources:     cli.EnvVars("WHIPPET_DOMAIN"),
			Destination: &domain,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Resume an existing session instead of starting a new one",
			Sources:     cli.EnvVars("WHIPPET_SESSION_ID"),
			Destination: &sessionID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, engineFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive retrieval session against a storefront",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, _, err := cfg.newTurnUseCase(ctx)
			if err != nil {
				return err
			}

			id := model.SessionID(sessionID)
			if id == "" {
				id = model.NewSessionID()
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Session %s on %s. Type 'exit' to quit, '/context' to inspect state.\n", id, domain)

			for {
				line, err := rl.Readline()
				if err != nil {
					// Ctrl-C on an empty line or Ctrl-D ends the session
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				utterance := strings.TrimSpace(line)
				switch {
				case utterance == "":
					continue
				case utterance == "exit" || utterance == "quit":
					fmt.Fprintf(w, "Session %s ended\n", id)
					return nil
				case utterance == "/context":
					block, err := uc.Context(ctx, id)
					if err != nil {
						return err
					}
					if block == "" {
						block = "(no conversation state yet)"
					}
					fmt.Fprintf(w, "%s\n", block)
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
					spinner.WithWriter(c.Root().ErrWriter))
				sp.Suffix = " searching..."
				sp.Start()

				out, err := uc.ProcessTurn(ctx, turn.ProcessInput{
					SessionID: id,
					Domain:    domain,
					Utterance: utterance,
				})
				sp.Stop()
				if err != nil {
					return goerr.Wrap(err, "failed to process turn")
				}

				printTurn(w, out)
			}

			fmt.Fprintf(w, "\nSession %s ended\n", id)
			return nil
		},
	}
}

func printTurn(w io.Writer, out *turn.Output) {
	if out.ResolvedQuery != "" {
		fmt.Fprintf(w, "(searched: %s)\n", out.ResolvedQuery)
	}
	if out.ResultsBlock == "" {
		fmt.Fprintf(w, "No results.\n")
	} else {
		fmt.Fprintf(w, "%s\n", out.ResultsBlock)
	}
	if out.HasMore {
		fmt.Fprintf(w, "More results available (cursor: %s)\n", out.NextCursor)
	}
	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "warning: %s source failed (%s); results may be incomplete\n", warn.Source, warn.Kind)
	}
}
