package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/whippetlabs/whippet/pkg/provider"
)

func orderCommand() *cli.Command {
	var (
		cfg    config
		domain string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "domain",
			Usage:       "Storefront domain the order belongs to",
			Sources:     cli.EnvVars("WHIPPET_DOMAIN"),
			Destination: &domain,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, engineFlags(&cfg)...)

	return &cli.Command{
		Name:      "order",
		Usage:     "Look up one order on the storefront's commerce platform",
		ArgsUsage: "<order number or ID>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ref := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if ref == "" {
				return goerr.New("order reference argument is required")
			}

			orchestrator, err := cfg.newOrchestrator(ctx)
			if err != nil {
				return err
			}

			order, err := orchestrator.LookupOrder(ctx, domain, ref)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", provider.FormatOrder(order))
			return nil
		},
	}
}
