package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/whippetlabs/whippet/pkg/search"
	"github.com/whippetlabs/whippet/pkg/usecase/turn"
)

func searchCommand() *cli.Command {
	var (
		cfg      config
		domain   string
		category string
		inStock  bool
		minPrice float64
		maxPrice float64
		cursor   string
		limit    int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "domain",
			Usage:       "Storefront domain to search",
			Sources:     cli.EnvVars("WHIPPET_DOMAIN"),
			Destination: &domain,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "category",
			Usage:       "Restrict results to one category",
			Destination: &category,
		},
		&cli.BoolFlag{
			Name:        "in-stock",
			Usage:       "Only return in-stock products",
			Destination: &inStock,
		},
		&cli.FloatFlag{
			Name:        "min-price",
			Usage:       "Minimum price filter",
			Destination: &minPrice,
		},
		&cli.FloatFlag{
			Name:        "max-price",
			Usage:       "Maximum price filter",
			Destination: &maxPrice,
		},
		&cli.StringFlag{
			Name:        "cursor",
			Usage:       "Pagination cursor from a previous page",
			Destination: &cursor,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum results per page",
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, engineFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "One-shot catalog and content search",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("query argument is required")
			}

			orchestrator, err := cfg.newOrchestrator(ctx)
			if err != nil {
				return err
			}

			resp, err := orchestrator.Search(ctx, search.Request{
				Domain: domain,
				Query:  query,
				Filters: search.Filters{
					Category: category,
					InStock:  inStock,
					MinPrice: minPrice,
					MaxPrice: maxPrice,
				},
				Cursor: cursor,
				Limit:  int(limit),
			})
			if err != nil {
				return err
			}

			w := c.Root().Writer
			block := turn.RenderResults(resp.Results)
			if block == "" {
				fmt.Fprintf(w, "No results.\n")
			} else {
				fmt.Fprintf(w, "%s\n", block)
			}
			if resp.HasMore {
				fmt.Fprintf(w, "More results available (cursor: %s)\n", resp.NextCursor)
			}
			for _, warn := range resp.Warnings {
				fmt.Fprintf(w, "warning: %s source failed (%s); results may be incomplete\n", warn.Source, warn.Kind)
			}
			return nil
		},
	}
}
