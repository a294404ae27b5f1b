package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/whippetlabs/whippet/pkg/model"
)

func tenantCommand() *cli.Command {
	return &cli.Command{
		Name:  "tenant",
		Usage: "Manage storefront tenant configurations",
		Commands: []*cli.Command{
			tenantRegisterCommand(),
			tenantShowCommand(),
		},
	}
}

func tenantRegisterCommand() *cli.Command {
	var (
		cfg       config
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing the tenant configuration",
			Sources:     cli.EnvVars("WHIPPET_TENANT_INPUT"),
			Destination: &inputPath,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "register",
		Usage: "Create or replace a tenant from JSON input",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			data, err := os.ReadFile(inputPath)
			if err != nil {
				return goerr.Wrap(err, "failed to read input file", goerr.V("path", inputPath))
			}

			var tenant model.Tenant
			if err := json.Unmarshal(data, &tenant); err != nil {
				return goerr.Wrap(err, "failed to parse tenant JSON")
			}
			if tenant.Domain == "" || tenant.IndexID == "" {
				return goerr.New("tenant domain and index_id are required")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			if err := repo.PutTenant(ctx, &tenant); err != nil {
				return goerr.Wrap(err, "failed to store tenant", goerr.V("domain", tenant.Domain))
			}

			fmt.Fprintf(c.Root().Writer, "Tenant registered: %s -> %s\n", tenant.Domain, tenant.IndexID)
			return nil
		},
	}
}

func tenantShowCommand() *cli.Command {
	var (
		cfg    config
		domain string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "domain",
			Usage:       "Storefront domain to look up",
			Destination: &domain,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Print a tenant configuration as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			tenant, err := repo.GetTenantByDomain(ctx, model.NormalizeDomain(domain))
			if err != nil {
				return goerr.Wrap(err, "failed to load tenant", goerr.V("domain", domain))
			}

			out, err := json.MarshalIndent(tenant, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to render tenant")
			}
			fmt.Fprintf(c.Root().Writer, "%s\n", out)
			return nil
		},
	}
}
