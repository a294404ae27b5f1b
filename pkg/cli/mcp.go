package cli

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/whippetlabs/whippet/pkg/service/mcp"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, engineFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the engine over the Model Context Protocol on stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, orchestrator, err := cfg.newTurnUseCase(ctx)
			if err != nil {
				return err
			}
			return mcp.New(uc, orchestrator).Run(ctx)
		},
	}
}
