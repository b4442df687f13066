package mcpcmder

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chathub/cmd/chathub/setup"
	"github.com/papercomputeco/chathub/relay"
)

const mcpLongDesc string = `Serve the ask and reset tools over MCP on stdin/stdout.

Logs go to stderr. Point an MCP client at this command, for example:

  {"command": "chathub", "args": ["mcp", "--config", "/path/to/config.toml"]}`

const mcpShortDesc string = "Serve MCP tools over stdio"

type mcpCommander struct {
	opts    *setup.Options
	version string
}

func NewMCPCmd(opts *setup.Options, version string) *cobra.Command {
	cmder := &mcpCommander{opts: opts, version: version}

	return &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}
}

func (c *mcpCommander) run(ctx context.Context) error {
	env, err := setup.New(ctx, c.opts)
	if err != nil {
		return err
	}
	defer env.Close()

	server := relay.NewMCPServer(relay.NewSessions(env.Manager), c.version, env.Logger)

	env.Logger.Info("serving MCP over stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server failed: %w", err)
	}
	return nil
}
