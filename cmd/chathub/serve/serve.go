package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chathub/cmd/chathub/setup"
	"github.com/papercomputeco/chathub/pkg/config"
	"github.com/papercomputeco/chathub/pkg/session"
	"github.com/papercomputeco/chathub/relay"
)

const serveLongDesc string = `Run the HTTP relay.

Endpoints:
  POST   /api/chat              {"caller","message","style"} -> reply
  GET    /api/session/:caller   persisted conversation
  DELETE /api/session/:caller   drop the conversation
  GET    /health
  *      /mcp                   MCP streamable HTTP (ask, reset)

The cookie, style and system prompt are reloaded when the config file
changes.

Examples:
  chathub serve
  chathub serve --listen :9000 --config ./chathub.toml`

const serveShortDesc string = "Run the HTTP relay"

type serveCommander struct {
	opts    *setup.Options
	version string
	listen  string
}

func NewServeCmd(opts *setup.Options, version string) *cobra.Command {
	cmder := &serveCommander{opts: opts, version: version}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (overrides server.listen)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	env, err := setup.New(ctx, c.opts)
	if err != nil {
		return err
	}
	defer env.Close()

	listen := env.Config.Server.Listen
	if c.listen != "" {
		listen = c.listen
	}

	r := relay.New(relay.Config{ListenAddr: listen, Version: c.version}, env.Manager, env.Logger)

	if _, err := os.Stat(env.ConfigPath); err == nil {
		go func() {
			if err := config.Watch(ctx, env.ConfigPath, env.Logger, env.Apply); err != nil {
				env.Logger.Warn("config hot reload disabled", zap.Error(err))
			}
		}()
	}

	go session.PruneEvery(ctx, env.Store, env.Config.Store.PruneInterval, env.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		env.Logger.Info("shutting down relay server")
		if err := r.Shutdown(); err != nil {
			return fmt.Errorf("shutting down relay server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("relay server failed: %w", err)
		}
		return nil
	}
}
