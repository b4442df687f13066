package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/chathub/cmd/chathub/ask"
	mcpcmder "github.com/papercomputeco/chathub/cmd/chathub/mcpcmd"
	resetcmder "github.com/papercomputeco/chathub/cmd/chathub/reset"
	servecmder "github.com/papercomputeco/chathub/cmd/chathub/serve"
	"github.com/papercomputeco/chathub/cmd/chathub/setup"
)

// version is set at build time.
var version = "dev"

const rootLongDesc string = `chathub relays conversations to a ChatHub chat backend.

Each caller id owns one conversation. It is created on the first
message, resumed on the following ones and dropped when the backend's
message quota is used up or when it is reset.

Configuration is read from --config, $CHATHUB_CONFIG or
$XDG_CONFIG_HOME/chathub/config.toml, in that order.`

func newRootCmd() *cobra.Command {
	opts := &setup.Options{}

	cmd := &cobra.Command{
		Use:           "chathub",
		Short:         "Session-aware relay for the ChatHub chat backend",
		Long:          rootLongDesc,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(askcmder.NewAskCmd(opts))
	cmd.AddCommand(resetcmder.NewResetCmd(opts))
	cmd.AddCommand(servecmder.NewServeCmd(opts, version))
	cmd.AddCommand(mcpcmder.NewMCPCmd(opts, version))

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
