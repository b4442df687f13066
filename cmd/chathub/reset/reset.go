package resetcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chathub/cmd/chathub/setup"
	"github.com/papercomputeco/chathub/pkg/render"
)

const resetLongDesc string = `Drop a caller's conversation.

The next message from the caller starts a new conversation.

Examples:
  chathub reset
  chathub reset --caller alice`

const resetShortDesc string = "Drop a caller's conversation"

type resetCommander struct {
	opts   *setup.Options
	caller string
}

func NewResetCmd(opts *setup.Options) *cobra.Command {
	cmder := &resetCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: resetShortDesc,
		Long:  resetLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.caller, "caller", "cli", "Caller id that owns the conversation")

	return cmd
}

func (c *resetCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := setup.New(ctx, c.opts)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Manager.Reset(ctx, c.caller); err != nil {
		return err
	}

	r, err := render.New(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return r.Notice(fmt.Sprintf("Conversation reset for %s", c.caller))
}
