package askcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chathub/cmd/chathub/setup"
	"github.com/papercomputeco/chathub/pkg/render"
	"github.com/papercomputeco/chathub/pkg/session"
	"github.com/papercomputeco/chathub/pkg/sydney"
)

const askLongDesc string = `Send one message in a caller's conversation and print the answer.

The conversation is resumed from the configured session store, so
follow-up messages only continue the same conversation when the store
outlives the process (sqlite, bolt or redis).

Examples:
  chathub ask "what is the tallest building in Europe?"
  chathub ask --caller alice --style precise "and in Asia?"`

const askShortDesc string = "Send a message and print the answer"

// DefaultCaller owns the conversation when --caller is not given.
const DefaultCaller = "cli"

type askCommander struct {
	opts   *setup.Options
	caller string
	style  string
}

func NewAskCmd(opts *setup.Options) *cobra.Command {
	cmder := &askCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&cmder.caller, "caller", DefaultCaller, "Caller id that owns the conversation")
	cmd.Flags().StringVarP(&cmder.style, "style", "s", "", "Conversation style: creative, balanced or precise")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, message string) error {
	env, err := setup.New(ctx, c.opts)
	if err != nil {
		return err
	}
	defer env.Close()

	r, err := render.New(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	var reply *session.Reply
	err = r.Wait(ctx, "waiting for the answer", func(ctx context.Context) (err error) {
		reply, err = env.Manager.Turn(ctx, c.caller, parseStyle(c.style), message)
		return err
	})
	if err != nil {
		return fmt.Errorf("could not complete turn: %w", err)
	}

	return r.Reply(reply)
}

// parseStyle keeps an empty flag empty so the configured default applies.
func parseStyle(s string) sydney.Style {
	if s == "" {
		return ""
	}
	return sydney.ParseStyle(s)
}
