package relay

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/chathub/pkg/session"
)

// AskInput is the input of the ask tool.
type AskInput struct {
	Caller  string `json:"caller" jsonschema:"identity whose conversation the message belongs to"`
	Message string `json:"message" jsonschema:"the message to send"`
	Style   string `json:"style,omitempty" jsonschema:"conversation style: creative, balanced or precise"`
}

// ResetInput is the input of the reset tool.
type ResetInput struct {
	Caller string `json:"caller" jsonschema:"identity whose conversation is dropped"`
}

// ResetOutput is the result of the reset tool.
type ResetOutput struct {
	Reset bool `json:"reset"`
}

// NewMCPServer exposes ask and reset as MCP tools.
func NewMCPServer(sessions *Sessions, version string, logger *zap.Logger) *mcp.Server {
	if version == "" {
		version = "dev"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "chathub", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Send a message in the caller's ongoing conversation and return the answer.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, session.Reply, error) {
		logger.Debug("mcp ask", zap.String("caller", in.Caller), zap.String("message_preview", truncate(in.Message, 50)))

		reply, err := sessions.Turn(ctx, in.Caller, in.Style, in.Message)
		if err != nil {
			return nil, session.Reply{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: reply.Text}},
		}, *reply, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset",
		Description: "Drop the caller's conversation so the next message starts a new one.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ResetInput) (*mcp.CallToolResult, ResetOutput, error) {
		if err := sessions.Reset(ctx, in.Caller); err != nil {
			return nil, ResetOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Conversation reset."}},
		}, ResetOutput{Reset: true}, nil
	})

	return server
}
