package chathub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/papercomputeco/chathub/pkg/sydney"
)

// Messages returned to callers when conversation creation fails without a
// backend-provided reason.
const (
	ErrMsgCreateFailed     = "Failed to start conversation."
	ErrMsgCreateUnexpected = "Unexpected error starting conversation."
)

// CreateConversation issues a new conversation identity. Any failure is
// returned as a *sydney.SessionCreateError whose message can be shown to the
// caller verbatim.
func (c *Client) CreateConversation(ctx context.Context) (*sydney.Conversation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.CreateURL, nil)
	if err != nil {
		return nil, &sydney.SessionCreateError{Message: ErrMsgCreateFailed, Err: err}
	}
	req.Header.Set("cookie", c.currentCookie())
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	if c.config.ForwardedFor != "" {
		req.Header.Set("x-forwarded-for", c.config.ForwardedFor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("conversation create request failed", zap.Error(err))
		return nil, &sydney.SessionCreateError{Message: ErrMsgCreateFailed, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("conversation create returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &sydney.SessionCreateError{StatusCode: resp.StatusCode, Message: ErrMsgCreateFailed}
	}

	var created sydney.CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		c.logger.Error("failed to decode conversation create response", zap.Error(err))
		return nil, &sydney.SessionCreateError{StatusCode: resp.StatusCode, Message: ErrMsgCreateUnexpected, Err: err}
	}

	if created.Result == nil || created.Result.Value != sydney.ResultSuccess {
		msg := ErrMsgCreateUnexpected
		if created.Result != nil && created.Result.Message != "" {
			msg = created.Result.Message
		}
		c.logger.Warn("conversation create rejected", zap.String("message", msg))
		return nil, &sydney.SessionCreateError{StatusCode: resp.StatusCode, Message: msg}
	}

	if created.ConversationID == "" || created.ClientID == "" || created.ConversationSignature == "" {
		return nil, &sydney.SessionCreateError{StatusCode: resp.StatusCode, Message: ErrMsgCreateUnexpected}
	}

	c.logger.Info("conversation created", zap.String("conversation_id", created.ConversationID))

	return &sydney.Conversation{
		ConversationID:        created.ConversationID,
		ClientID:              created.ClientID,
		ConversationSignature: created.ConversationSignature,
	}, nil
}
