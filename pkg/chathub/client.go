// Package chathub is a client for the ChatHub real-time chat protocol. It opens
// the websocket, performs the handshake, sends one chat request and waits for
// the terminal frame that carries the answer.
package chathub

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/papercomputeco/chathub/pkg/sydney"
)

// Config is the protocol client configuration.
type Config struct {
	// CreateURL is the conversation create endpoint.
	CreateURL string

	// HubURL is the websocket chat hub endpoint.
	HubURL string

	// Cookie is the caller credential sent with the create call.
	Cookie string

	// ForwardedFor is sent as x-forwarded-for to avoid geographic gating.
	ForwardedFor string

	// TurnTimeout bounds a whole exchange, connect included. Zero means no limit
	// beyond the caller's context.
	TurnTimeout time.Duration

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Exchange is the outcome of one completed turn.
type Exchange struct {
	// Conversation is the session the turn ran in. It is newly created when
	// Complete was called without one.
	Conversation *sydney.Conversation

	Response *sydney.Response

	// Keepalives counts the keepalive frames answered during the turn.
	Keepalives int
}

// Client talks to the chat backend. It is safe for concurrent use; each call
// to Complete uses its own connection.
type Client struct {
	config     Config
	connector  Connector
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.RWMutex
	cookie string
}

// New creates a Client with a retrying websocket Dialer.
func New(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	header := http.Header{}
	if config.ForwardedFor != "" {
		header.Set("x-forwarded-for", config.ForwardedFor)
	}

	dialer := NewDialer(DialerConfig{
		URL:            config.HubURL,
		Header:         header,
		MaxAttempts:    config.MaxAttempts,
		InitialBackoff: config.InitialBackoff,
		MaxBackoff:     config.MaxBackoff,
	}, logger)

	return NewWithConnector(config, dialer, logger)
}

// NewWithConnector creates a Client that opens connections through connector.
func NewWithConnector(config Config, connector Connector, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:    config,
		connector: connector,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		cookie: config.Cookie,
	}
}

// SetCookie replaces the credential used for subsequent create calls.
func (c *Client) SetCookie(cookie string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookie = cookie
}

func (c *Client) currentCookie() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cookie
}

// Complete runs one chat turn in conv. When conv is nil a conversation is
// created first; if that fails the *sydney.SessionCreateError is returned and
// no connection is attempted.
//
// The call resolves exactly once: with the terminal response, or with an error
// when the connection fails, a frame cannot be parsed, the server ends the
// invocation early, or ctx is done.
func (c *Client) Complete(ctx context.Context, conv *sydney.Conversation, style sydney.Style, systemPrompt, message string) (*Exchange, error) {
	if conv == nil {
		created, err := c.CreateConversation(ctx)
		if err != nil {
			return nil, err
		}
		conv = created
	}

	if c.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.TurnTimeout)
		defer cancel()
	}

	t := &turn{}

	conn, err := c.connector.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblocks ReadMessage when the caller abandons the turn.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	req := sydney.NewChatRequest(conv, style, systemPrompt, message)
	if err := c.open(conn, req); err != nil {
		return nil, c.abort(ctx, err)
	}
	if err := t.advance(stateAwaitingTerminal); err != nil {
		return nil, err
	}

	c.logger.Debug("chat request sent",
		zap.String("conversation_id", conv.ConversationID),
		zap.String("invocation_id", req.InvocationID),
		zap.String("trace_id", req.Arguments[0].TraceID),
		zap.String("style", string(sydney.ParseStyle(string(style)))),
		zap.String("message_preview", truncate(message, 50)),
	)

	for !t.done() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, c.abort(ctx, fmt.Errorf("read frame: %w", err))
		}

		frames, err := Decode(data)
		if err != nil {
			return nil, err
		}

		for _, f := range frames {
			t.frames++

			switch f.Kind {
			case FrameKeepalive:
				t.keepalives++
				if err := conn.WriteMessage(websocket.TextMessage, f.Reply()); err != nil {
					return nil, c.abort(ctx, fmt.Errorf("write keepalive: %w", err))
				}

			case FrameTerminal:
				if err := t.advance(stateDone); err != nil {
					return nil, err
				}
				c.closeGracefully(conn)

				c.logger.Debug("terminal frame received",
					zap.String("conversation_id", conv.ConversationID),
					zap.Int("frames", t.frames),
					zap.Int("keepalives", t.keepalives),
				)
				return &Exchange{
					Conversation: conv,
					Response:     f.Response,
					Keepalives:   t.keepalives,
				}, nil

			case FrameCompletion, FrameClose:
				return nil, &sydney.ProtocolError{Type: f.Type, Message: f.Response.Error}
			}
		}
	}

	return nil, fmt.Errorf("turn ended in state %s without a response", t.state)
}

// open sends the handshake and the request frame.
func (c *Client) open(conn *websocket.Conn, req *sydney.ChatRequest) error {
	handshake, err := Encode(sydney.DefaultHandshake)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, handshake); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}

	frame, err := Encode(req)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// abort prefers the context error when the connection was torn down because
// the caller gave up.
func (c *Client) abort(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *Client) closeGracefully(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		c.logger.Debug("failed to send close frame", zap.Error(err))
	}
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
