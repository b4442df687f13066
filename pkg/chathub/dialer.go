package chathub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/papercomputeco/chathub/pkg/sydney"
)

// Connector opens the real-time transport for one turn.
type Connector interface {
	Dial(ctx context.Context) (*websocket.Conn, error)
}

// DialerConfig controls the websocket upgrade and its retry policy.
type DialerConfig struct {
	// URL of the chat hub (e.g., "wss://sydney.bing.com/sydney/ChatHub")
	URL string

	// Header is sent with every upgrade request.
	Header http.Header

	// MaxAttempts bounds the number of upgrade attempts. Zero uses the default.
	MaxAttempts int

	// InitialBackoff is the delay after the first failure; it doubles per attempt
	// up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// HandshakeTimeout bounds a single upgrade attempt.
	HandshakeTimeout time.Duration
}

const (
	defaultMaxAttempts      = 8
	defaultInitialBackoff   = 250 * time.Millisecond
	defaultMaxBackoff       = 5 * time.Second
	defaultHandshakeTimeout = 15 * time.Second
)

// Dialer establishes the websocket connection, retrying transient failures with
// bounded exponential backoff.
type Dialer struct {
	config DialerConfig
	ws     *websocket.Dialer
	logger *zap.Logger
}

// NewDialer creates a Dialer, filling unset fields with defaults.
func NewDialer(config DialerConfig, logger *zap.Logger) *Dialer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaultInitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaultMaxBackoff
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaultHandshakeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dialer{
		config: config,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		logger: logger,
	}
}

// Dial returns an open connection, or a *sydney.ConnectError once the retry
// attempts are spent or ctx is done.
func (d *Dialer) Dial(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error

	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		conn, resp, err := d.ws.DialContext(ctx, d.config.URL, d.config.Header)
		if err == nil {
			d.logger.Debug("chat hub connected",
				zap.String("url", d.config.URL),
				zap.Int("attempt", attempt),
			)
			return conn, nil
		}

		if resp != nil && errors.Is(err, websocket.ErrBadHandshake) {
			err = fmt.Errorf("upgrade returned status %d: %w", resp.StatusCode, err)
		}
		lastErr = err

		d.logger.Debug("chat hub upgrade failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			return nil, &sydney.ConnectError{Attempts: attempt, Err: ctx.Err()}
		}
		if attempt == d.config.MaxAttempts {
			break
		}

		timer := time.NewTimer(d.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &sydney.ConnectError{Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return nil, &sydney.ConnectError{Attempts: d.config.MaxAttempts, Err: lastErr}
}

// backoff returns the delay after the given failed attempt.
func (d *Dialer) backoff(attempt int) time.Duration {
	delay := d.config.InitialBackoff
	for i := 1; i < attempt && delay < d.config.MaxBackoff; i++ {
		delay *= 2
	}
	return min(delay, d.config.MaxBackoff)
}
