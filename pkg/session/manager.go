package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chathub/pkg/chathub"
	"github.com/papercomputeco/chathub/pkg/sydney"
)

// Default session timing. The backend keeps a conversation for about six
// hours; the margin keeps a resumed session from expiring mid-turn.
const (
	DefaultLifetime = 6 * time.Hour
	DefaultMargin   = 10 * time.Minute
)

// ForcedEndNotice is appended to the answer of the turn that exhausted the
// conversation's quota.
const ForcedEndNotice = "\n\n(This conversation reached its message limit and was ended. Your next message starts a new one.)"

// Backend runs turns against the chat service. *chathub.Client implements it.
type Backend interface {
	CreateConversation(ctx context.Context) (*sydney.Conversation, error)
	Complete(ctx context.Context, conv *sydney.Conversation, style sydney.Style, systemPrompt, message string) (*chathub.Exchange, error)
}

// Config holds the Manager's timing and per-turn defaults.
type Config struct {
	Lifetime time.Duration
	Margin   time.Duration

	// Style is used when a turn does not name one.
	Style sydney.Style

	// SystemPrompt is attached to the first turn of every conversation.
	SystemPrompt string
}

// Reply is what the caller sees after a turn.
type Reply struct {
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions"`

	// Ended is set when the quota was exhausted and the session was dropped.
	Ended bool `json:"ended"`

	// Remaining is the number of turns left in the conversation.
	Remaining int `json:"remaining"`
}

// Manager owns the conversation of every caller. It resolves the persisted
// session, runs the turn, then advances or drops the session depending on the
// quota the backend reports.
//
// At most one turn per caller may be in flight: the store is read, modified
// and written back without locking, so concurrent turns for the same caller
// race and the last writer wins. Callers must serialize turns per caller id.
type Manager struct {
	backend Backend
	storer  Storer
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	config Config
}

// NewManager creates a Manager. Zero timings fall back to the defaults, and
// so does a margin that is not strictly between zero and the lifetime.
func NewManager(backend Backend, storer Storer, config Config, logger *zap.Logger) *Manager {
	if config.Lifetime <= 0 {
		config.Lifetime = DefaultLifetime
	}
	if config.Margin <= 0 || config.Margin >= config.Lifetime {
		config.Margin = min(DefaultMargin, config.Lifetime/2)
	}
	if config.Style == "" {
		config.Style = sydney.DefaultStyle
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		backend: backend,
		storer:  storer,
		logger:  logger,
		now:     time.Now,
		config:  config,
	}
}

// SetDefaults replaces the default style and system prompt for later turns.
func (m *Manager) SetDefaults(style sydney.Style, systemPrompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Style = sydney.ParseStyle(string(style))
	m.config.SystemPrompt = systemPrompt
}

func (m *Manager) defaults() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Peek returns the caller's persisted, unexpired session. Returns ErrNotFound
// when there is none and ErrUnreadable when the stored value does not decode.
func (m *Manager) Peek(ctx context.Context, callerID string) (*sydney.Conversation, error) {
	data, err := m.storer.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}

	var conv sydney.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, ErrUnreadable{Key: callerID, Err: err}
	}

	if conv.Expired(m.now()) {
		return nil, ErrNotFound{Key: callerID}
	}
	return &conv, nil
}

// Resolve returns the caller's persisted session, or a newly created one when
// none is live. A creation failure is returned as *sydney.SessionCreateError;
// any other store failure is returned as is and no conversation is created.
func (m *Manager) Resolve(ctx context.Context, callerID string) (*sydney.Conversation, error) {
	conv, err := m.Peek(ctx, callerID)
	if err == nil {
		return conv, nil
	}

	var (
		notFound   ErrNotFound
		unreadable ErrUnreadable
	)
	switch {
	case errors.As(err, &notFound):
	case errors.As(err, &unreadable):
		// An unreadable session is replaced rather than failing the caller forever.
		m.logger.Warn("discarding unreadable session",
			zap.String("caller", callerID),
			zap.Error(err),
		)
	default:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return m.backend.CreateConversation(ctx)
}

// Turn sends message on behalf of callerID and returns the answer.
//
// A session that cannot be created is not an error: its reason becomes the
// reply text. Transport, protocol and parse failures are returned as errors
// and leave the persisted session untouched.
func (m *Manager) Turn(ctx context.Context, callerID string, style sydney.Style, message string) (*Reply, error) {
	defaults := m.defaults()
	if style == "" {
		style = defaults.Style
	}

	conv, err := m.Resolve(ctx, callerID)
	if err != nil {
		var createErr *sydney.SessionCreateError
		if errors.As(err, &createErr) {
			return &Reply{Text: createErr.Message, Suggestions: []string{}}, nil
		}
		return nil, err
	}

	ex, err := m.backend.Complete(ctx, conv, style, defaults.SystemPrompt, message)
	if err != nil {
		return nil, err
	}
	if ex.Conversation != nil {
		conv = ex.Conversation
	}

	reply := &Reply{
		Text:        sydney.ExtractBody(ex.Response),
		Suggestions: sydney.ExtractSuggestions(ex.Response),
	}

	var throttling *sydney.Throttling
	if ex.Response.Item != nil {
		throttling = ex.Response.Item.Throttling
	}

	if throttling.Exhausted() {
		if err := m.storer.Delete(ctx, callerID); err != nil {
			return nil, fmt.Errorf("failed to end session: %w", err)
		}
		reply.Text += ForcedEndNotice
		reply.Ended = true

		m.logger.Info("conversation quota exhausted",
			zap.String("caller", callerID),
			zap.String("conversation_id", conv.ConversationID),
		)
		return reply, nil
	}

	if throttling != nil {
		conv.CurrentIndex = throttling.NumUserMessagesInConversation
		reply.Remaining = throttling.Remaining()
	} else {
		conv.CurrentIndex++
	}
	if conv.Expiry == 0 {
		conv.Expiry = m.now().Add(defaults.Lifetime - defaults.Margin).Unix()
	}

	if err := m.save(ctx, callerID, conv); err != nil {
		return nil, err
	}

	m.logger.Debug("session advanced",
		zap.String("caller", callerID),
		zap.String("conversation_id", conv.ConversationID),
		zap.Int("current_index", conv.CurrentIndex),
		zap.Int("remaining", reply.Remaining),
	)
	return reply, nil
}

// Reset drops the caller's session so the next turn starts a new conversation.
func (m *Manager) Reset(ctx context.Context, callerID string) error {
	if err := m.storer.Delete(ctx, callerID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	m.logger.Info("session reset", zap.String("caller", callerID))
	return nil
}

func (m *Manager) save(ctx context.Context, callerID string, conv *sydney.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.storer.Put(ctx, callerID, data, conv.ExpiresAt()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
