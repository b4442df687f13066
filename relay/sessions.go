package relay

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/papercomputeco/chathub/pkg/session"
	"github.com/papercomputeco/chathub/pkg/sydney"
)

// ErrBusy is returned when a turn for the same caller is still running.
var ErrBusy = errors.New("a turn for this caller is already in progress")

// ErrEmptyCaller is returned for requests without a caller id.
var ErrEmptyCaller = errors.New("caller is required")

// Sessions guards a session.Manager so that each caller has at most one turn
// in flight. Every front end goes through it.
type Sessions struct {
	manager  *session.Manager
	inflight sync.Map
}

func NewSessions(manager *session.Manager) *Sessions {
	return &Sessions{manager: manager}
}

// Turn runs one turn for caller, or fails fast with ErrBusy.
func (s *Sessions) Turn(ctx context.Context, caller, style, message string) (*session.Reply, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil, ErrEmptyCaller
	}

	if _, busy := s.inflight.LoadOrStore(caller, struct{}{}); busy {
		return nil, ErrBusy
	}
	defer s.inflight.Delete(caller)

	var st sydney.Style
	if strings.TrimSpace(style) != "" {
		st = sydney.ParseStyle(style)
	}
	return s.manager.Turn(ctx, caller, st, message)
}

// Reset drops the caller's conversation. It fails with ErrBusy while a turn
// for the caller is running, since that turn would write the session back.
func (s *Sessions) Reset(ctx context.Context, caller string) error {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return ErrEmptyCaller
	}

	if _, busy := s.inflight.LoadOrStore(caller, struct{}{}); busy {
		return ErrBusy
	}
	defer s.inflight.Delete(caller)

	return s.manager.Reset(ctx, caller)
}

// Peek returns the caller's persisted conversation.
func (s *Sessions) Peek(ctx context.Context, caller string) (*sydney.Conversation, error) {
	return s.manager.Peek(ctx, strings.TrimSpace(caller))
}
