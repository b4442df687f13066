// Package sydney provides the internal representations of the ChatHub chat protocol:
// conversation identity, request and response frames, style profiles, and the
// helpers that turn a terminal response into user-facing text.
package sydney

import (
	"fmt"
)

// ErrorResponse represents an error returned to relay callers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConnectError is returned when the websocket upgrade could not be completed
// within the configured number of attempts.
type ConnectError struct {
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// SessionCreateError is returned when the conversation create call fails or is
// rejected by the backend. Its message is meant to be shown to the caller as is.
type SessionCreateError struct {
	StatusCode int
	Message    string

	// Err is the underlying transport or decode failure, if any.
	Err error
}

func (e *SessionCreateError) Error() string {
	return e.Message
}

func (e *SessionCreateError) Unwrap() error {
	return e.Err
}

// ParseError is returned when an inbound frame is not valid JSON or does not
// match the expected shape.
type ParseError struct {
	Frame []byte
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", truncate(string(e.Frame), 120), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when the server ends the invocation before a
// terminal frame was delivered.
type ProtocolError struct {
	Type    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("invocation ended by frame type %d before a terminal frame", e.Type)
	}
	return fmt.Sprintf("invocation ended by frame type %d: %s", e.Type, e.Message)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
