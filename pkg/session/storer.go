// Package session tracks one ChatHub conversation per caller and persists it
// between turns.
package session

import (
	"context"
	"time"
)

// Storer is a key-value store for serialized conversations. Keys are caller
// identities. The Manager is the only writer; a Storer never interprets the
// values it holds.
type Storer interface {
	// Get returns the value stored under key. Returns ErrNotFound if the key
	// doesn't exist or its expiry has passed.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value. A zero
	// expiresAt means the value never expires.
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close closes the store and releases any resources.
	Close() error
}

// ErrNotFound is returned when no live value exists for a key.
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	if e.Key == "" {
		return "session not found"
	}

	return "session not found: " + e.Key
}

// ErrUnreadable is returned when a stored session cannot be decoded.
type ErrUnreadable struct {
	Key string
	Err error
}

func (e ErrUnreadable) Error() string {
	return "failed to decode session for " + e.Key + ": " + e.Err.Error()
}

func (e ErrUnreadable) Unwrap() error {
	return e.Err
}

// expired reports whether a value with the given expiry, in unix seconds, is
// no longer live at now. Zero means no expiry.
func expired(expiresAt int64, now time.Time) bool {
	return expiresAt != 0 && now.Unix() >= expiresAt
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
