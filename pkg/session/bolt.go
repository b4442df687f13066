package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// expiryPrefixLen is the size of the big-endian unix expiry stored ahead of
// every value.
const expiryPrefixLen = 8

var errShortRecord = errors.New("bolt record shorter than its expiry prefix")

// BoltStorer persists sessions in a bbolt file. Each record is the value's
// expiry followed by the value bytes, unchanged.
type BoltStorer struct {
	db *bolt.DB
}

// NewBoltStorer opens (or creates) the database at path.
func NewBoltStorer(path string) (*BoltStorer, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions bucket: %w", err)
	}

	return &BoltStorer{db: db}, nil
}

func (s *BoltStorer) Get(_ context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt int64
		found     bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		if len(data) < expiryPrefixLen {
			return errShortRecord
		}
		found = true
		expiresAt = int64(binary.BigEndian.Uint64(data[:expiryPrefixLen]))
		// Bolt memory is only valid inside the transaction.
		value = append([]byte{}, data[expiryPrefixLen:]...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !found {
		return nil, ErrNotFound{Key: key}
	}

	if expired(expiresAt, time.Now()) {
		if err := s.Delete(context.Background(), key); err != nil {
			return nil, err
		}
		return nil, ErrNotFound{Key: key}
	}
	return value, nil
}

func (s *BoltStorer) Put(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	data := make([]byte, expiryPrefixLen, expiryPrefixLen+len(value))
	binary.BigEndian.PutUint64(data, uint64(unixOrZero(expiresAt)))
	data = append(data, value...)

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(key), data)
	})
}

func (s *BoltStorer) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(key))
	})
}

// Prune removes every expired session and returns how many were deleted.
func (s *BoltStorer) Prune(_ context.Context) (int64, error) {
	now := time.Now()
	var n int64

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)

		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			if len(v) >= expiryPrefixLen && expired(int64(binary.BigEndian.Uint64(v[:expiryPrefixLen])), now) {
				stale = append(stale, append([]byte{}, k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return n, nil
}

func (s *BoltStorer) Close() error {
	return s.db.Close()
}
