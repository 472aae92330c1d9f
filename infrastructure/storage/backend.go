package storage

import (
	"chat-presence/errors"
	"fmt"
	"log/slog"
)

const (
	DriverBadger = "badger"
	DriverPebble = "pebble"
)

// Entry is a single key/value pair written by a Batch.
type Entry struct {
	Key   []byte
	Value []byte
}

// Batch groups the writes of one request. Backends apply it atomically.
type Batch struct {
	Puts    []Entry
	Deletes [][]byte
}

func (b Batch) Empty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

// Backend is the key-value engine under the StateRepository.
type Backend interface {
	// Scan calls fn for every key starting with prefix, in key order.
	// Key and value are copies owned by fn.
	Scan(prefix []byte, fn func(key, value []byte) error) error
	Apply(batch Batch) error
	Close() error
}

// Open opens the backend selected by driver at path.
// A missing directory is created and loads as an empty store.
func Open(driver, path string, log *slog.Logger, readOnly bool) (Backend, error) {
	switch driver {
	case DriverBadger:
		return OpenBadger(path, log, readOnly)
	case DriverPebble:
		return OpenPebble(path, log, readOnly)
	default:
		return nil, fmt.Errorf("%w: store %q", errors.ErrUnknownDriver, driver)
	}
}
