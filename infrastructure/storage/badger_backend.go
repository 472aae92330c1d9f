package storage

import (
	"context"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type BadgerBackend struct {
	db  *badger.DB
	log *slog.Logger
}

// OpenBadger opens a BadgerDB directory. Writes are synced before a commit
// returns. Read-only mode bypasses the directory lock so a running server
// can be inspected.
func OpenBadger(path string, log *slog.Logger, readOnly bool) (*BadgerBackend, error) {
	options := badger.DefaultOptions(path)
	if log.Enabled(context.Background(), slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	if readOnly {
		options = options.WithReadOnly(true).WithBypassLockGuard(true)
	} else {
		options = options.WithSyncWrites(true)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, err
	}
	return NewBadgerBackend(db, log), nil
}

func NewBadgerBackend(db *badger.DB, log *slog.Logger) *BadgerBackend {
	return &BadgerBackend{db: db, log: log}
}

func (b *BadgerBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err = fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Apply runs the whole batch in one transaction.
func (b *BadgerBackend) Apply(batch Batch) error {
	if batch.Empty() {
		return nil
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, e := range batch.Puts {
			if err := txn.Set(e.Key, e.Value); err != nil {
				return err
			}
		}
		for _, key := range batch.Deletes {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerBackend) Close() error {
	b.log.Info("Closing BadgerDB...")
	return b.db.Close()
}
