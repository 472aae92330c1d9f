package storage

import (
	"log/slog"

	"github.com/cockroachdb/pebble"
)

type PebbleBackend struct {
	db  *pebble.DB
	log *slog.Logger
}

func OpenPebble(path string, log *slog.Logger, readOnly bool) (*PebbleBackend, error) {
	log.Info("Opening Pebble", "path", path, "read_only", readOnly)
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}
	return &PebbleBackend{db: db, log: log}, nil
}

func (p *PebbleBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err = fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Apply commits the batch with a synced write.
func (p *PebbleBackend) Apply(batch Batch) error {
	if batch.Empty() {
		return nil
	}
	b := p.db.NewBatch()
	defer b.Close()
	for _, e := range batch.Puts {
		if err := b.Set(e.Key, e.Value, nil); err != nil {
			return err
		}
	}
	for _, key := range batch.Deletes {
		if err := b.Delete(key, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *PebbleBackend) Close() error {
	p.log.Info("Closing Pebble...")
	return p.db.Close()
}

// upperBound is the smallest key greater than every key starting with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
