package storage

import (
	"chat-presence/domain"
	"context"
	"fmt"
	"log/slog"
)

// StateRepository persists the four engine collections in a Backend.
//
// Key schema:
//
//	user:<name>       one record per known user
//	channel:<seq>     one record per channel
//	msg:<seq>         the message log
//	offline:<seq>     pending private messages, deleted once drained
type StateRepository struct {
	backend Backend
	log     *slog.Logger
}

func NewStateRepository(backend Backend, log *slog.Logger) *StateRepository {
	return &StateRepository{backend: backend, log: log}
}

func (s *StateRepository) LoadUsers() ([]domain.User, error) {
	return load(s.backend, userPrefix, decodeUser)
}

func (s *StateRepository) LoadChannels() ([]domain.Channel, error) {
	return load(s.backend, channelPrefix, decodeChannel)
}

func (s *StateRepository) LoadMessages() ([]domain.Message, error) {
	return load(s.backend, messagePrefix, decodeMessage)
}

func (s *StateRepository) LoadOffline() ([]domain.OfflineEntry, error) {
	return load(s.backend, offlinePrefix, decodeOffline)
}

// Commit writes a whole Changeset as a single atomic batch.
func (s *StateRepository) Commit(ctx context.Context, changes domain.Changeset) error {
	if changes.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var batch Batch
	for _, u := range changes.Users {
		value, err := encodeUser(u)
		if err != nil {
			return fmt.Errorf("encoding user %q: %w", u.Name, err)
		}
		batch.Puts = append(batch.Puts, Entry{Key: userKey(u.Name), Value: value})
	}
	for _, c := range changes.Channels {
		value, err := encodeChannel(c)
		if err != nil {
			return fmt.Errorf("encoding channel %q: %w", c.Name, err)
		}
		batch.Puts = append(batch.Puts, Entry{Key: seqKey(channelPrefix, c.Seq), Value: value})
	}
	for _, m := range changes.Messages {
		value, err := encodeMessage(m)
		if err != nil {
			return fmt.Errorf("encoding message %d: %w", m.Seq, err)
		}
		batch.Puts = append(batch.Puts, Entry{Key: seqKey(messagePrefix, m.Seq), Value: value})
	}
	for _, e := range changes.Enqueued {
		value, err := encodeOffline(e)
		if err != nil {
			return fmt.Errorf("encoding offline entry %d: %w", e.Seq, err)
		}
		batch.Puts = append(batch.Puts, Entry{Key: seqKey(offlinePrefix, e.Seq), Value: value})
	}
	for _, e := range changes.Drained {
		batch.Deletes = append(batch.Deletes, seqKey(offlinePrefix, e.Seq))
	}

	if err := s.backend.Apply(batch); err != nil {
		return err
	}
	s.log.Debug("Changeset committed", "puts", len(batch.Puts), "deletes", len(batch.Deletes))
	return nil
}

func (s *StateRepository) Close() error {
	return s.backend.Close()
}

func load[T any](backend Backend, prefix string, decode func([]byte) (T, error)) ([]T, error) {
	var items []T
	err := backend.Scan([]byte(prefix), func(key, value []byte) error {
		item, err := decode(value)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
