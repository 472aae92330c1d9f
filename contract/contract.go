//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// BroadcastSink writes broadcasts to one relay transport.
type BroadcastSink interface {
	Consume(ctx context.Context, b event.Broadcast) error
}

// Emitter queues broadcasts for asynchronous delivery.
// Emit must not wait for the relay. It returns false when the broadcast was
// refused, in which case nothing will be published.
type Emitter interface {
	Emit(b event.Broadcast) bool
}

// StateRepository mirrors the engine tables to durable storage.
// Each collection loads independently, writes go through Commit.
type StateRepository interface {
	LoadUsers() ([]domain.User, error)
	LoadChannels() ([]domain.Channel, error)
	LoadMessages() ([]domain.Message, error)
	LoadOffline() ([]domain.OfflineEntry, error)
	Commit(ctx context.Context, changes domain.Changeset) error
}

// ReplySocket is the server side of the request/reply control plane.
// A reply must be sent after every received request before the next Receive.
type ReplySocket interface {
	// Receive waits at most timeout. ok is false when nothing arrived.
	Receive(timeout time.Duration) (request []byte, ok bool, err error)
	Reply(reply []byte) error
	Close() error
}

// RequestHandler turns one raw control-plane request into its raw reply.
type RequestHandler interface {
	HandleRaw(ctx context.Context, request []byte) []byte
}
