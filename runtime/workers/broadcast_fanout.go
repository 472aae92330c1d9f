package workers

import (
	"chat-presence/contract"
	"chat-presence/domain/event"
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// BroadcastFanout decouples the router from the relay transports.
//
// Emit queues a broadcast in a bounded buffer and returns, Run drains the
// buffer into every sink. A broadcast that cannot be queued within the emit
// timeout is refused and counted, the caller decides what happens to it.
// A failing sink is logged and skipped. Order is preserved per fanout.
type BroadcastFanout struct {
	log         *slog.Logger
	broadcasts  chan event.Broadcast
	sinks       []contract.BroadcastSink
	emitTimeout time.Duration
	sinkTimeout time.Duration
	dropped     atomic.Uint64
	failures    atomic.Uint64
}

func NewBroadcastFanout(log *slog.Logger, bufferSize int,
	emitTimeout, sinkTimeout time.Duration, sinks ...contract.BroadcastSink) *BroadcastFanout {
	return &BroadcastFanout{
		log:         log,
		broadcasts:  make(chan event.Broadcast, bufferSize),
		sinks:       sinks,
		emitTimeout: emitTimeout,
		sinkTimeout: sinkTimeout,
	}
}

// Emit never waits longer than the emit timeout.
// It reports false when the broadcast was not queued.
func (w *BroadcastFanout) Emit(b event.Broadcast) bool {
	select {
	case w.broadcasts <- b:
		return true
	default:
	}

	timer := time.NewTimer(w.emitTimeout)
	defer timer.Stop()
	select {
	case w.broadcasts <- b:
		return true
	case <-timer.C:
		w.dropped.Add(1)
		w.log.Warn("Broadcast buffer full, broadcast refused", "topic", b.Topic, "type", b.Event.Type)
		return false
	}
}

func (w *BroadcastFanout) Run(ctx context.Context) error {
	for {
		select {
		case b := <-w.broadcasts:
			w.Fanout(ctx, b)
		case <-ctx.Done():
			w.flush()
			w.log.Debug("Context done, broadcast fanout stopped")
			return nil
		}
	}
}

// Fanout hands one broadcast to every sink, each bounded by the sink timeout.
func (w *BroadcastFanout) Fanout(ctx context.Context, b event.Broadcast) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, b); err != nil {
			w.failures.Add(1)
			w.log.Warn("Sink failed to publish broadcast",
				"sink", sinkName(sink), "topic", b.Topic, "error", err)
		}
		cancel()
	}
}

// flush publishes what is still buffered at shutdown.
func (w *BroadcastFanout) flush() {
	for {
		select {
		case b := <-w.broadcasts:
			w.Fanout(context.Background(), b)
		default:
			return
		}
	}
}

func (w *BroadcastFanout) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *BroadcastFanout) Failures() uint64 {
	return w.failures.Load()
}

func (w *BroadcastFanout) Pending() int {
	return len(w.broadcasts)
}

func sinkName(sink contract.BroadcastSink) string {
	if named, ok := sink.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "unnamed"
}
