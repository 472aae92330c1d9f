package sink

import (
	"chat-presence/domain/event"
	"context"
	"log/slog"
)

// LogSink writes every broadcast to the logger. Useful without a relay.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) LogSink {
	return LogSink{log: log}
}

func (l LogSink) Consume(_ context.Context, b event.Broadcast) error {
	l.log.Info("Broadcast",
		"topic", b.Topic,
		"type", b.Event.Type,
		"sender", b.Event.Sender,
		"message", b.Event.Message)
	return nil
}

func (l LogSink) Name() string { return "log" }
