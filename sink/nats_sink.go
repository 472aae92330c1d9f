package sink

import (
	"chat-presence/domain/event"
	"chat-presence/protocol"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// TopicHeader carries the raw topic, the subject only holds a sanitized copy.
const TopicHeader = "Chat-Topic"

// NatsSink publishes broadcasts on <prefix>.<topic> subjects.
type NatsSink struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
}

func NewNatsSink(url, prefix string, log *slog.Logger) (*NatsSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("chat-presence"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("Connected to NATS", "url", url, "prefix", prefix)
	return &NatsSink{conn: conn, prefix: prefix, log: log}, nil
}

func (n *NatsSink) Consume(ctx context.Context, b event.Broadcast) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := protocol.EncodePayload(b.Event)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(Subject(n.prefix, b.Topic))
	msg.Header.Set(TopicHeader, b.Topic)
	msg.Data = payload
	return n.conn.PublishMsg(msg)
}

func (n *NatsSink) Name() string { return "nats" }

func (n *NatsSink) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// Subject maps a topic to a single NATS subject token under prefix.
// Separators, wildcards and whitespace become underscores.
func Subject(prefix, topic string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, topic)
	if token == "" {
		token = "_"
	}
	if prefix == "" {
		return token
	}
	return prefix + "." + token
}
