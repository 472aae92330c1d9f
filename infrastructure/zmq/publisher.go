// Package zmq holds the ZeroMQ transports: the control-plane sockets,
// the broadcast publisher and the fan-out relay.
package zmq

import (
	"chat-presence/contract"
	"chat-presence/domain/event"
	"chat-presence/protocol"
	"chat-presence/sink"
	"context"
	"fmt"
	"io"
	"log/slog"

	zmq4 "github.com/pebbe/zmq4"
)

// PublisherSink publishes frames on a ZeroMQ PUB socket connected to the
// relay frontend. The socket is only used from the fanout goroutine.
type PublisherSink struct {
	socket *zmq4.Socket
	log    *slog.Logger
}

func NewPublisherSink(address string, log *slog.Logger) (*PublisherSink, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, err
	}
	if err = socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err = socket.Connect(address); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("connecting publisher to %s: %w", address, err)
	}
	log.Info("Publisher connected", "address", address)
	return &PublisherSink{socket: socket, log: log}, nil
}

// Consume never blocks: a frame is dropped by the socket if the relay is too slow.
func (p *PublisherSink) Consume(ctx context.Context, b event.Broadcast) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := protocol.EncodeFrame(b)
	if err != nil {
		return err
	}
	_, err = p.socket.SendBytes(frame, zmq4.DONTWAIT)
	return err
}

func (p *PublisherSink) Name() string { return "zmq" }

func (p *PublisherSink) Close() error {
	return p.socket.Close()
}

func PublisherFactory(address string, log *slog.Logger) sink.Factory {
	return func() (contract.BroadcastSink, io.Closer, error) {
		publisher, err := NewPublisherSink(address, log)
		if err != nil {
			return nil, nil, err
		}
		return publisher, publisher, nil
	}
}
