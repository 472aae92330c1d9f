package main

import (
	"chat-presence/infrastructure/zmq"
	"chat-presence/protocol"
	"context"
	"fmt"
	"log/slog"
	"time"

	zmq4 "github.com/pebbe/zmq4"
	"github.com/samber/lo"
)

// session owns the REQ socket. The SUB socket lives in its own goroutine,
// new topics reach it through subscribe.
type session struct {
	log       *slog.Logger
	self      string
	req       *zmq.RequestSocket
	subscribe chan string
	output    chan string
}

func (s *session) request(service string, data protocol.RequestData) (protocol.ReplyEnvelope, error) {
	return s.req.Request(service, data)
}

// listen reads broadcasts until ctx is done. Receives time out
// periodically so pending subscriptions and cancellation are noticed.
func (s *session) listen(ctx context.Context, address string, topics []string) error {
	sub, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return err
	}
	defer sub.Close()
	if err = sub.SetLinger(0); err != nil {
		return err
	}
	if err = sub.SetRcvtimeo(250 * time.Millisecond); err != nil {
		return err
	}
	if err = sub.Connect(address); err != nil {
		return fmt.Errorf("connecting to relay %s: %w", address, err)
	}
	for _, topic := range topics {
		if err = sub.SetSubscribe(topic); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case topic := <-s.subscribe:
			if err = sub.SetSubscribe(topic); err != nil {
				return err
			}
			topics = append(topics, topic)
			continue
		default:
		}

		frame, err := sub.RecvBytes(0)
		if err != nil {
			if zmq.TimedOut(err) {
				continue
			}
			return fmt.Errorf("receiving broadcast: %w", err)
		}
		topic, payload, err := protocol.DecodeFrame(frame)
		if err != nil {
			s.log.Debug("Skipping undecodable frame", "error", err)
			continue
		}
		// SUB filtering is a prefix match, "al" would also get "alice".
		if !lo.Contains(topics, topic) {
			continue
		}
		s.output <- formatEvent(topic, payload)
	}
}
