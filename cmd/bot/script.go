package main

import (
	"chat-presence/domain"
	"chat-presence/protocol"
	"context"
	"log/slog"
	"time"
)

var bots = []string{"alice", "bob", "carla", "david"}

type requester interface {
	Request(service string, data protocol.RequestData) (protocol.ReplyEnvelope, error)
}

// step is one scripted request and the status the server should answer.
type step struct {
	description string
	service     domain.Service
	data        protocol.RequestData
	expect      domain.Status
}

type outcome struct {
	step    step
	status  string
	message string
	err     error
}

func (o outcome) ok() bool {
	return o.err == nil && o.status == string(o.step.expect)
}

// scenario makes alice talk to bob while he is offline then online, and
// carla write to david who only shows up afterwards.
func scenario(channel string) []step {
	var steps []step
	// Start from a known presence state, logging out an unknown user is fine.
	for _, name := range bots {
		steps = append(steps, logout(name))
	}
	steps = append(steps,
		login("alice"),
		step{
			description: "alice publishes on " + channel,
			service:     domain.ServicePublish,
			data:        protocol.RequestData{User: "alice", Channel: channel, Message: "hello everyone, all good in here?"},
			expect:      domain.StatusOK,
		},
		private("alice", "bob", "bob, did you see my public message?", domain.StatusStored),
		login("bob"),
		private("alice", "bob", "welcome back", domain.StatusDelivered),
		login("carla"),
		private("carla", "david", "let's talk in private", domain.StatusStored),
		login("david"),
	)
	for _, name := range bots {
		steps = append(steps, logout(name))
	}
	return steps
}

func login(name string) step {
	return step{
		description: name + " logs in",
		service:     domain.ServiceLogin,
		data:        protocol.RequestData{User: name},
		expect:      domain.StatusOK,
	}
}

func logout(name string) step {
	return step{
		description: name + " logs out",
		service:     domain.ServiceLogout,
		data:        protocol.RequestData{User: name},
		expect:      domain.StatusOK,
	}
}

func private(src, dst, body string, expect domain.Status) step {
	return step{
		description: src + " writes to " + dst,
		service:     domain.ServiceMessage,
		data:        protocol.RequestData{Src: src, Dst: dst, Message: body},
		expect:      expect,
	}
}

// play runs the steps in order, waiting delay between them. It stops at the
// first transport error, a status mismatch is recorded and play goes on.
func play(ctx context.Context, log *slog.Logger, r requester, steps []step, delay time.Duration) []outcome {
	outcomes := make([]outcome, 0, len(steps))
	for i, s := range steps {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return outcomes
			case <-time.After(delay):
			}
		}
		if ctx.Err() != nil {
			return outcomes
		}

		reply, err := r.Request(s.service.String(), s.data)
		o := outcome{step: s, status: reply.Data.Status, message: reply.Data.Message, err: err}
		outcomes = append(outcomes, o)
		if err != nil {
			log.Error("Request failed", "step", s.description, "error", err)
			return outcomes
		}
		if !o.ok() {
			log.Warn("Unexpected status", "step", s.description, "expected", s.expect, "got", o.status, "message", o.message)
			continue
		}
		log.Debug("Step done", "step", s.description, "status", o.status)
	}
	return outcomes
}
