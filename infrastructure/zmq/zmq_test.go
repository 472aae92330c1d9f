package zmq

import (
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/protocol"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	zmq4 "github.com/pebbe/zmq4"
	"github.com/stretchr/testify/require"
)

func inproc(name string) string {
	return "inproc://" + name + "-" + uuid.NewString()
}

func TestReplySocket_Request_Reply(t *testing.T) {
	req := require.New(t)
	address := inproc("reply")
	server, err := ListenReply(address)
	req.NoError(err)
	defer server.Close()

	// Given nothing was sent yet, Receive times out
	_, ok, err := server.Receive(10 * time.Millisecond)
	req.NoError(err)
	req.False(ok)

	client, err := zmq4.NewSocket(zmq4.REQ)
	req.NoError(err)
	defer client.Close()
	req.NoError(client.Connect(address))

	// When a client sends a request
	_, err = client.SendBytes([]byte(`{"service":"users"}`), 0)
	req.NoError(err)

	// Then the server receives it and its reply reaches the client
	request, ok, err := server.Receive(time.Second)
	req.NoError(err)
	req.True(ok)
	req.Equal(`{"service":"users"}`, string(request))
	req.NoError(server.Reply([]byte("pong")))

	reply, err := client.RecvBytes(0)
	req.NoError(err)
	req.Equal("pong", string(reply))
}

func TestRequestSocket_Round_Trip(t *testing.T) {
	req := require.New(t)
	address := inproc("request")
	server, err := ListenReply(address)
	req.NoError(err)
	defer server.Close()

	client, err := DialRequest(address, time.Second)
	req.NoError(err)
	defer client.Close()

	go func() {
		if _, ok, err := server.Receive(time.Second); err != nil || !ok {
			return
		}
		_ = server.Reply([]byte(`{"service":"message","data":{"status":"STORED","timestamp":"2024-05-01T10:00:00Z"}}`))
	}()

	// When a private message is sent
	reply, err := client.Request("message", protocol.RequestData{Src: "alice", Dst: "bob", Message: "hi"})

	// Then the decoded reply carries the status
	req.NoError(err)
	req.Equal("message", reply.Service)
	req.Equal("STORED", reply.Data.Status)
}

func TestRequestSocket_No_Reply(t *testing.T) {
	req := require.New(t)
	address := inproc("silent")
	server, err := ListenReply(address)
	req.NoError(err)
	defer server.Close()

	client, err := DialRequest(address, 20*time.Millisecond)
	req.NoError(err)
	defer client.Close()

	// Given a server that never answers
	_, err = client.Request("users", protocol.RequestData{})

	// Then the request gives up
	req.ErrorIs(err, errors.ErrNoReply)
}

func TestRelay_Forwards_Subscribed_Topics(t *testing.T) {
	req := require.New(t)
	frontend, backend := inproc("frontend"), inproc("backend")
	relay := NewRelay(slog.Default(), frontend, backend)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- relay.Run(ctx) }()

	// Given a subscriber on bob's topic and a publisher
	subscriber, err := zmq4.NewSocket(zmq4.SUB)
	req.NoError(err)
	defer subscriber.Close()
	req.Eventually(func() bool { return subscriber.Connect(backend) == nil }, time.Second, 10*time.Millisecond)
	req.NoError(subscriber.SetSubscribe("bob"))
	req.NoError(subscriber.SetRcvtimeo(50 * time.Millisecond))

	publisher, err := NewPublisherSink(frontend, slog.Default())
	req.NoError(err)
	defer publisher.Close()

	// When broadcasts are published until the subscription has propagated
	var frame []byte
	req.Eventually(func() bool {
		_ = publisher.Consume(context.Background(), event.Joined("ana", "general", time.Now()))
		_ = publisher.Consume(context.Background(), event.Private("ana", "bob", "hi", time.Now()))
		frame, err = subscriber.RecvBytes(0)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)

	// Then only bob's frames come through
	topic, payload, err := protocol.DecodeFrame(frame)
	req.NoError(err)
	req.Equal("bob", topic)
	req.Equal("hi", payload.Message)

	cancel()
	select {
	case err = <-stopped:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("relay did not stop")
	}
}
