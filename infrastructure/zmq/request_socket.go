package zmq

import (
	"chat-presence/errors"
	"chat-presence/protocol"
	"fmt"
	"syscall"
	"time"

	zmq4 "github.com/pebbe/zmq4"
)

// RequestSocket is the client side of the control plane. It is not safe
// for concurrent use, one request is in flight at a time.
type RequestSocket struct {
	socket *zmq4.Socket
}

func DialRequest(address string, timeout time.Duration) (*RequestSocket, error) {
	socket, err := zmq4.NewSocket(zmq4.REQ)
	if err != nil {
		return nil, err
	}
	// A timed out request must not wedge the REQ state machine.
	for _, set := range []func() error{
		func() error { return socket.SetLinger(0) },
		func() error { return socket.SetRcvtimeo(timeout) },
		func() error { return socket.SetReqRelaxed(1) },
		func() error { return socket.SetReqCorrelate(1) },
		func() error { return socket.Connect(address) },
	} {
		if err = set(); err != nil {
			_ = socket.Close()
			return nil, err
		}
	}
	return &RequestSocket{socket: socket}, nil
}

// Request sends one envelope and waits for its reply. A reply that does
// not arrive within the dial timeout is reported as errors.ErrNoReply.
func (r *RequestSocket) Request(service string, data protocol.RequestData) (protocol.ReplyEnvelope, error) {
	raw, err := protocol.EncodeRequest(service, data)
	if err != nil {
		return protocol.ReplyEnvelope{}, err
	}
	if _, err = r.socket.SendBytes(raw, 0); err != nil {
		return protocol.ReplyEnvelope{}, fmt.Errorf("sending %s: %w", service, err)
	}
	reply, err := r.socket.RecvBytes(0)
	if err != nil {
		if TimedOut(err) {
			return protocol.ReplyEnvelope{}, fmt.Errorf("%s: %w", service, errors.ErrNoReply)
		}
		return protocol.ReplyEnvelope{}, fmt.Errorf("receiving %s reply: %w", service, err)
	}
	return protocol.DecodeReply(reply)
}

func (r *RequestSocket) Close() error {
	return r.socket.Close()
}

// TimedOut tells whether err is a receive timeout rather than a failure.
func TimedOut(err error) bool {
	return zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN)
}
