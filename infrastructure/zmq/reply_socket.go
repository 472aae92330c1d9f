package zmq

import (
	"fmt"
	"time"

	zmq4 "github.com/pebbe/zmq4"
)

// ReplySocket is a bound REP socket polled with a timeout so its owner can
// notice context cancellation between requests.
type ReplySocket struct {
	socket *zmq4.Socket
	poller *zmq4.Poller
}

func ListenReply(address string) (*ReplySocket, error) {
	socket, err := zmq4.NewSocket(zmq4.REP)
	if err != nil {
		return nil, err
	}
	if err = socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err = socket.Bind(address); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("binding reply socket to %s: %w", address, err)
	}
	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)
	return &ReplySocket{socket: socket, poller: poller}, nil
}

func (r *ReplySocket) Receive(timeout time.Duration) ([]byte, bool, error) {
	polled, err := r.poller.Poll(timeout)
	if err != nil {
		return nil, false, err
	}
	if len(polled) == 0 {
		return nil, false, nil
	}
	request, err := r.socket.RecvBytes(0)
	if err != nil {
		return nil, false, err
	}
	return request, true, nil
}

func (r *ReplySocket) Reply(reply []byte) error {
	_, err := r.socket.SendBytes(reply, 0)
	return err
}

func (r *ReplySocket) Close() error {
	return r.socket.Close()
}
