package zmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	zmq4 "github.com/pebbe/zmq4"
)

// Relay forwards every frame published on its XSUB frontend to the
// subscribers of its XPUB backend. Subscriptions flow the other way, so
// publishers only send what somebody listens to.
type Relay struct {
	log      *slog.Logger
	frontend string
	backend  string
}

func NewRelay(log *slog.Logger, frontend, backend string) *Relay {
	return &Relay{log: log, frontend: frontend, backend: backend}
}

// Run blocks until ctx is cancelled. The proxy is stopped through a
// control socket since it cannot observe the context itself.
func (r *Relay) Run(ctx context.Context) error {
	xsub, err := bind(zmq4.XSUB, r.frontend)
	if err != nil {
		return err
	}
	defer xsub.Close()

	xpub, err := bind(zmq4.XPUB, r.backend)
	if err != nil {
		return err
	}
	defer xpub.Close()

	controlAddress := "inproc://relay-control-" + uuid.NewString()
	control, err := bind(zmq4.PAIR, controlAddress)
	if err != nil {
		return err
	}
	defer control.Close()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		terminate, err := zmq4.NewSocket(zmq4.PAIR)
		if err != nil {
			r.log.Error("Failed to create relay control socket", "error", err)
			return
		}
		defer terminate.Close()
		if err = terminate.Connect(controlAddress); err != nil {
			r.log.Error("Failed to connect relay control socket", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			_, _ = terminate.Send("TERMINATE", 0)
		case <-stopped:
		}
	}()

	r.log.Info("Relay started", "frontend", r.frontend, "backend", r.backend)
	if err = zmq4.ProxySteerable(xsub, xpub, nil, control); err != nil && ctx.Err() == nil {
		return fmt.Errorf("relay proxy: %w", err)
	}
	r.log.Info("Relay stopped")
	return nil
}

func bind(kind zmq4.Type, address string) (*zmq4.Socket, error) {
	socket, err := zmq4.NewSocket(kind)
	if err != nil {
		return nil, err
	}
	if err = socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err = socket.Bind(address); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("binding %s: %w", address, err)
	}
	return socket, nil
}
