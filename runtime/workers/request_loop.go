package workers

import (
	"chat-presence/contract"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type SocketFactory func() (contract.ReplySocket, error)

// RequestLoop owns the control-plane socket. Requests are served strictly
// one after the other, which is what keeps the router single-threaded.
// The socket is reopened on every Run so a restart starts from a clean
// request/reply state.
type RequestLoop struct {
	log          *slog.Logger
	open         SocketFactory
	handler      contract.RequestHandler
	pollInterval time.Duration
}

func NewRequestLoop(log *slog.Logger, open SocketFactory,
	handler contract.RequestHandler, pollInterval time.Duration) *RequestLoop {
	return &RequestLoop{log: log, open: open, handler: handler, pollInterval: pollInterval}
}

func (w *RequestLoop) Run(ctx context.Context) error {
	socket, err := w.open()
	if err != nil {
		return fmt.Errorf("opening reply socket: %w", err)
	}
	defer func() {
		if err := socket.Close(); err != nil {
			w.log.Warn("Failed to close reply socket", "error", err)
		}
	}()
	w.log.Info("Request loop started")

	for {
		if ctx.Err() != nil {
			w.log.Debug("Context done, request loop stopped")
			return nil
		}
		request, ok, err := socket.Receive(w.pollInterval)
		if err != nil {
			return fmt.Errorf("receiving request: %w", err)
		}
		if !ok {
			continue
		}
		if err = socket.Reply(w.handler.HandleRaw(ctx, request)); err != nil {
			return fmt.Errorf("sending reply: %w", err)
		}
	}
}
