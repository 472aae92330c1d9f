package services

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/protocol"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type IRouter interface {
	Handle(ctx context.Context, req domain.Request) domain.Reply
}

type RequestRecorder interface {
	ObserveRequest(service, status string)
}

// ChatService is the control-plane entry point: raw bytes in, raw bytes out.
// Every request gets exactly one reply, including malformed requests and
// handler panics.
type ChatService struct {
	log      *slog.Logger
	router   IRouter
	recorder RequestRecorder
}

func NewChatService(log *slog.Logger, router IRouter, recorder RequestRecorder) *ChatService {
	return &ChatService{log: log, router: router, recorder: recorder}
}

func (s *ChatService) HandleRaw(ctx context.Context, raw []byte) []byte {
	reply := s.handle(ctx, raw)

	status := string(reply.Status)
	if status == "" {
		status = string(domain.StatusOK)
	}
	s.recorder.ObserveRequest(domain.ParseService(reply.Service).String(), status)

	encoded, err := protocol.EncodeReply(reply)
	if err != nil {
		s.log.Error("Failed to encode reply", "service", reply.Service, "error", err)
		return fmt.Appendf(nil, `{"service":"","data":{"status":%q,"message":%q}}`,
			domain.StatusError, errors.ErrInternal.Error())
	}
	return encoded
}

func (s *ChatService) handle(ctx context.Context, raw []byte) (reply domain.Reply) {
	request, err := protocol.DecodeRequest(raw)
	if err != nil {
		s.log.Debug("Malformed request", "error", err)
		return domain.Reply{
			Status:    domain.StatusError,
			Message:   errors.ReplyMessage(err),
			Timestamp: time.Now().UTC(),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Request handler panicked", "service", request.Name, "panic", r)
			reply = domain.Reply{
				Service:   request.Name,
				Status:    domain.StatusError,
				Message:   errors.ErrInternal.Error(),
				Timestamp: time.Now().UTC(),
			}
		}
	}()
	return s.router.Handle(ctx, request)
}
