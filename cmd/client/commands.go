package main

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/protocol"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/color"
)

var errUsage = errors.New("usage: @user text | channel text | /users | /channels | /create name | /fetch | /quit")

type command struct {
	service string
	data    protocol.RequestData
	quit    bool
}

// parseLine turns one line typed by self into the request to send.
func parseLine(line, self string) (command, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errUsage
	}

	switch fields[0] {
	case "/quit":
		return command{quit: true}, nil
	case "/users":
		return command{service: domain.ServiceUsers.String()}, nil
	case "/channels":
		return command{service: domain.ServiceChannels.String()}, nil
	case "/fetch":
		return command{service: domain.ServiceFetchOffline.String(), data: protocol.RequestData{User: self}}, nil
	case "/create":
		if len(fields) != 2 {
			return command{}, errUsage
		}
		return command{service: domain.ServiceChannel.String(), data: protocol.RequestData{Channel: fields[1]}}, nil
	}

	if strings.HasPrefix(fields[0], "/") || len(fields) < 2 {
		return command{}, errUsage
	}
	text := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	if dst, ok := strings.CutPrefix(fields[0], "@"); ok {
		if dst == "" {
			return command{}, errUsage
		}
		return command{
			service: domain.ServiceMessage.String(),
			data:    protocol.RequestData{Src: self, Dst: dst, Message: text},
		}, nil
	}
	return command{
		service: domain.ServicePublish.String(),
		data:    protocol.RequestData{User: self, Channel: fields[0], Message: text},
	}, nil
}

func formatReply(reply protocol.ReplyEnvelope) string {
	data := reply.Data
	if data.Status == string(domain.StatusError) {
		return color.Red.Sprintf("✗ %s: %s", reply.Service, data.Message)
	}

	switch reply.Service {
	case domain.ServiceUsers.String():
		return color.Yellow.Sprintf("users: %s (online: %s)", list(data.Users), list(data.Online))
	case domain.ServiceChannels.String():
		return color.Yellow.Sprintf("channels: %s", list(data.Channels))
	case domain.ServiceFetchOffline.String():
		if len(data.Messages) == 0 {
			return color.Gray.Sprint("no offline messages")
		}
		lines := make([]string, 0, len(data.Messages))
		for _, m := range data.Messages {
			lines = append(lines, color.Magenta.Sprintf("[%s] (offline) %s: %s", clock(m.Timestamp), m.Src, m.Message))
		}
		return strings.Join(lines, "\n")
	}

	text := fmt.Sprintf("%s %s", reply.Service, data.Status)
	if data.Message != "" {
		text += ": " + data.Message
	}
	return color.Gray.Sprint(text)
}

func formatEvent(topic string, payload protocol.Payload) string {
	at := clock(payload.Timestamp)
	switch event.Type(payload.Type) {
	case event.PrivateMessageType:
		return color.Magenta.Sprintf("[%s] (private) %s: %s", at, payload.Src, payload.Message)
	case event.JoinedType, event.LeftType:
		return color.Gray.Sprintf("[%s] * %s", at, payload.Message)
	default:
		return color.Cyan.Sprintf("[%s] [%s] %s: %s", at, topic, payload.Sender, payload.Message)
	}
}

func list(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func clock(timestamp string) string {
	at, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return timestamp
	}
	return at.Local().Format(time.TimeOnly)
}
