// Package protocol is the wire format of the control and data planes.
// Control-plane requests and replies are JSON envelopes {service, data},
// broadcasts are single frames "topic|payload" with a JSON payload.
package protocol

import (
	"bytes"
	"chat-presence/domain"
	"chat-presence/errors"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope wraps every control-plane message.
type Envelope struct {
	Service string          `json:"service"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RequestData holds the fields any service may read.
// Clients also send a timestamp, it is accepted and ignored.
type RequestData struct {
	User      string `json:"user,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Src       string `json:"src,omitempty"`
	Dst       string `json:"dst,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ReplyData is the union of every reply shape, used by clients to decode.
type ReplyData struct {
	Status    string           `json:"status,omitempty"`
	Timestamp string           `json:"timestamp"`
	Message   string           `json:"message,omitempty"`
	Users     []string         `json:"users,omitempty"`
	Online    []string         `json:"online,omitempty"`
	Channels  []string         `json:"channels,omitempty"`
	Messages  []OfflineMessage `json:"messages,omitempty"`
}

type ReplyEnvelope struct {
	Service string    `json:"service"`
	Data    ReplyData `json:"data"`
}

// OfflineMessage is one drained entry as returned by fetch_offline.
type OfflineMessage struct {
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type statusData struct {
	Status    domain.Status `json:"status"`
	Timestamp string        `json:"timestamp"`
	Message   string        `json:"message,omitempty"`
}

type usersData struct {
	Users     []string `json:"users"`
	Online    []string `json:"online"`
	Timestamp string   `json:"timestamp"`
}

type channelsData struct {
	Channels  []string `json:"channels"`
	Timestamp string   `json:"timestamp"`
}

type offlineData struct {
	Messages  []OfflineMessage `json:"messages"`
	Timestamp string           `json:"timestamp"`
}

// DecodeRequest parses a raw envelope. Unknown service names decode to
// ServiceUnknown, only unparseable bytes are an error.
func DecodeRequest(raw []byte) (domain.Request, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.Request{}, fmt.Errorf("%w: %v", errors.ErrMalformedRequest, err)
	}

	var data RequestData
	if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return domain.Request{}, fmt.Errorf("%w: %v", errors.ErrMalformedRequest, err)
		}
	}

	return domain.Request{
		Service: domain.ParseService(envelope.Service),
		Name:    envelope.Service,
		User:    data.User,
		Channel: data.Channel,
		Src:     data.Src,
		Dst:     data.Dst,
		Message: data.Message,
	}, nil
}

// EncodeRequest builds the envelope a client sends.
func EncodeRequest(service string, data RequestData) ([]byte, error) {
	if data.Timestamp == "" {
		data.Timestamp = FormatTime(time.Now())
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Service: service, Data: raw})
}

// EncodeReply shapes the reply data after the service that produced it.
// Failed replies always use the status shape.
func EncodeReply(reply domain.Reply) ([]byte, error) {
	timestamp := FormatTime(reply.Timestamp)

	var data any
	switch service := domain.ParseService(reply.Service); {
	case reply.Failed():
		data = statusData{Status: reply.Status, Timestamp: timestamp, Message: reply.Message}
	case service == domain.ServiceUsers:
		data = usersData{Users: nonNil(reply.Users), Online: nonNil(reply.Online), Timestamp: timestamp}
	case service == domain.ServiceChannels:
		data = channelsData{Channels: nonNil(reply.Channels), Timestamp: timestamp}
	case service == domain.ServiceFetchOffline:
		messages := make([]OfflineMessage, 0, len(reply.Offline))
		for _, e := range reply.Offline {
			messages = append(messages, OfflineMessage{
				Src:       e.Sender,
				Dst:       e.Recipient,
				Message:   e.Body,
				Timestamp: FormatTime(e.At),
			})
		}
		data = offlineData{Messages: messages, Timestamp: timestamp}
	default:
		data = statusData{Status: reply.Status, Timestamp: timestamp, Message: reply.Message}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Service: reply.Service, Data: raw})
}

func DecodeReply(raw []byte) (ReplyEnvelope, error) {
	var envelope ReplyEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ReplyEnvelope{}, fmt.Errorf("%w: %v", errors.ErrMalformedRequest, err)
	}
	return envelope, nil
}

// FormatTime renders wire timestamps: RFC 3339 with nanoseconds, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
