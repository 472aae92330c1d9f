package protocol

import (
	"bytes"
	"chat-presence/domain/event"
	"encoding/json"
	"fmt"
)

// Separator splits the topic from the payload in a data-plane frame.
// Subscribers filter on the topic bytes, so the topic always comes first.
const Separator = "|"

// Payload is the JSON body of a broadcast. Channel events carry sender and
// channel, private deliveries carry src and dst.
type Payload struct {
	Type      string `json:"type"`
	Sender    string `json:"sender,omitempty"`
	Src       string `json:"src,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Dst       string `json:"dst,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func NewPayload(e event.Event) Payload {
	payload := Payload{
		Type:      string(e.Type),
		Message:   e.Message,
		Timestamp: FormatTime(e.At),
	}
	if e.Type == event.PrivateMessageType {
		payload.Src = e.Sender
		payload.Dst = e.Recipient
	} else {
		payload.Sender = e.Sender
		payload.Channel = e.Channel
	}
	return payload
}

func EncodePayload(e event.Event) ([]byte, error) {
	return json.Marshal(NewPayload(e))
}

// EncodeFrame renders a broadcast as "topic|{json}".
func EncodeFrame(b event.Broadcast) ([]byte, error) {
	payload, err := EncodePayload(b.Event)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(b.Topic)+len(Separator)+len(payload))
	frame = append(frame, b.Topic...)
	frame = append(frame, Separator...)
	return append(frame, payload...), nil
}

// DecodeFrame splits a frame at the first "|{" so topics may contain the separator.
func DecodeFrame(frame []byte) (string, Payload, error) {
	idx := bytes.Index(frame, []byte(Separator+"{"))
	if idx < 0 {
		return "", Payload{}, fmt.Errorf("frame without topic separator: %q", frame)
	}
	var payload Payload
	if err := json.Unmarshal(frame[idx+len(Separator):], &payload); err != nil {
		return "", Payload{}, err
	}
	return string(frame[:idx]), payload, nil
}
