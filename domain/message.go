// Package domain contains core concepts of the chat system.
// This file defines Message log entries and offline entries.
// Messages are immutable once appended to the log.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	ChannelMessage MessageKind = "channel_message"
	PrivateMessage MessageKind = "private_message"
)

// Message represents an immutable entry of the message log.
// Channel is set for channel messages, Recipient for private ones.
type Message struct {
	ID        uuid.UUID
	Seq       uint64
	Kind      MessageKind
	Sender    string
	Channel   string
	Recipient string
	Body      string
	At        time.Time
}

// OfflineEntry is a private message waiting for its recipient to come back.
type OfflineEntry struct {
	Seq       uint64
	MessageID uuid.UUID
	Recipient string
	Sender    string
	Body      string
	At        time.Time
}

func NewChannelMessage(sender, channel, body string, at time.Time) Message {
	return Message{
		ID:      uuid.New(),
		Kind:    ChannelMessage,
		Sender:  sender,
		Channel: channel,
		Body:    body,
		At:      at,
	}
}

func NewPrivateMessage(sender, recipient, body string, at time.Time) Message {
	return Message{
		ID:        uuid.New(),
		Kind:      PrivateMessage,
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		At:        at,
	}
}

// ToOfflineEntry keeps the fields a recipient needs once it fetches the queue.
func (m Message) ToOfflineEntry() OfflineEntry {
	return OfflineEntry{
		MessageID: m.ID,
		Recipient: m.Recipient,
		Sender:    m.Sender,
		Body:      m.Body,
		At:        m.At,
	}
}
