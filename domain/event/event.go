package event

import (
	"chat-presence/domain"
	"fmt"
	"time"
)

type Type string

const (
	JoinedType         Type = "join"
	LeftType           Type = "leave"
	ChannelMessageType Type = "channel_message"
	PrivateMessageType Type = "private_message"
)

// Event is the data-plane payload delivered to subscribers.
type Event struct {
	Type      Type
	Sender    string
	Channel   string
	Recipient string
	Message   string
	At        time.Time
}

// Broadcast pairs an event with the topic subscribers filter on.
// The topic is a channel name or, for private delivery, a user name.
type Broadcast struct {
	Topic string
	Event Event
}

func Joined(user, channel string, at time.Time) Broadcast {
	return Broadcast{
		Topic: channel,
		Event: Event{
			Type:    JoinedType,
			Sender:  user,
			Channel: channel,
			Message: fmt.Sprintf("%s joined %s", user, channel),
			At:      at,
		},
	}
}

func Left(user, channel string, at time.Time) Broadcast {
	return Broadcast{
		Topic: channel,
		Event: Event{
			Type:    LeftType,
			Sender:  user,
			Channel: channel,
			Message: fmt.Sprintf("%s left %s", user, channel),
			At:      at,
		},
	}
}

func Published(m domain.Message) Broadcast {
	return Broadcast{
		Topic: m.Channel,
		Event: Event{
			Type:    ChannelMessageType,
			Sender:  m.Sender,
			Channel: m.Channel,
			Message: m.Body,
			At:      m.At,
		},
	}
}

func Private(sender, recipient, body string, at time.Time) Broadcast {
	return Broadcast{
		Topic: recipient,
		Event: Event{
			Type:      PrivateMessageType,
			Sender:    sender,
			Recipient: recipient,
			Message:   body,
			At:        at,
		},
	}
}

// Redelivered turns a drained offline entry into a private delivery.
func Redelivered(e domain.OfflineEntry) Broadcast {
	return Private(e.Sender, e.Recipient, e.Body, e.At)
}
