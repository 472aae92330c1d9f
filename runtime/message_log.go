package runtime

import (
	"chat-presence/domain"
	"sort"
)

// MessageLog is the append-only record of every routed message.
type MessageLog struct {
	messages []domain.Message
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Restore(messages []domain.Message) {
	l.messages = append([]domain.Message(nil), messages...)
	sort.Slice(l.messages, func(i, j int) bool { return l.messages[i].Seq < l.messages[j].Seq })
}

func (l *MessageLog) Append(m domain.Message) {
	l.messages = append(l.messages, m)
}

func (l *MessageLog) Len() int {
	return len(l.messages)
}
