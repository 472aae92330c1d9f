package protocol

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeFrame_Channel_Message(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	message := domain.NewChannelMessage("ana", "dev", "ship it", at)

	frame, err := EncodeFrame(event.Published(message))

	req.NoError(err)
	req.Equal(`dev|{"type":"channel_message","sender":"ana","channel":"dev","message":"ship it","timestamp":"2024-05-01T10:00:00Z"}`,
		string(frame))
}

func TestEncodeFrame_Private_Message(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	frame, err := EncodeFrame(event.Private("ana", "bob", "psst", at))

	req.NoError(err)
	req.Equal(`bob|{"type":"private_message","src":"ana","dst":"bob","message":"psst","timestamp":"2024-05-01T10:00:00Z"}`,
		string(frame))
}

func TestDecodeFrame(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Given a topic containing the separator
	frame, err := EncodeFrame(event.Joined("ana", "a|b", at))
	req.NoError(err)

	topic, payload, err := DecodeFrame(frame)

	req.NoError(err)
	req.Equal("a|b", topic)
	req.Equal("join", payload.Type)
	req.Equal("ana", payload.Sender)
	req.Equal("ana joined a|b", payload.Message)
}

func TestDecodeFrame_Without_Separator(t *testing.T) {
	_, _, err := DecodeFrame([]byte("general hello"))
	require.Error(t, err)
}
