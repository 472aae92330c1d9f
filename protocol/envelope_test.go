package protocol

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.Request
	}{
		{
			name: "login",
			raw:  `{"service":"login","data":{"user":"ana","timestamp":"2024-05-01T10:00:00Z"}}`,
			want: domain.Request{Service: domain.ServiceLogin, Name: "login", User: "ana"},
		},
		{
			name: "private message",
			raw:  `{"service":"message","data":{"src":"ana","dst":"bob","message":"hi"}}`,
			want: domain.Request{Service: domain.ServiceMessage, Name: "message", Src: "ana", Dst: "bob", Message: "hi"},
		},
		{
			name: "no data",
			raw:  `{"service":"channels"}`,
			want: domain.Request{Service: domain.ServiceChannels, Name: "channels"},
		},
		{
			name: "null data",
			raw:  `{"service":"users","data":null}`,
			want: domain.Request{Service: domain.ServiceUsers, Name: "users"},
		},
		{
			name: "unknown service keeps its name",
			raw:  `{"service":"dance","data":{}}`,
			want: domain.Request{Service: domain.ServiceUnknown, Name: "dance"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, err := DecodeRequest([]byte(tt.raw))
			req.NoError(err)
			req.Equal(tt.want, got)
		})
	}
}

func TestDecodeRequest_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"service":"login","data":"ana"}`, ``} {
		_, err := DecodeRequest([]byte(raw))
		require.ErrorIs(t, err, errors.ErrMalformedRequest, raw)
	}
}

func TestEncodeReply_Status(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 5, time.UTC)

	raw, err := EncodeReply(domain.Reply{Service: "message", Status: domain.StatusStored, Timestamp: at})

	req.NoError(err)
	req.JSONEq(`{"service":"message","data":{"status":"STORED","timestamp":"2024-05-01T10:00:00.000000005Z"}}`, string(raw))
}

func TestEncodeReply_Error(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	raw, err := EncodeReply(domain.Reply{
		Service: "dance", Status: domain.StatusError, Message: "unknown service", Timestamp: at,
	})

	req.NoError(err)
	req.JSONEq(`{"service":"dance","data":{"status":"ERROR","message":"unknown service","timestamp":"2024-05-01T10:00:00Z"}}`, string(raw))
}

func TestEncodeReply_Lists_Are_Never_Null(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	users, err := EncodeReply(domain.Reply{Service: "users", Timestamp: at})
	req.NoError(err)
	req.JSONEq(`{"service":"users","data":{"users":[],"online":[],"timestamp":"2024-05-01T10:00:00Z"}}`, string(users))

	channels, err := EncodeReply(domain.Reply{Service: "channels", Timestamp: at, Channels: []string{"general", "dev"}})
	req.NoError(err)
	req.JSONEq(`{"service":"channels","data":{"channels":["general","dev"],"timestamp":"2024-05-01T10:00:00Z"}}`, string(channels))

	offline, err := EncodeReply(domain.Reply{Service: "fetch_offline", Timestamp: at})
	req.NoError(err)
	req.JSONEq(`{"service":"fetch_offline","data":{"messages":[],"timestamp":"2024-05-01T10:00:00Z"}}`, string(offline))
}

func TestEncodeReply_Offline_Entries(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	raw, err := EncodeReply(domain.Reply{
		Service:   "fetch_offline",
		Timestamp: at,
		Offline: []domain.OfflineEntry{
			{Seq: 4, MessageID: uuid.New(), Sender: "ana", Recipient: "bob", Body: "hi", At: at},
		},
	})
	req.NoError(err)

	// Then a client decodes the same entry back
	envelope, err := DecodeReply(raw)
	req.NoError(err)
	req.Equal("fetch_offline", envelope.Service)
	req.Equal([]OfflineMessage{{Src: "ana", Dst: "bob", Message: "hi", Timestamp: "2024-05-01T10:00:00Z"}},
		envelope.Data.Messages)
}

func TestEncodeRequest_Fills_Timestamp(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeRequest("login", RequestData{User: "ana"})
	req.NoError(err)

	decoded, err := DecodeRequest(raw)
	req.NoError(err)
	req.Equal(domain.Request{Service: domain.ServiceLogin, Name: "login", User: "ana"}, decoded)
	req.Contains(string(raw), `"timestamp":"`)
}
