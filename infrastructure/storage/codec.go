package storage

import (
	"chat-presence/domain"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const (
	userPrefix    = "user:"
	channelPrefix = "channel:"
	messagePrefix = "msg:"
	offlinePrefix = "offline:"
)

// Deterministic encoding keeps identical records byte-identical on disk.
var encMode cbor.EncMode

// Unknown fields are ignored so older servers can read newer records.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("storage: CBOR decoder initialization failed: " + err.Error())
	}
}

func userKey(name string) []byte {
	return []byte(userPrefix + name)
}

// seqKey zero-pads seq so lexical key order matches creation order.
func seqKey(prefix string, seq uint64) []byte {
	return fmt.Appendf(nil, "%s%020d", prefix, seq)
}

type userRecord struct {
	Name     string `cbor:"name"`
	Online   bool   `cbor:"online"`
	LastSeen int64  `cbor:"last_seen"`
	Seq      uint64 `cbor:"seq"`
}

type channelRecord struct {
	Name string `cbor:"name"`
	Seq  uint64 `cbor:"seq"`
}

type messageRecord struct {
	ID        string `cbor:"id"`
	Seq       uint64 `cbor:"seq"`
	Kind      string `cbor:"kind"`
	Sender    string `cbor:"sender"`
	Channel   string `cbor:"channel,omitempty"`
	Recipient string `cbor:"recipient,omitempty"`
	Body      string `cbor:"body"`
	At        int64  `cbor:"at"`
}

type offlineRecord struct {
	Seq       uint64 `cbor:"seq"`
	MessageID string `cbor:"message_id"`
	Recipient string `cbor:"recipient"`
	Sender    string `cbor:"sender"`
	Body      string `cbor:"body"`
	At        int64  `cbor:"at"`
}

func encodeUser(u domain.User) ([]byte, error) {
	return encMode.Marshal(userRecord{
		Name:     u.Name,
		Online:   u.Online,
		LastSeen: u.LastSeen.UnixNano(),
		Seq:      u.Seq,
	})
}

func decodeUser(data []byte) (domain.User, error) {
	var r userRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		Name:     r.Name,
		Online:   r.Online,
		LastSeen: time.Unix(0, r.LastSeen).UTC(),
		Seq:      r.Seq,
	}, nil
}

func encodeChannel(c domain.Channel) ([]byte, error) {
	return encMode.Marshal(channelRecord{Name: c.Name, Seq: c.Seq})
}

func decodeChannel(data []byte) (domain.Channel, error) {
	var r channelRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return domain.Channel{}, err
	}
	return domain.Channel{Name: r.Name, Seq: r.Seq}, nil
}

func encodeMessage(m domain.Message) ([]byte, error) {
	return encMode.Marshal(messageRecord{
		ID:        m.ID.String(),
		Seq:       m.Seq,
		Kind:      string(m.Kind),
		Sender:    m.Sender,
		Channel:   m.Channel,
		Recipient: m.Recipient,
		Body:      m.Body,
		At:        m.At.UnixNano(),
	})
}

func decodeMessage(data []byte) (domain.Message, error) {
	var r messageRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return domain.Message{}, err
	}
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message %d: %w", r.Seq, err)
	}
	return domain.Message{
		ID:        id,
		Seq:       r.Seq,
		Kind:      domain.MessageKind(r.Kind),
		Sender:    r.Sender,
		Channel:   r.Channel,
		Recipient: r.Recipient,
		Body:      r.Body,
		At:        time.Unix(0, r.At).UTC(),
	}, nil
}

func encodeOffline(e domain.OfflineEntry) ([]byte, error) {
	return encMode.Marshal(offlineRecord{
		Seq:       e.Seq,
		MessageID: e.MessageID.String(),
		Recipient: e.Recipient,
		Sender:    e.Sender,
		Body:      e.Body,
		At:        e.At.UnixNano(),
	})
}

func decodeOffline(data []byte) (domain.OfflineEntry, error) {
	var r offlineRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return domain.OfflineEntry{}, err
	}
	id, err := uuid.Parse(r.MessageID)
	if err != nil {
		return domain.OfflineEntry{}, fmt.Errorf("offline entry %d: %w", r.Seq, err)
	}
	return domain.OfflineEntry{
		Seq:       r.Seq,
		MessageID: id,
		Recipient: r.Recipient,
		Sender:    r.Sender,
		Body:      r.Body,
		At:        time.Unix(0, r.At).UTC(),
	}, nil
}
