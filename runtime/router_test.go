package runtime

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/mocks"
	"chat-presence/runtime/workers"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// memoryRepository keeps committed state in maps, like a store would.
type memoryRepository struct {
	users    map[string]domain.User
	channels []domain.Channel
	messages []domain.Message
	offline  map[uint64]domain.OfflineEntry
	commits  int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		users:   make(map[string]domain.User),
		offline: make(map[uint64]domain.OfflineEntry),
	}
}

func (m *memoryRepository) LoadUsers() ([]domain.User, error) {
	var users []domain.User
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *memoryRepository) LoadChannels() ([]domain.Channel, error) {
	return m.channels, nil
}

func (m *memoryRepository) LoadMessages() ([]domain.Message, error) {
	return m.messages, nil
}

func (m *memoryRepository) LoadOffline() ([]domain.OfflineEntry, error) {
	var entries []domain.OfflineEntry
	for _, e := range m.offline {
		entries = append(entries, e)
	}
	return entries, nil
}

func (m *memoryRepository) Commit(_ context.Context, changes domain.Changeset) error {
	m.commits++
	for _, u := range changes.Users {
		m.users[u.Name] = u
	}
	m.channels = append(m.channels, changes.Channels...)
	m.messages = append(m.messages, changes.Messages...)
	for _, e := range changes.Enqueued {
		m.offline[e.Seq] = e
	}
	for _, e := range changes.Drained {
		delete(m.offline, e.Seq)
	}
	return nil
}

// recordingEmitter accepts broadcasts until capacity is reached,
// a negative capacity means unbounded.
type recordingEmitter struct {
	mu         sync.Mutex
	broadcasts []event.Broadcast
	capacity   int
	refused    int
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{capacity: -1}
}

func (r *recordingEmitter) Emit(b event.Broadcast) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capacity >= 0 && len(r.broadcasts) >= r.capacity {
		r.refused++
		return false
	}
	r.broadcasts = append(r.broadcasts, b)
	return true
}

func (r *recordingEmitter) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var topics []string
	for _, b := range r.broadcasts {
		topics = append(topics, b.Topic)
	}
	return topics
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = nil
}

func testConfig() RouterConfig {
	return RouterConfig{
		DefaultChannels: []string{"general"},
		PersistRetries:  3,
		PersistBackoff:  time.Millisecond,
	}
}

func newTestRouter(t *testing.T, repository *memoryRepository, config RouterConfig) (*Router, *recordingEmitter) {
	emitter := newRecordingEmitter()
	router := NewRouter(slog.Default(), repository, emitter, config)
	require.NoError(t, router.Restore(context.Background()))
	return router, emitter
}

func login(name string) domain.Request {
	return domain.Request{Service: domain.ServiceLogin, Name: "login", User: name}
}

func private(src, dst, body string) domain.Request {
	return domain.Request{Service: domain.ServiceMessage, Name: "message", Src: src, Dst: dst, Message: body}
}

func fetch(name string) domain.Request {
	return domain.Request{Service: domain.ServiceFetchOffline, Name: "fetch_offline", User: name}
}

func TestRouter_Restore_Seeds_Default_Channel(t *testing.T) {
	req := require.New(t)
	repository := newMemoryRepository()

	router, _ := newTestRouter(t, repository, testConfig())

	req.Equal([]domain.Channel{{Name: "general", Seq: 1}}, repository.channels)
	reply := router.Handle(context.Background(), domain.Request{Service: domain.ServiceChannels, Name: "channels"})
	req.Equal([]string{"general"}, reply.Channels)
}

func TestRouter_Two_Users_Login(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, emitter := newTestRouter(t, newMemoryRepository(), testConfig())

	// When ana and bob log in
	req.Equal(domain.StatusOK, router.Handle(ctx, login("ana")).Status)
	req.Equal(domain.StatusOK, router.Handle(ctx, login("bob")).Status)

	// Then both are listed online
	reply := router.Handle(ctx, domain.Request{Service: domain.ServiceUsers, Name: "users"})
	req.Equal([]string{"ana", "bob"}, reply.Users)
	req.Equal([]string{"ana", "bob"}, reply.Online)

	// And a join was announced on the default channel for each
	req.Equal([]string{"general", "general"}, emitter.topics())
	req.Equal(event.JoinedType, emitter.broadcasts[0].Event.Type)
	req.Equal("ana", emitter.broadcasts[0].Event.Sender)
}

func TestRouter_Login_Blank_User(t *testing.T) {
	req := require.New(t)
	router, emitter := newTestRouter(t, newMemoryRepository(), testConfig())

	reply := router.Handle(context.Background(), login("  "))

	req.Equal(domain.StatusError, reply.Status)
	req.Equal("missing/invalid user", reply.Message)
	req.Empty(emitter.topics())
	req.Empty(router.Snapshot().Users)
}

func TestRouter_Offline_Message_Delivered_At_Login(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMemoryRepository()
	router, emitter := newTestRouter(t, repository, testConfig())
	router.Handle(ctx, login("ana"))
	emitter.reset()

	// Given ana writes to bob while he is offline
	reply := router.Handle(ctx, private("ana", "bob", "hi bob"))
	req.Equal(domain.StatusStored, reply.Status)
	req.Empty(emitter.topics())
	req.Len(repository.offline, 1)

	// When bob logs in
	reply = router.Handle(ctx, login("bob"))

	// Then the queued message is pushed on his own topic
	req.Equal(domain.StatusOK, reply.Status)
	req.Equal("1 offline message(s) delivered", reply.Message)
	req.Equal([]string{"general", "bob"}, emitter.topics())
	delivered := emitter.broadcasts[1].Event
	req.Equal(event.PrivateMessageType, delivered.Type)
	req.Equal("ana", delivered.Sender)
	req.Equal("hi bob", delivered.Message)

	// And the queue is empty, in memory and in the store
	req.Empty(router.Handle(ctx, fetch("bob")).Offline)
	req.Empty(repository.offline)
	req.Len(repository.messages, 1)
}

func TestRouter_Online_Message_Is_Delivered(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, emitter := newTestRouter(t, newMemoryRepository(), testConfig())
	router.Handle(ctx, login("ana"))
	router.Handle(ctx, login("bob"))
	emitter.reset()

	reply := router.Handle(ctx, private("ana", "bob", "hello"))

	req.Equal(domain.StatusDelivered, reply.Status)
	req.Equal([]string{"bob"}, emitter.topics())
	req.Equal("bob", emitter.broadcasts[0].Event.Recipient)
	req.Equal(1, router.Snapshot().Messages)
}

func TestRouter_Login_Keeps_Refused_Redeliveries_Queued(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMemoryRepository()
	router, emitter := newTestRouter(t, repository, testConfig())

	// Given three messages stored for bob
	for _, body := range []string{"one", "two", "three"} {
		req.Equal(domain.StatusStored, router.Handle(ctx, private("ana", "bob", body)).Status)
	}
	emitter.reset()

	// And an emitter accepting only the join and one redelivery
	emitter.capacity = 2

	// When bob logs in
	reply := router.Handle(ctx, login("bob"))

	// Then only the accepted message left the queue
	req.Equal(domain.StatusOK, reply.Status)
	req.Equal("1 offline message(s) delivered, 2 still queued", reply.Message)
	req.Equal("one", emitter.broadcasts[1].Event.Message)
	req.Len(repository.offline, 2)

	// And the rest is still fetchable, in order
	fetched := router.Handle(ctx, fetch("bob")).Offline
	req.Len(fetched, 2)
	req.Equal("two", fetched[0].Body)
	req.Equal("three", fetched[1].Body)
	req.Empty(repository.offline)
}

func TestRouter_Login_With_Saturated_Fanout_Loses_Nothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMemoryRepository()
	// A one slot fanout nobody drains: the join fills it
	fanout := workers.NewBroadcastFanout(slog.Default(), 1, time.Millisecond, time.Second)
	router := NewRouter(slog.Default(), repository, fanout, testConfig())
	req.NoError(router.Restore(ctx))

	// Given two messages stored for bob
	router.Handle(ctx, private("ana", "bob", "m1"))
	router.Handle(ctx, private("ana", "bob", "m2"))

	// When bob logs in
	reply := router.Handle(ctx, login("bob"))

	// Then nothing was consumed
	req.Equal(domain.StatusOK, reply.Status)
	req.Equal("0 offline message(s) delivered, 2 still queued", reply.Message)
	req.Equal(uint64(1), fanout.Dropped())
	req.Len(repository.offline, 2)

	// And both messages can still be fetched
	fetched := router.Handle(ctx, fetch("bob")).Offline
	req.Len(fetched, 2)
	req.Equal("m1", fetched[0].Body)
	req.Equal("m2", fetched[1].Body)
}

func TestRouter_Refused_Online_Message_Is_Stored(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMemoryRepository()
	router, emitter := newTestRouter(t, repository, testConfig())
	router.Handle(ctx, login("ana"))
	router.Handle(ctx, login("bob"))
	emitter.reset()

	// Given an emitter refusing everything
	emitter.capacity = 0

	// When ana writes to the online bob
	reply := router.Handle(ctx, private("ana", "bob", "are you there"))

	// Then the message is kept offline instead of reported delivered
	req.Equal(domain.StatusStored, reply.Status)
	req.Equal(1, emitter.refused)
	req.Len(repository.messages, 1)
	req.Len(repository.offline, 1)
	req.Equal(1, router.Snapshot().Messages)

	fetched := router.Handle(ctx, fetch("bob")).Offline
	req.Len(fetched, 1)
	req.Equal("are you there", fetched[0].Body)
}

func TestRouter_Drain_Leaves_Other_Recipients_Alone(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMemoryRepository()
	router, emitter := newTestRouter(t, repository, testConfig())

	// Given messages queued for bob and carl
	router.Handle(ctx, private("ana", "bob", "for bob"))
	router.Handle(ctx, private("ana", "carl", "for carl 1"))
	router.Handle(ctx, private("ana", "carl", "for carl 2"))
	emitter.reset()

	// When bob logs in
	reply := router.Handle(ctx, login("bob"))

	// Then only bob's entry was delivered, on bob's topic
	req.Equal("1 offline message(s) delivered", reply.Message)
	req.Equal([]string{"general", "bob"}, emitter.topics())
	req.Equal(map[string]int{"carl": 2}, router.Snapshot().OfflinePending)
	req.Len(repository.offline, 2)

	// And bob fetching gets nothing of carl's
	req.Empty(router.Handle(ctx, fetch("bob")).Offline)
	fetched := router.Handle(ctx, fetch("carl")).Offline
	req.Len(fetched, 2)
	for _, entry := range fetched {
		req.Equal("carl", entry.Recipient)
	}
}

func TestRouter_Snapshot_While_Handling(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter(t, newMemoryRepository(), testConfig())

	done := make(chan struct{})
	failures := make(chan string, 1)
	go func() {
		defer close(failures)
		lastMessages := 0
		for {
			select {
			case <-done:
				return
			default:
			}
			snapshot := router.Snapshot()
			online := 0
			for _, u := range snapshot.Users {
				if u.Online {
					online++
				}
			}
			switch {
			case snapshot.Messages < snapshot.PendingCount():
				failures <- "more queued entries than logged messages"
				return
			case snapshot.Messages < lastMessages:
				failures <- "message log went backwards"
				return
			case online != snapshot.OnlineCount():
				failures <- "online count does not match users"
				return
			case len(snapshot.Channels) == 0:
				failures <- "default channel missing"
				return
			}
			lastMessages = snapshot.Messages
		}
	}()

	// While a reader loops on snapshots, the router keeps mutating
	for i := 0; i < 200; i++ {
		router.Handle(ctx, private("ana", "bob", "ping"))
		if i%10 == 0 {
			router.Handle(ctx, login("bob"))
			router.Handle(ctx, private("ana", "bob", "online ping"))
			router.Handle(ctx, domain.Request{Service: domain.ServiceLogout, Name: "logout", User: "bob"})
			router.Handle(ctx, fetch("bob"))
		}
	}
	close(done)

	for failure := range failures {
		req.FailNow(failure)
	}
	req.Equal(220, router.Snapshot().Messages)
}

func TestRouter_Offline_Queue_Keeps_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter(t, newMemoryRepository(), testConfig())

	for _, body := range []string{"one", "two", "three"} {
		req.Equal(domain.StatusStored, router.Handle(ctx, private("ana", "bob", body)).Status)
	}
	req.Equal(3, router.Snapshot().OfflinePending["bob"])

	// When bob fetches twice
	first := router.Handle(ctx, fetch("bob"))
	second := router.Handle(ctx, fetch("bob"))

	// Then the first fetch returns everything in order and the second nothing
	req.Len(first.Offline, 3)
	req.Equal("one", first.Offline[0].Body)
	req.Equal("two", first.Offline[1].Body)
	req.Equal("three", first.Offline[2].Body)
	req.NotNil(second.Offline)
	req.Empty(second.Offline)
}

func TestRouter_Duplicate_Channel(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter(t, newMemoryRepository(), testConfig())
	create := domain.Request{Service: domain.ServiceChannel, Name: "channel", Channel: "dev"}

	req.Equal(domain.StatusOK, router.Handle(ctx, create).Status)
	reply := router.Handle(ctx, create)

	req.Equal(domain.StatusError, reply.Status)
	req.Equal("channel exists", reply.Message)
	channels := router.Handle(ctx, domain.Request{Service: domain.ServiceChannels, Name: "channels"})
	req.Equal([]string{"general", "dev"}, channels.Channels)
}

func TestRouter_Publish_To_Unknown_Channel(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, emitter := newTestRouter(t, newMemoryRepository(), testConfig())

	reply := router.Handle(ctx, domain.Request{
		Service: domain.ServicePublish, Name: "publish", User: "ana", Channel: "ghost", Message: "boo",
	})

	req.Equal(domain.StatusError, reply.Status)
	req.Equal("channel does not exist", reply.Message)
	req.Zero(router.Snapshot().Messages)
	req.Empty(emitter.topics())
}

func TestRouter_Publish_Broadcasts_On_Channel(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, emitter := newTestRouter(t, newMemoryRepository(), testConfig())

	reply := router.Handle(ctx, domain.Request{
		Service: domain.ServicePublish, Name: "publish", User: "ana", Channel: "general", Message: "hey all",
	})

	req.Equal(domain.StatusOK, reply.Status)
	req.Equal([]string{"general"}, emitter.topics())
	req.Equal(event.ChannelMessageType, emitter.broadcasts[0].Event.Type)
	req.Equal("hey all", emitter.broadcasts[0].Event.Message)
	req.Equal(1, router.Snapshot().Messages)
}

func TestRouter_Logout(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, emitter := newTestRouter(t, newMemoryRepository(), testConfig())
	router.Handle(ctx, login("ana"))
	emitter.reset()

	reply := router.Handle(ctx, domain.Request{Service: domain.ServiceLogout, Name: "logout", User: "ana"})

	req.Equal(domain.StatusOK, reply.Status)
	req.Equal([]string{"general"}, emitter.topics())
	req.Equal(event.LeftType, emitter.broadcasts[0].Event.Type)
	users := router.Handle(ctx, domain.Request{Service: domain.ServiceUsers, Name: "users"})
	req.Equal([]string{"ana"}, users.Users)
	req.Empty(users.Online)

	// And logging out an unknown user still succeeds silently
	emitter.reset()
	reply = router.Handle(ctx, domain.Request{Service: domain.ServiceLogout, Name: "logout", User: "ghost"})
	req.Equal(domain.StatusOK, reply.Status)
	req.Empty(emitter.topics())
}

func TestRouter_Unknown_Service(t *testing.T) {
	req := require.New(t)
	router, _ := newTestRouter(t, newMemoryRepository(), testConfig())

	reply := router.Handle(context.Background(), domain.Request{Service: domain.ServiceUnknown, Name: "dance"})

	req.Equal("dance", reply.Service)
	req.Equal(domain.StatusError, reply.Status)
	req.Equal("unknown service", reply.Message)
}

func TestRouter_Duplicate_Login_Policy(t *testing.T) {
	t.Run("accept rebroadcasts the join", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		router, emitter := newTestRouter(t, newMemoryRepository(), testConfig())
		router.Handle(ctx, login("ana"))

		reply := router.Handle(ctx, login("ana"))

		req.Equal(domain.StatusOK, reply.Status)
		req.Equal([]string{"general", "general"}, emitter.topics())
		req.Len(router.Snapshot().Users, 1)
	})

	t.Run("reject answers an error", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		config := testConfig()
		config.RejectDuplicateLogin = true
		router, emitter := newTestRouter(t, newMemoryRepository(), config)
		router.Handle(ctx, login("ana"))

		reply := router.Handle(ctx, login("ana"))

		req.Equal(domain.StatusError, reply.Status)
		req.Equal("user already logged in", reply.Message)
		req.Equal([]string{"general"}, emitter.topics())
	})
}

func TestRouter_Restart_Recovers_State(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMemoryRepository()

	// Given a first router that saw some traffic
	first, _ := newTestRouter(t, repository, testConfig())
	first.Handle(ctx, login("ana"))
	first.Handle(ctx, domain.Request{Service: domain.ServiceChannel, Name: "channel", Channel: "dev"})
	first.Handle(ctx, private("ana", "bob", "while you were away"))

	// When a second router restores from the same store
	second, _ := newTestRouter(t, repository, testConfig())

	// Then it sees the same tables
	snapshot := second.Snapshot()
	req.Equal([]string{"general", "dev"}, snapshot.Channels)
	req.Equal(1, snapshot.Messages)
	req.Equal(map[string]int{"bob": 1}, snapshot.OfflinePending)
	req.Equal("ana", snapshot.Users[0].Name)

	// And new records keep numbering after the recovered ones
	second.Handle(ctx, domain.Request{Service: domain.ServiceChannel, Name: "channel", Channel: "ops"})
	last := repository.channels[len(repository.channels)-1]
	req.Equal("ops", last.Name)
	req.Greater(last.Seq, uint64(4))

	// And bob still gets his message
	reply := second.Handle(ctx, fetch("bob"))
	req.Len(reply.Offline, 1)
	req.Equal("while you were away", reply.Offline[0].Body)
}

func TestRouter_Storage_Failure_Leaves_State_Untouched(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockStateRepository(ctrl)
	emitter := mocks.NewMockEmitter(ctrl)

	// Given a store holding only the default channel
	repository.EXPECT().LoadUsers().Return(nil, nil)
	repository.EXPECT().LoadChannels().Return([]domain.Channel{{Name: "general", Seq: 1}}, nil)
	repository.EXPECT().LoadMessages().Return(nil, nil)
	repository.EXPECT().LoadOffline().Return(nil, nil)
	router := NewRouter(slog.Default(), repository, emitter, testConfig())
	req.NoError(router.Restore(ctx))

	// And every commit attempt failing
	repository.EXPECT().Commit(gomock.Any(), gomock.Any()).
		Return(stderrors.New("disk full")).Times(3)
	emitter.EXPECT().Emit(gomock.Any()).Times(0)

	// When ana logs in
	reply := router.Handle(ctx, login("ana"))

	// Then the request fails and nothing changed
	req.Equal(domain.StatusError, reply.Status)
	req.Equal("storage unavailable", reply.Message)
	req.Empty(router.Snapshot().Users)
}

func TestRouter_Storage_Retry_Succeeds(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockStateRepository(ctrl)
	emitter := mocks.NewMockEmitter(ctrl)

	repository.EXPECT().LoadUsers().Return(nil, nil)
	repository.EXPECT().LoadChannels().Return([]domain.Channel{{Name: "general", Seq: 1}}, nil)
	repository.EXPECT().LoadMessages().Return(nil, nil)
	repository.EXPECT().LoadOffline().Return(nil, nil)
	router := NewRouter(slog.Default(), repository, emitter, testConfig())
	req.NoError(router.Restore(ctx))

	// Given the store fails once then recovers
	gomock.InOrder(
		repository.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(stderrors.New("busy")),
		repository.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil),
	)
	emitter.EXPECT().Emit(gomock.Any()).Return(true).Times(1)

	reply := router.Handle(ctx, login("ana"))

	req.Equal(domain.StatusOK, reply.Status)
	req.Equal([]string{"ana"}, router.Handle(ctx, domain.Request{Service: domain.ServiceUsers, Name: "users"}).Online)
}
