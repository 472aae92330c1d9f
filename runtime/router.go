// Package runtime owns the presence, channel, message and offline tables
// and routes control-plane requests against them.
package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

type RouterConfig struct {
	DefaultChannels      []string
	RejectDuplicateLogin bool
	PersistRetries       int
	PersistBackoff       time.Duration
}

// Router is the messaging state machine.
// Handle must be called from a single goroutine: requests are processed one
// at a time, so the tables need no locking between routing steps. The mutex
// only keeps Snapshot readers from observing a half-applied request.
type Router struct {
	mu             sync.RWMutex
	log            *slog.Logger
	repository     contract.StateRepository
	emitter        contract.Emitter
	presence       *Presence
	channels       *ChannelRegistry
	offline        *OfflineQueue
	messages       *MessageLog
	defaultChannel string
	seq            uint64
	retries        int
	backoff        time.Duration
	now            func() time.Time
}

func NewRouter(log *slog.Logger, repository contract.StateRepository,
	emitter contract.Emitter, config RouterConfig) *Router {
	defaults := lo.Uniq(lo.Filter(config.DefaultChannels, func(name string, _ int) bool {
		return name != ""
	}))
	if len(defaults) == 0 {
		defaults = []string{domain.DefaultChannel}
	}
	return &Router{
		log:            log,
		repository:     repository,
		emitter:        emitter,
		presence:       NewPresence(config.RejectDuplicateLogin),
		channels:       NewChannelRegistry(defaults),
		offline:        NewOfflineQueue(),
		messages:       NewMessageLog(),
		defaultChannel: defaults[0],
		retries:        max(config.PersistRetries, 1),
		backoff:        config.PersistBackoff,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Restore loads the four persisted collections and seeds missing default channels.
// It must run before the first Handle.
func (r *Router) Restore(ctx context.Context) error {
	users, err := r.repository.LoadUsers()
	if err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	channels, err := r.repository.LoadChannels()
	if err != nil {
		return fmt.Errorf("loading channels: %w", err)
	}
	messages, err := r.repository.LoadMessages()
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	offline, err := r.repository.LoadOffline()
	if err != nil {
		return fmt.Errorf("loading offline queue: %w", err)
	}

	r.mu.Lock()
	r.presence.Restore(users)
	r.channels.Restore(channels)
	r.messages.Restore(messages)
	r.offline.Restore(offline)
	r.seq = maxSeq(users, channels, messages, offline)
	r.mu.Unlock()

	var seeded []domain.Channel
	for _, name := range r.channels.Missing() {
		seeded = append(seeded, domain.Channel{Name: name, Seq: r.nextSeq()})
	}
	if len(seeded) > 0 {
		if err = r.commit(ctx, domain.Changeset{Channels: seeded}); err != nil {
			return fmt.Errorf("seeding default channels: %w", err)
		}
		r.mu.Lock()
		for _, ch := range seeded {
			r.channels.Add(ch)
		}
		r.mu.Unlock()
	}

	r.log.Info("Engine state restored",
		"users", len(users),
		"channels", len(channels)+len(seeded),
		"messages", len(messages),
		"offline", len(offline))
	return nil
}

// Handle routes one request and returns its single reply.
// Mutations are committed to the repository before they are applied in
// memory and before any broadcast is emitted.
func (r *Router) Handle(ctx context.Context, req domain.Request) domain.Reply {
	at := r.now()
	if err := domain.Validate(req); err != nil {
		return r.failure(req, err, at)
	}

	switch req.Service {
	case domain.ServiceLogin:
		return r.login(ctx, req, at)
	case domain.ServiceLogout:
		return r.logout(ctx, req, at)
	case domain.ServiceUsers:
		return domain.Reply{
			Service:   req.Name,
			Timestamp: at,
			Users:     r.presence.Names(),
			Online:    r.presence.OnlineNames(),
		}
	case domain.ServiceChannels:
		return domain.Reply{Service: req.Name, Timestamp: at, Channels: r.channels.List()}
	case domain.ServiceChannel:
		return r.createChannel(ctx, req, at)
	case domain.ServicePublish:
		return r.publish(ctx, req, at)
	case domain.ServiceMessage:
		return r.sendPrivate(ctx, req, at)
	case domain.ServiceFetchOffline:
		return r.fetchOffline(ctx, req, at)
	default:
		return r.failure(req, errors.ErrUnknownService, at)
	}
}

func (r *Router) login(ctx context.Context, req domain.Request, at time.Time) domain.Reply {
	user, err := r.presence.Login(req.User, at)
	if err != nil {
		return r.failure(req, err, at)
	}
	if user.Seq == 0 {
		user.Seq = r.nextSeq()
	}
	if err = r.commit(ctx, domain.Changeset{Users: []domain.User{user}}); err != nil {
		return r.failure(req, err, at)
	}

	r.mu.Lock()
	r.presence.Apply(user)
	r.mu.Unlock()

	r.emitter.Emit(event.Joined(user.Name, r.defaultChannel, at))
	delivered := r.redeliver(ctx, user.Name)

	reply := r.success(req, domain.StatusOK, at)
	if left := r.offline.Len(user.Name); left > 0 {
		reply.Message = fmt.Sprintf("%d offline message(s) delivered, %d still queued", delivered, left)
	} else if delivered > 0 {
		reply.Message = fmt.Sprintf("%d offline message(s) delivered", delivered)
	}
	r.log.Debug("User logged in", "user", user.Name, "delivered", delivered)
	return reply
}

// redeliver hands the queued entries of recipient to the emitter, oldest
// first, and stops at the first refusal so the queue stays FIFO. Only the
// entries the emitter accepted leave the queue.
func (r *Router) redeliver(ctx context.Context, recipient string) int {
	var sent []domain.OfflineEntry
	for _, entry := range r.offline.Peek(recipient) {
		if !r.emitter.Emit(event.Redelivered(entry)) {
			break
		}
		sent = append(sent, entry)
	}
	if len(sent) == 0 {
		return 0
	}
	if err := r.commit(ctx, domain.Changeset{Drained: sent}); err != nil {
		// The entries stay queued: a later drain may repeat them, never lose them.
		r.log.Error("Failed to record redelivered messages", "user", recipient, "error", err)
		return len(sent)
	}

	r.mu.Lock()
	r.offline.Remove(recipient, len(sent))
	r.mu.Unlock()
	return len(sent)
}

func (r *Router) logout(ctx context.Context, req domain.Request, at time.Time) domain.Reply {
	user, known := r.presence.Logout(req.User, at)
	if !known {
		return r.success(req, domain.StatusOK, at)
	}
	if err := r.commit(ctx, domain.Changeset{Users: []domain.User{user}}); err != nil {
		return r.failure(req, err, at)
	}

	r.mu.Lock()
	r.presence.Apply(user)
	r.mu.Unlock()

	r.emitter.Emit(event.Left(user.Name, r.defaultChannel, at))
	return r.success(req, domain.StatusOK, at)
}

func (r *Router) createChannel(ctx context.Context, req domain.Request, at time.Time) domain.Reply {
	channel, err := r.channels.Create(req.Channel)
	if err != nil {
		return r.failure(req, err, at)
	}
	channel.Seq = r.nextSeq()
	if err = r.commit(ctx, domain.Changeset{Channels: []domain.Channel{channel}}); err != nil {
		return r.failure(req, err, at)
	}

	r.mu.Lock()
	r.channels.Add(channel)
	r.mu.Unlock()
	return r.success(req, domain.StatusOK, at)
}

func (r *Router) publish(ctx context.Context, req domain.Request, at time.Time) domain.Reply {
	if !r.channels.Exists(req.Channel) {
		return r.failure(req, errors.ErrChannelNotFound, at)
	}
	message := domain.NewChannelMessage(req.User, req.Channel, req.Message, at)
	message.Seq = r.nextSeq()
	if err := r.commit(ctx, domain.Changeset{Messages: []domain.Message{message}}); err != nil {
		return r.failure(req, err, at)
	}

	r.mu.Lock()
	r.messages.Append(message)
	r.mu.Unlock()

	r.emitter.Emit(event.Published(message))
	return r.success(req, domain.StatusOK, at)
}

// sendPrivate never drops a message: an online recipient gets it on its
// own topic right away, otherwise it waits in the offline queue. A broadcast
// refused by the emitter falls back to the offline queue too.
func (r *Router) sendPrivate(ctx context.Context, req domain.Request, at time.Time) domain.Reply {
	message := domain.NewPrivateMessage(req.Src, req.Dst, req.Message, at)
	message.Seq = r.nextSeq()

	if !r.presence.IsOnline(req.Dst) {
		return r.store(ctx, req, message, false, at)
	}

	if err := r.commit(ctx, domain.Changeset{Messages: []domain.Message{message}}); err != nil {
		return r.failure(req, err, at)
	}
	r.mu.Lock()
	r.messages.Append(message)
	r.mu.Unlock()

	if r.emitter.Emit(event.Private(message.Sender, message.Recipient, message.Body, at)) {
		return r.success(req, domain.StatusDelivered, at)
	}
	r.log.Warn("Broadcast refused, message kept offline", "src", req.Src, "dst", req.Dst)
	return r.store(ctx, req, message, true, at)
}

// store queues message for its recipient. logged tells whether the message
// is already in the log.
func (r *Router) store(ctx context.Context, req domain.Request, message domain.Message,
	logged bool, at time.Time) domain.Reply {
	entry := message.ToOfflineEntry()
	entry.Seq = r.nextSeq()
	changes := domain.Changeset{Enqueued: []domain.OfflineEntry{entry}}
	if !logged {
		changes.Messages = []domain.Message{message}
	}
	if err := r.commit(ctx, changes); err != nil {
		return r.failure(req, err, at)
	}

	r.mu.Lock()
	if !logged {
		r.messages.Append(message)
	}
	r.offline.Enqueue(entry)
	r.mu.Unlock()

	r.log.Debug("Message stored for offline delivery", "src", req.Src, "dst", req.Dst)
	return r.success(req, domain.StatusStored, at)
}

func (r *Router) fetchOffline(ctx context.Context, req domain.Request, at time.Time) domain.Reply {
	pending := r.offline.Peek(req.User)
	if len(pending) > 0 {
		if err := r.commit(ctx, domain.Changeset{Drained: pending}); err != nil {
			return r.failure(req, err, at)
		}
	}

	r.mu.Lock()
	drained := r.offline.Drain(req.User)
	r.mu.Unlock()

	return domain.Reply{Service: req.Name, Timestamp: at, Offline: drained}
}

// commit writes changes with exponential backoff between attempts.
// Exhausted retries surface as ErrStorageUnavailable.
func (r *Router) commit(ctx context.Context, changes domain.Changeset) error {
	delay := r.backoff
	var err error
	for attempt := 1; attempt <= r.retries; attempt++ {
		if err = r.repository.Commit(ctx, changes); err == nil {
			return nil
		}
		r.log.Warn("Commit failed", "attempt", attempt, "error", err)
		if attempt == r.retries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
}

func (r *Router) nextSeq() uint64 {
	r.seq++
	return r.seq
}

func (r *Router) success(req domain.Request, status domain.Status, at time.Time) domain.Reply {
	return domain.Reply{Service: req.Name, Status: status, Timestamp: at}
}

func (r *Router) failure(req domain.Request, err error, at time.Time) domain.Reply {
	if stderrors.Is(err, errors.ErrStorageUnavailable) {
		r.log.Error("Request rejected", "service", req.Name, "error", err)
	} else {
		r.log.Debug("Request rejected", "service", req.Name, "error", err)
	}
	return domain.Reply{
		Service:   req.Name,
		Status:    domain.StatusError,
		Message:   errors.ReplyMessage(err),
		Timestamp: at,
	}
}

// Snapshot copies the tables under a read lock for concurrent readers.
func (r *Router) Snapshot() domain.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.Snapshot{
		Users:          r.presence.All(),
		Channels:       r.channels.List(),
		Messages:       r.messages.Len(),
		OfflinePending: r.offline.Pending(),
		TakenAt:        r.now(),
	}
}

func maxSeq(users []domain.User, channels []domain.Channel,
	messages []domain.Message, offline []domain.OfflineEntry) uint64 {
	seqs := lo.Map(users, func(u domain.User, _ int) uint64 { return u.Seq })
	seqs = append(seqs, lo.Map(channels, func(c domain.Channel, _ int) uint64 { return c.Seq })...)
	seqs = append(seqs, lo.Map(messages, func(m domain.Message, _ int) uint64 { return m.Seq })...)
	seqs = append(seqs, lo.Map(offline, func(e domain.OfflineEntry, _ int) uint64 { return e.Seq })...)
	return lo.Max(seqs)
}
