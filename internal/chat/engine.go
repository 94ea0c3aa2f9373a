// Package chat keeps a client's view of messages, presence and blocks in step
// with the backend.
//
// An Engine owns three collections (messages, users, blocked user IDs) for one
// signed-in user at a time. Every refresh replaces a whole collection. Results
// are applied only if they belong to the current session and are the latest
// request issued for that collection, so slow or stale responses never
// overwrite newer state.
//
// The user list is not filtered by blocks, only messages are. Callers that
// need to hide blocked peers from the user list must do so themselves.
package chat

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/realtime"
	"github.com/vedran77/blink/internal/repository"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultRefreshWindow     = 250 * time.Millisecond
)

type collection int

const (
	collMessages collection = iota
	collUsers
	collBlocked
	collRole
	collectionCount
)

type Deps struct {
	Profiles repository.ProfileRepository
	Messages repository.MessageRepository
	Blocks   repository.BlockRepository
	Reports  repository.ReportRepository
	Feed     realtime.Feed
	Clock    clockwork.Clock
	Log      *slog.Logger
}

type Option func(*Engine)

func WithHeartbeatInterval(d time.Duration) Option {
	return func(e *Engine) { e.heartbeatEvery = d }
}

// WithRefreshWindow sets how long feed-triggered refreshes are coalesced.
// Zero refreshes on every event.
func WithRefreshWindow(d time.Duration) Option {
	return func(e *Engine) { e.refreshWindow = d }
}

type Engine struct {
	profileRepo repository.ProfileRepository
	messageRepo repository.MessageRepository
	blockRepo   repository.BlockRepository
	reportRepo  repository.ReportRepository
	feed        realtime.Feed
	clock       clockwork.Clock
	log         *slog.Logger

	heartbeatEvery time.Duration
	refreshWindow  time.Duration

	mu         sync.RWMutex
	userID     string
	role       domain.Role
	generation uint64
	seq        [collectionCount]uint64
	messages   []domain.Message
	users      []domain.UserPresence
	blocked    []string
	session    *session

	messagesObs observers[[]domain.Message]
	usersObs    observers[[]domain.UserPresence]
	blockedObs  observers[[]string]
}

func NewEngine(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		profileRepo:    deps.Profiles,
		messageRepo:    deps.Messages,
		blockRepo:      deps.Blocks,
		reportRepo:     deps.Reports,
		feed:           deps.Feed,
		clock:          deps.Clock,
		log:            deps.Log,
		heartbeatEvery: DefaultHeartbeatInterval,
		refreshWindow:  DefaultRefreshWindow,
		role:           domain.RoleStandard,
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// session holds everything started by Init and torn down by Reset.
type session struct {
	cancel      context.CancelFunc
	heartbeat   chan struct{}
	scheduler   *scheduler
	subMu       sync.Mutex
	closed      bool
	messagesSub realtime.Subscription
	profilesSub realtime.Subscription
}

// replace installs sub in slot, closing whatever was there. A session that
// has already been stopped closes sub straight away.
func (s *session) replace(slot *realtime.Subscription, sub realtime.Subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		sub.Unsubscribe()
		return
	}
	if *slot != nil {
		(*slot).Unsubscribe()
	}
	*slot = sub
}

func (s *session) stop() {
	s.cancel()
	s.scheduler.Stop()

	s.subMu.Lock()
	s.closed = true
	if s.messagesSub != nil {
		s.messagesSub.Unsubscribe()
		s.messagesSub = nil
	}
	if s.profilesSub != nil {
		s.profilesSub.Unsubscribe()
		s.profilesSub = nil
	}
	s.subMu.Unlock()

	<-s.heartbeat
}

// Init starts a session for userID: it loads role, blocks, messages and users,
// subscribes to message and profile changes, and starts the presence heartbeat.
// Any previous session is torn down first. Individual load failures are logged
// and do not abort the rest of the sequence.
func (e *Engine) Init(ctx context.Context, userID string) error {
	userID, err := normalizeID(userID)
	if err != nil {
		return err
	}

	e.Reset()

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &session{cancel: cancel, heartbeat: make(chan struct{})}
	sess.scheduler = newScheduler(sessCtx, e.clock, e.refreshWindow, e.runRefresh)

	e.mu.Lock()
	e.userID = userID
	e.session = sess
	e.mu.Unlock()

	// The first tick is a full interval away; the immediate update is below.
	e.startHeartbeat(sessCtx, sess)

	e.fetchRole(ctx)
	e.FetchBlockedUsers(ctx)
	e.FetchMessages(ctx)
	e.FetchUsers(ctx)

	if err := e.SubscribeMessages(ctx); err != nil {
		e.log.Error("Subscribing to messages failed", "user_id", userID, "error", err)
	}
	if err := e.SubscribeProfiles(ctx); err != nil {
		e.log.Error("Subscribing to profiles failed", "user_id", userID, "error", err)
	}

	e.UpdatePresence(ctx)

	e.log.Info("Chat session started", "user_id", userID)
	return nil
}

// Reset drops all state and stops subscriptions, the heartbeat and pending
// refreshes. Responses still in flight are discarded when they arrive.
func (e *Engine) Reset() {
	e.mu.Lock()
	sess := e.session
	hadUser := e.userID != ""
	e.session = nil
	e.userID = ""
	e.role = domain.RoleStandard
	e.messages = nil
	e.users = nil
	e.blocked = nil
	e.generation++
	e.mu.Unlock()

	if sess != nil {
		sess.stop()
	}
	if hadUser || sess != nil {
		e.messagesObs.notify(nil)
		e.usersObs.notify(nil)
		e.blockedObs.notify(nil)
	}
}

func (e *Engine) startHeartbeat(ctx context.Context, sess *session) {
	ticker := e.clock.NewTicker(e.heartbeatEvery)

	go func() {
		defer close(sess.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				e.touchPresence(ctx)
				sess.scheduler.Request(refreshUsers)
			}
		}
	}()
}

func (e *Engine) runRefresh(ctx context.Context, kinds refreshKind) {
	if kinds.has(refreshBlocked) {
		e.FetchBlockedUsers(ctx)
	}
	if kinds.has(refreshMessages) {
		e.FetchMessages(ctx)
	}
	if kinds.has(refreshUsers) {
		e.FetchUsers(ctx)
	}
}

// CurrentUserID returns the signed-in user, or "" between sessions.
func (e *Engine) CurrentUserID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userID
}

func (e *Engine) Role() domain.Role {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.role
}

// Messages returns a copy of the visible messages, oldest first.
func (e *Engine) Messages() []domain.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.messages)
}

// Users returns a copy of the user list. It is not filtered by blocks.
func (e *Engine) Users() []domain.UserPresence {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.users)
}

func (e *Engine) BlockedUsers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.blocked)
}

// IsBlocked reports whether the current user has blocked id.
func (e *Engine) IsBlocked(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Contains(e.blocked, strings.ToLower(id))
}

// OnMessagesChanged registers fn to receive every new message snapshot.
// The returned func unregisters it.
func (e *Engine) OnMessagesChanged(fn func([]domain.Message)) func() {
	return e.messagesObs.add(fn)
}

func (e *Engine) OnUsersChanged(fn func([]domain.UserPresence)) func() {
	return e.usersObs.add(fn)
}

func (e *Engine) OnBlockedChanged(fn func([]string)) func() {
	return e.blockedObs.add(fn)
}

// begin issues a request sequence number for c. ok is false when the
// collection needs a user and there is none.
func (e *Engine) begin(c collection, needsUser bool) (userID string, gen, seq uint64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if needsUser && e.userID == "" {
		return "", 0, 0, false
	}
	e.seq[c]++
	return e.userID, e.generation, e.seq[c], true
}

// commit runs apply under the write lock if the response is still current.
func (e *Engine) commit(c collection, gen, seq uint64, apply func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation || seq != e.seq[c] {
		return false
	}
	apply()
	return true
}

func (e *Engine) currentSession() *session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}
