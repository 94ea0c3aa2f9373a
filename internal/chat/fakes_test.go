package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/realtime"
	"github.com/vedran77/blink/internal/repository"
)

var errBackend = errors.New("backend unavailable")

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	listErr  error
	calls    int
	lists    int
	touches  []time.Time
}

func newFakeProfiles(profiles ...domain.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: make(map[string]domain.Profile)}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProfiles) List(context.Context) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.profiles[p.ID] = *p
	return nil
}

func (f *fakeProfiles) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.touches = append(f.touches, at)
	if p, ok := f.profiles[id]; ok {
		p.LastSeen = &at
		f.profiles[id] = p
	}
	return nil
}

func (f *fakeProfiles) NicknameTaken(_ context.Context, nickname string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, p := range f.profiles {
		if p.Nickname != nil && *p.Nickname == nickname {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProfiles) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeProfiles) touchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.touches)
}

func (f *fakeProfiles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeMessages returns its rows as stored, without filtering on expiry, so
// that tests also exercise the engine's own filtering.
type fakeMessages struct {
	mu        sync.Mutex
	rows      []domain.Message
	created   []domain.Message
	listErr   error
	createErr error
	calls     int
	lists     int
	// beforeList, when set, runs before each ListForUser returns.
	beforeList func(n int)
	blocks     *fakeBlocks
}

func (f *fakeMessages) ListForUser(_ context.Context, userID string, _ time.Time) ([]domain.Message, error) {
	f.mu.Lock()
	f.calls++
	f.lists++
	n := f.lists
	hook := f.beforeList
	err := f.listErr
	var out []domain.Message
	for _, m := range f.rows {
		if m.Involves(userID) {
			out = append(out, m)
		}
	}
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeMessages) Create(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return f.createErr
	}
	if f.blocks != nil && f.blocks.has(msg.ReceiverID, msg.SenderID) {
		return repository.ErrRecipientBlocked
	}
	f.created = append(f.created, *msg)
	f.rows = append(f.rows, *msg)
	return nil
}

func (f *fakeMessages) MarkRead(_ context.Context, senderID, receiverID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var n int64
	for i, m := range f.rows {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Read {
			f.rows[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) setRows(rows ...domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
}

func (f *fakeMessages) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeMessages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type edge struct{ blocker, blocked string }

type fakeBlocks struct {
	mu        sync.Mutex
	edges     []edge
	existsErr error
	deleteErr error
	calls     int
	creates   int
	deletes   int
}

func (f *fakeBlocks) has(blocker, blocked string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.edges {
		if e.blocker == blocker && e.blocked == blocked {
			return true
		}
	}
	return false
}

func (f *fakeBlocks) ListBlocked(_ context.Context, blockerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var ids []string
	for _, e := range f.edges {
		if e.blocker == blockerID {
			ids = append(ids, e.blocked)
		}
	}
	return ids, nil
}

func (f *fakeBlocks) Exists(_ context.Context, blockerID, blockedID string) (bool, error) {
	f.mu.Lock()
	err := f.existsErr
	f.calls++
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.has(blockerID, blockedID), nil
}

// Create mimics a table without a uniqueness constraint so that duplicate
// inserts show up in tests.
func (f *fakeBlocks) Create(_ context.Context, b *domain.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.creates++
	f.edges = append(f.edges, edge{b.BlockerID, b.BlockedID})
	return nil
}

func (f *fakeBlocks) Delete(_ context.Context, blockerID, blockedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.edges[:0]
	for _, e := range f.edges {
		if e.blocker != blockerID || e.blocked != blockedID {
			kept = append(kept, e)
		}
	}
	f.edges = kept
	return nil
}

func (f *fakeBlocks) edgeCount(blocker, blocked string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.edges {
		if e.blocker == blocker && e.blocked == blocked {
			n++
		}
	}
	return n
}

func (f *fakeBlocks) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeReports struct {
	mu      sync.Mutex
	reports []domain.Report
}

func (f *fakeReports) Create(_ context.Context, r *domain.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, *r)
	return nil
}

func (f *fakeReports) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

// fakeFeed is an in-process realtime.Feed that counts live subscriptions.
type fakeFeed struct {
	*realtime.Registry
	mu    sync.Mutex
	opens int
	live  map[string]int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{Registry: realtime.NewRegistry(), live: make(map[string]int)}
}

func (f *fakeFeed) Subscribe(_ context.Context, table string, h realtime.Handler) (realtime.Subscription, error) {
	id, _ := f.Add(table, h)
	f.mu.Lock()
	f.opens++
	f.live[table]++
	f.mu.Unlock()
	return realtime.NewSubscription(func() {
		f.Remove(table, id)
		f.mu.Lock()
		f.live[table]--
		f.mu.Unlock()
	}), nil
}

func (f *fakeFeed) liveCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[table]
}

func (f *fakeFeed) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}
