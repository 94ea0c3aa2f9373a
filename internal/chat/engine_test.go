package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/repository"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
	carol = "33333333-3333-3333-3333-333333333333"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *Engine
	clock    *clockwork.FakeClock
	profiles *fakeProfiles
	messages *fakeMessages
	blocks   *fakeBlocks
	reports  *fakeReports
	feed     *fakeFeed
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock: clockwork.NewFakeClockAt(epoch),
		profiles: newFakeProfiles(
			domain.Profile{ID: alice, Nickname: lo.ToPtr("alice"), Role: domain.RoleStandard},
			domain.Profile{ID: bob, Nickname: lo.ToPtr("bob"), Role: domain.RoleVIP},
			domain.Profile{ID: carol, Nickname: lo.ToPtr("carol")},
		),
		blocks:  &fakeBlocks{},
		reports: &fakeReports{},
		feed:    newFakeFeed(),
	}
	f.messages = &fakeMessages{blocks: f.blocks}

	opts = append([]Option{WithRefreshWindow(0)}, opts...)
	f.engine = NewEngine(Deps{
		Profiles: f.profiles,
		Messages: f.messages,
		Blocks:   f.blocks,
		Reports:  f.reports,
		Feed:     f.feed,
		Clock:    f.clock,
		Log:      logs.GetLoggerFromLevel(slog.LevelDebug),
	}, opts...)
	t.Cleanup(f.engine.Reset)
	return f
}

func msg(sender, receiver, content string, age time.Duration) domain.Message {
	created := epoch.Add(-age)
	return domain.Message{
		ID:         uuidFor(sender, receiver, content),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  created,
		ExpiresAt:  created.Add(domain.StandardLifetime),
		Role:       domain.RoleStandard,
	}
}

func uuidFor(parts ...string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, "|")))
}

func messageEvent(kind domain.ChangeKind, sender, receiver string) domain.ChangeEvent {
	record, _ := json.Marshal(domain.MessageParticipants{SenderID: sender, ReceiverID: receiver})
	evt := domain.ChangeEvent{Table: domain.TableMessages, Kind: kind}
	if kind == domain.ChangeDelete {
		evt.OldRecord = record
	} else {
		evt.Record = record
	}
	return evt
}

func contents(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Content })
}

func TestInit_RejectsInvalidIdentifier(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	err := f.engine.Init(context.Background(), "not-a-uuid")

	req.ErrorIs(err, ErrInvalidIdentifier)
	req.Empty(f.engine.CurrentUserID())
	req.Zero(f.profiles.callCount())
	req.Zero(f.messages.callCount())
	req.Zero(f.blocks.callCount())
}

func TestInit_LoadsSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.profiles.profiles[bob] = domain.Profile{ID: bob, Nickname: lo.ToPtr("bob"), Role: domain.RoleVIP}
	f.profiles.profiles["legacy-id"] = domain.Profile{ID: "legacy-id", Nickname: lo.ToPtr("ghost")}
	f.profiles.profiles["44444444-4444-4444-4444-444444444444"] = domain.Profile{ID: "44444444-4444-4444-4444-444444444444"}
	f.blocks.edges = []edge{{bob, carol}}
	f.messages.setRows(
		msg(alice, bob, "hi", time.Minute),
		msg(carol, bob, "hey bob", 2*time.Minute),
		msg(alice, carol, "old", 2*time.Hour),
		msg(bob, alice, "yo", 0),
	)

	req.NoError(f.engine.Init(context.Background(), bob))

	req.Equal(bob, f.engine.CurrentUserID())
	req.Equal(domain.RoleVIP, f.engine.Role())
	req.Equal([]string{carol}, f.engine.BlockedUsers())
	req.True(f.engine.IsBlocked(carol))
	req.Equal([]string{"hi", "yo"}, contents(f.engine.Messages()))
	req.ElementsMatch([]string{alice, bob, carol}, lo.Map(f.engine.Users(), func(u domain.UserPresence, _ int) string { return u.ID }))
	req.Equal(1, f.feed.liveCount(domain.TableMessages))
	req.Equal(1, f.feed.liveCount(domain.TableProfiles))
	req.Equal(1, f.profiles.touchCount())
}

func TestInit_UserListCarriesPresence(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	recent := epoch.Add(-10 * time.Second)
	stale := epoch.Add(-time.Minute)
	f.profiles.profiles[bob] = domain.Profile{ID: bob, Nickname: lo.ToPtr("bob"), LastSeen: &recent}
	f.profiles.profiles[carol] = domain.Profile{ID: carol, Nickname: lo.ToPtr("carol"), LastSeen: &stale}

	req.NoError(f.engine.Init(context.Background(), alice))

	users := lo.KeyBy(f.engine.Users(), func(u domain.UserPresence) string { return u.ID })
	req.True(users[alice].Online)
	req.True(users[bob].Online)
	req.False(users[carol].Online)
	req.Equal("male", users[carol].Gender)
	req.Equal(18, users[carol].Age)
	req.Equal("US", users[carol].CountryCode)
}

func TestInit_TwiceKeepsOneSubscriptionPerTable(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	req.NoError(f.engine.Init(ctx, alice))
	req.NoError(f.engine.Init(ctx, alice))
	req.NoError(f.engine.Init(ctx, bob))

	req.Equal(bob, f.engine.CurrentUserID())
	req.Equal(1, f.feed.liveCount(domain.TableMessages))
	req.Equal(1, f.feed.liveCount(domain.TableProfiles))
	req.Equal(6, f.feed.openCount())
}

func TestSubscribeMessages_ReplacesPreviousSubscription(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	req.NoError(f.engine.Init(ctx, alice))

	req.NoError(f.engine.SubscribeMessages(ctx))
	req.NoError(f.engine.SubscribeMessages(ctx))
	req.NoError(f.engine.SubscribeProfiles(ctx))

	req.Equal(1, f.feed.liveCount(domain.TableMessages))
	req.Equal(1, f.feed.liveCount(domain.TableProfiles))
}

func TestSubscribe_WithoutSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	req.ErrorIs(f.engine.SubscribeMessages(context.Background()), ErrNoCurrentUser)
	req.ErrorIs(f.engine.SubscribeProfiles(context.Background()), ErrNoCurrentUser)
	req.Zero(f.feed.openCount())
}

func TestReset_ClearsStateAndStopsEverything(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.blocks.edges = []edge{{alice, carol}}
	f.messages.setRows(msg(bob, alice, "hi", 0))
	req.NoError(f.engine.Init(context.Background(), alice))

	var mu sync.Mutex
	var got [][]domain.Message
	f.engine.OnMessagesChanged(func(m []domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m)
	})

	f.engine.Reset()

	req.Empty(f.engine.CurrentUserID())
	req.Equal(domain.RoleStandard, f.engine.Role())
	req.Empty(f.engine.Messages())
	req.Empty(f.engine.Users())
	req.Empty(f.engine.BlockedUsers())
	req.Zero(f.engine.UnreadSendersCount())
	req.Zero(f.feed.liveCount(domain.TableMessages))
	req.Zero(f.feed.liveCount(domain.TableProfiles))

	mu.Lock()
	req.Len(got, 1)
	req.Nil(got[0])
	mu.Unlock()

	touches := f.profiles.touchCount()
	f.clock.Advance(time.Minute)
	req.Equal(touches, f.profiles.touchCount())
}

func TestReset_WithoutSessionIsNoop(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	calls := 0
	f.engine.OnUsersChanged(func([]domain.UserPresence) { calls++ })
	f.engine.Reset()
	f.engine.Reset()

	req.Zero(calls)
	req.Empty(f.engine.CurrentUserID())
}

func TestFetchMessages_DiscardsResultArrivingAfterReset(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.messages.setRows(msg(bob, alice, "for alice", 0))
	req.NoError(f.engine.Init(ctx, alice))

	started := make(chan struct{})
	release := make(chan struct{})
	f.messages.mu.Lock()
	f.messages.beforeList = func(n int) {
		if n == 2 {
			close(started)
			<-release
		}
	}
	f.messages.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.FetchMessages(ctx)
	}()
	<-started

	f.engine.Reset()
	req.NoError(f.engine.Init(ctx, carol))
	close(release)
	<-done

	req.Equal(carol, f.engine.CurrentUserID())
	req.Empty(f.engine.Messages())
}

func TestFetchMessages_KeepsLatestWhenResponsesArriveOutOfOrder(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.messages.setRows(msg(bob, alice, "first", 0))
	req.NoError(f.engine.Init(ctx, alice))

	started := make(chan struct{})
	release := make(chan struct{})
	f.messages.mu.Lock()
	f.messages.beforeList = func(n int) {
		if n == 2 {
			close(started)
			<-release
		}
	}
	f.messages.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.FetchMessages(ctx)
	}()
	<-started

	f.messages.setRows(msg(bob, alice, "first", 0), msg(bob, alice, "second", 0))
	f.engine.FetchMessages(ctx)
	req.Equal([]string{"first", "second"}, contents(f.engine.Messages()))

	close(release)
	<-done
	req.Equal([]string{"first", "second"}, contents(f.engine.Messages()))
}

func TestFetchMessages_ErrorKeepsPreviousSnapshot(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.messages.setRows(msg(bob, alice, "hi", 0))
	req.NoError(f.engine.Init(ctx, alice))

	f.messages.mu.Lock()
	f.messages.listErr = errBackend
	f.messages.mu.Unlock()
	f.engine.FetchMessages(ctx)

	req.Equal([]string{"hi"}, contents(f.engine.Messages()))
}

func TestFetchMessages_WithoutUser(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.engine.FetchMessages(context.Background())
	f.engine.FetchBlockedUsers(context.Background())

	req.Zero(f.messages.callCount())
	req.Zero(f.blocks.callCount())
}

func TestFetchUsers_WorksWithoutSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.engine.FetchUsers(context.Background())

	req.Len(f.engine.Users(), 3)
}

func TestFetchUsers_ErrorKeepsPreviousSnapshot(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.engine.FetchUsers(ctx)

	f.profiles.mu.Lock()
	f.profiles.listErr = errBackend
	f.profiles.mu.Unlock()
	f.engine.FetchUsers(ctx)

	req.Len(f.engine.Users(), 3)
}

func TestSendMessage_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("no current user", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.engine.SendMessage(ctx, bob, "hi"), ErrNoCurrentUser)
		require.Zero(t, f.messages.callCount())
	})

	t.Run("blank content", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.engine.Init(ctx, alice))
		require.ErrorIs(t, f.engine.SendMessage(ctx, bob, "  \t\n"), ErrEmptyMessage)
		require.Empty(t, f.messages.created)
	})

	t.Run("invalid receiver", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.engine.Init(ctx, alice))
		require.ErrorIs(t, f.engine.SendMessage(ctx, "bob", "hi"), ErrInvalidIdentifier)
		require.Empty(t, f.messages.created)
	})

	t.Run("receiver blocked locally", func(t *testing.T) {
		f := newFixture(t)
		f.blocks.edges = []edge{{alice, bob}}
		require.NoError(t, f.engine.Init(ctx, alice))
		calls := f.blocks.callCount()

		require.ErrorIs(t, f.engine.SendMessage(ctx, bob, "hi"), ErrBlockedRecipient)
		require.Empty(t, f.messages.created)
		require.Equal(t, calls, f.blocks.callCount())
	})

	t.Run("sender blocked by receiver", func(t *testing.T) {
		f := newFixture(t)
		f.blocks.edges = []edge{{bob, alice}}
		require.NoError(t, f.engine.Init(ctx, alice))

		require.ErrorIs(t, f.engine.SendMessage(ctx, bob, "hi"), ErrBlockedByRecipient)
		require.Empty(t, f.messages.created)
	})

	t.Run("block check fails", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.engine.Init(ctx, alice))
		f.blocks.mu.Lock()
		f.blocks.existsErr = errBackend
		f.blocks.mu.Unlock()

		err := f.engine.SendMessage(ctx, bob, "hi")
		require.ErrorIs(t, err, errBackend)
		require.Empty(t, f.messages.created)
	})
}

func TestSendMessage_BlockedBetweenCheckAndInsert(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	req.NoError(f.engine.Init(ctx, alice))

	// The remote check passes, the conditional insert then finds the edge.
	f.messages.mu.Lock()
	f.messages.createErr = repository.ErrRecipientBlocked
	f.messages.mu.Unlock()

	req.ErrorIs(f.engine.SendMessage(ctx, bob, "hi"), ErrBlockedByRecipient)
	req.Empty(f.messages.created)
}

func TestSendMessage_CreateFailure(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	req.NoError(f.engine.Init(ctx, alice))

	f.messages.mu.Lock()
	f.messages.createErr = errBackend
	f.messages.mu.Unlock()

	err := f.engine.SendMessage(ctx, bob, "hi")
	req.ErrorIs(err, errBackend)
	req.NotErrorIs(err, ErrBlockedByRecipient)
}

func TestSendMessage_StoresUnreadMessageWithRoleLifetime(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		sender   string
		lifetime time.Duration
		role     domain.Role
	}{
		{alice, time.Hour, domain.RoleStandard},
		{bob, 8 * time.Hour, domain.RoleVIP},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			req.NoError(f.engine.Init(ctx, tt.sender))

			req.NoError(f.engine.SendMessage(ctx, carol, "hello there"))

			req.Len(f.messages.created, 1)
			m := f.messages.created[0]
			req.Equal(tt.sender, m.SenderID)
			req.Equal(carol, m.ReceiverID)
			req.Equal("hello there", m.Content)
			req.False(m.Read)
			req.Equal(tt.role, m.Role)
			req.Equal(epoch, m.CreatedAt)
			req.Equal(epoch.Add(tt.lifetime), m.ExpiresAt)
		})
	}
}

func TestSendMessage_LeavesSnapshotToFeed(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	req.NoError(f.engine.Init(ctx, alice))

	req.NoError(f.engine.SendMessage(ctx, bob, "hi"))
	req.Empty(f.engine.Messages())

	f.feed.Dispatch(messageEvent(domain.ChangeInsert, alice, bob))

	req.Eventually(func() bool {
		return len(f.engine.Messages()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMarkMessagesAsRead(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.messages.setRows(
		msg(bob, alice, "one", 0),
		msg(bob, alice, "two", 0),
		msg(carol, alice, "three", 0),
		msg(alice, bob, "mine", 0),
	)
	req.NoError(f.engine.Init(ctx, alice))
	req.Equal(2, f.engine.UnreadSendersCount())

	req.NoError(f.engine.MarkMessagesAsRead(ctx, bob))

	req.Equal(1, f.engine.UnreadSendersCount())
	for _, m := range f.engine.Messages() {
		if m.SenderID == bob {
			req.True(m.Read)
		}
	}
	// Messages alice sent are untouched.
	req.False(lo.ContainsBy(f.messages.rows, func(m domain.Message) bool {
		return m.SenderID == alice && m.Read
	}))
}

func TestMarkMessagesAsRead_WithoutUser(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	req.NoError(f.engine.MarkMessagesAsRead(context.Background(), bob))
	req.Zero(f.messages.callCount())
}

func TestBlockUser_HidesMessagesAndIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.messages.setRows(
		msg(bob, alice, "from bob", 0),
		msg(alice, bob, "to bob", 0),
		msg(carol, alice, "from carol", 0),
	)
	req.NoError(f.engine.Init(ctx, alice))

	var blockedSnapshots [][]string
	f.engine.OnBlockedChanged(func(ids []string) { blockedSnapshots = append(blockedSnapshots, ids) })

	req.NoError(f.engine.BlockUser(ctx, bob))
	req.NoError(f.engine.BlockUser(ctx, bob))

	req.Equal(1, f.blocks.edgeCount(alice, bob))
	req.Equal(1, f.blocks.creates)
	req.True(f.engine.IsBlocked(bob))
	req.Equal([]string{"from carol"}, contents(f.engine.Messages()))
	req.Len(blockedSnapshots, 2)
	req.Equal([]string{bob}, blockedSnapshots[0])
	// The user list keeps blocked peers.
	req.True(lo.ContainsBy(f.engine.Users(), func(u domain.UserPresence) bool { return u.ID == bob }))
}

func TestBlockUser_SelfAndNoSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	req.NoError(f.engine.BlockUser(ctx, bob))
	req.Zero(f.blocks.callCount())

	req.NoError(f.engine.Init(ctx, alice))
	calls := f.blocks.callCount()
	req.NoError(f.engine.BlockUser(ctx, alice))
	req.Equal(calls, f.blocks.callCount())
	req.Empty(f.engine.BlockedUsers())
}

func TestBlockUser_InvalidIdentifier(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	req.NoError(f.engine.Init(ctx, alice))

	req.ErrorIs(f.engine.BlockUser(ctx, "bob"), ErrInvalidIdentifier)
	req.Zero(f.blocks.creates)
}

func TestUnblockUser_RestoresMessages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.blocks.edges = []edge{{alice, bob}}
	f.messages.setRows(msg(bob, alice, "from bob", 0))
	req.NoError(f.engine.Init(ctx, alice))
	req.Empty(f.engine.Messages())

	req.NoError(f.engine.UnblockUser(ctx, bob))

	req.False(f.engine.IsBlocked(bob))
	req.Zero(f.blocks.edgeCount(alice, bob))
	req.Equal([]string{"from bob"}, contents(f.engine.Messages()))
}

func TestUnblockUser_WithoutEdge(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	req.NoError(f.engine.Init(ctx, alice))
	lists := f.messages.listCount()

	req.NoError(f.engine.UnblockUser(ctx, bob))

	req.Zero(f.blocks.deletes)
	req.Equal(lists, f.messages.listCount())
}

func TestUnblockUser_ReturnsBackendErrors(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.blocks.edges = []edge{{alice, bob}}
	req.NoError(f.engine.Init(ctx, alice))

	f.blocks.mu.Lock()
	f.blocks.deleteErr = errBackend
	f.blocks.mu.Unlock()

	req.ErrorIs(f.engine.UnblockUser(ctx, bob), errBackend)
	req.True(f.engine.IsBlocked(bob))
}

func TestReportUser(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	req.NoError(f.engine.ReportUser(ctx, bob, "spam"))
	req.Zero(f.reports.count())

	req.NoError(f.engine.Init(ctx, alice))
	req.NoError(f.engine.ReportUser(ctx, alice, "myself"))
	req.Zero(f.reports.count())

	req.NoError(f.engine.ReportUser(ctx, bob, "spam"))
	req.Equal(1, f.reports.count())
	req.Equal(alice, f.reports.reports[0].ReporterID)
	req.Equal(bob, f.reports.reports[0].ReportedID)
	req.Equal("spam", f.reports.reports[0].Reason)
}

func TestIdentifiers_AreCaseInsensitive(t *testing.T) {
	const (
		dave = "dddddddd-aaaa-4bbb-8ccc-eeeeeeeeeeee"
		erin = "eeeeeeee-ffff-4aaa-9bbb-cccccccccccc"
	)
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.messages.setRows(msg(bob, dave, "hello", 0))

	req.NoError(f.engine.Init(ctx, strings.ToUpper(dave)))
	req.Equal(dave, f.engine.CurrentUserID())
	req.Equal(1, f.engine.UnreadSendersCount())

	calls := f.blocks.callCount()
	req.NoError(f.engine.BlockUser(ctx, strings.ToUpper(dave)))
	req.Equal(calls, f.blocks.callCount())

	req.NoError(f.engine.BlockUser(ctx, strings.ToUpper(erin)))
	req.Equal(1, f.blocks.edgeCount(dave, erin))
	req.True(f.engine.IsBlocked(strings.ToUpper(erin)))
	req.ErrorIs(f.engine.SendMessage(ctx, strings.ToUpper(erin), "hi"), ErrBlockedRecipient)

	req.NoError(f.engine.ReportUser(ctx, strings.ToUpper(dave), "myself"))
	req.Zero(f.reports.count())

	before := f.messages.listCount()
	f.feed.Dispatch(messageEvent(domain.ChangeInsert, bob, dave))
	req.Eventually(func() bool {
		return f.messages.listCount() > before
	}, time.Second, 5*time.Millisecond)
}

func TestMessageFeed_Relevance(t *testing.T) {
	tests := []struct {
		name    string
		evt     domain.ChangeEvent
		refetch bool
	}{
		{"insert addressed to user", messageEvent(domain.ChangeInsert, bob, alice), true},
		{"insert sent by user", messageEvent(domain.ChangeInsert, alice, bob), true},
		{"update addressed to user", messageEvent(domain.ChangeUpdate, bob, alice), true},
		{"insert between others", messageEvent(domain.ChangeInsert, bob, carol), false},
		{"insert from blocked user", messageEvent(domain.ChangeInsert, carol, alice), false},
		{"delete between others", messageEvent(domain.ChangeDelete, bob, carol), true},
		{"insert without record", domain.ChangeEvent{Table: domain.TableMessages, Kind: domain.ChangeInsert}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			f.blocks.edges = []edge{{alice, carol}}
			req.NoError(f.engine.Init(context.Background(), alice))
			before := f.messages.listCount()

			f.feed.Dispatch(tt.evt)

			if tt.refetch {
				req.Eventually(func() bool {
					return f.messages.listCount() > before
				}, time.Second, 5*time.Millisecond)
				return
			}
			req.Never(func() bool {
				return f.messages.listCount() > before
			}, 100*time.Millisecond, 10*time.Millisecond)
		})
	}
}

func TestProfileFeed_RefreshesUsers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	req.NoError(f.engine.Init(context.Background(), alice))
	before := f.profiles.listCount()

	f.profiles.mu.Lock()
	f.profiles.profiles["55555555-5555-5555-5555-555555555555"] = domain.Profile{
		ID:       "55555555-5555-5555-5555-555555555555",
		Nickname: lo.ToPtr("dave"),
	}
	f.profiles.mu.Unlock()
	f.feed.Dispatch(domain.ChangeEvent{Table: domain.TableProfiles, Kind: domain.ChangeInsert})

	req.Eventually(func() bool {
		return f.profiles.listCount() > before && len(f.engine.Users()) == 4
	}, time.Second, 5*time.Millisecond)
}

func TestFeedEvents_IgnoredAfterReset(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	req.NoError(f.engine.Init(context.Background(), alice))
	f.engine.Reset()
	before := f.messages.listCount()

	f.feed.Dispatch(messageEvent(domain.ChangeInsert, bob, alice))

	req.Never(func() bool {
		return f.messages.listCount() > before
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestHeartbeat_TouchesPresenceAndRefreshesUsers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, WithHeartbeatInterval(15*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req.NoError(f.engine.Init(context.Background(), alice))
	req.Equal(1, f.profiles.touchCount())
	lists := f.profiles.listCount()

	req.NoError(f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(15 * time.Second)

	req.Eventually(func() bool {
		return f.profiles.touchCount() == 2 && f.profiles.listCount() > lists
	}, time.Second, 5*time.Millisecond)

	f.profiles.mu.Lock()
	last := f.profiles.touches[1]
	f.profiles.mu.Unlock()
	req.Equal(epoch.Add(15*time.Second), last)
}

func TestObservers_Unregister(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	remove := f.engine.OnUsersChanged(func([]domain.UserPresence) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})

	f.engine.FetchUsers(ctx)
	remove()
	f.engine.FetchUsers(ctx)

	mu.Lock()
	defer mu.Unlock()
	req.Equal(1, calls)
}

func TestSnapshotsAreCopies(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.messages.setRows(msg(bob, alice, "hi", 0))
	req.NoError(f.engine.Init(context.Background(), alice))

	snapshot := f.engine.Messages()
	snapshot[0].Content = "changed"

	req.Equal("hi", f.engine.Messages()[0].Content)
}

func TestCountUnreadSenders(t *testing.T) {
	read := msg(carol, alice, "read", 0)
	read.Read = true
	self := msg(alice, alice, "note", 0)

	tests := []struct {
		name     string
		messages []domain.Message
		userID   string
		want     int
	}{
		{"no user", []domain.Message{msg(bob, alice, "a", 0)}, "", 0},
		{"empty", nil, alice, 0},
		{"distinct senders", []domain.Message{msg(bob, alice, "a", 0), msg(bob, alice, "b", 0), msg(carol, alice, "c", 0)}, alice, 2},
		{"read ignored", []domain.Message{read}, alice, 0},
		{"outgoing ignored", []domain.Message{msg(alice, bob, "a", 0)}, alice, 0},
		{"self ignored", []domain.Message{self}, alice, 0},
		{"mixed", []domain.Message{msg(bob, alice, "a", 0), msg(bob, alice, "b", 0), read, msg(alice, bob, "c", 0)}, alice, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CountUnreadSenders(tt.messages, tt.userID))
		})
	}
}
