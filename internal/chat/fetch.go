package chat

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/pkg/validator"
)

// FetchMessages replaces the message collection with the current user's
// unexpired messages, minus any exchanged with a blocked user. Errors leave
// the previous snapshot in place.
func (e *Engine) FetchMessages(ctx context.Context) {
	userID, gen, seq, ok := e.begin(collMessages, true)
	if !ok {
		return
	}

	now := e.clock.Now()
	rows, err := e.messageRepo.ListForUser(ctx, userID, now)
	if err != nil {
		e.log.Error("Fetching messages failed", "user_id", userID, "error", err)
		return
	}

	var snapshot []domain.Message
	applied := e.commit(collMessages, gen, seq, func() {
		// The block list may have changed while the query was running.
		e.messages = lo.Filter(rows, func(m domain.Message, _ int) bool {
			return !m.Expired(now) &&
				!slices.Contains(e.blocked, m.SenderID) &&
				!slices.Contains(e.blocked, m.ReceiverID)
		})
		snapshot = slices.Clone(e.messages)
	})
	if applied {
		e.messagesObs.notify(snapshot)
	}
}

// FetchUsers replaces the user list with every completed profile, with online
// status derived from last_seen at the current time.
func (e *Engine) FetchUsers(ctx context.Context) {
	_, gen, seq, _ := e.begin(collUsers, false)

	rows, err := e.profileRepo.List(ctx)
	if err != nil {
		e.log.Error("Fetching users failed", "error", err)
		return
	}

	now := e.clock.Now()
	users := lo.FilterMap(rows, func(p domain.Profile, _ int) (domain.UserPresence, bool) {
		if !validator.IsUUID(p.ID) || p.Nickname == nil || *p.Nickname == "" {
			return domain.UserPresence{}, false
		}
		return p.Presence(now), true
	})

	var snapshot []domain.UserPresence
	applied := e.commit(collUsers, gen, seq, func() {
		e.users = users
		snapshot = slices.Clone(users)
	})
	if applied {
		e.usersObs.notify(snapshot)
	}
}

// FetchBlockedUsers replaces the set of users the current user has blocked.
func (e *Engine) FetchBlockedUsers(ctx context.Context) {
	userID, gen, seq, ok := e.begin(collBlocked, true)
	if !ok {
		return
	}

	ids, err := e.blockRepo.ListBlocked(ctx, userID)
	if err != nil {
		e.log.Error("Fetching blocked users failed", "user_id", userID, "error", err)
		return
	}
	ids = lo.Uniq(ids)
	e.log.Debug("Fetched blocked users", "user_id", userID, "count", len(ids))

	var snapshot []string
	applied := e.commit(collBlocked, gen, seq, func() {
		e.blocked = ids
		snapshot = slices.Clone(ids)
	})
	if applied {
		e.blockedObs.notify(snapshot)
	}
}

func (e *Engine) fetchRole(ctx context.Context) {
	userID, gen, seq, ok := e.begin(collRole, true)
	if !ok {
		return
	}

	profile, err := e.profileRepo.GetByID(ctx, userID)
	if err != nil {
		e.log.Error("Fetching role failed", "user_id", userID, "error", err)
		return
	}
	if profile == nil {
		return
	}

	e.commit(collRole, gen, seq, func() {
		e.role = domain.ParseRole(string(profile.Role))
	})
}
