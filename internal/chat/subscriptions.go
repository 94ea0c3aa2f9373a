package chat

import (
	"context"
	"slices"

	"github.com/vedran77/blink/internal/domain"
)

// SubscribeMessages (re)opens the messages subscription of the current
// session, replacing any previous one.
func (e *Engine) SubscribeMessages(ctx context.Context) error {
	sess := e.currentSession()
	if sess == nil {
		return ErrNoCurrentUser
	}

	sub, err := e.feed.Subscribe(ctx, domain.TableMessages, func(evt domain.ChangeEvent) {
		if e.messageEventRelevant(evt) {
			sess.scheduler.Request(refreshMessages)
		}
	})
	if err != nil {
		return err
	}

	sess.replace(&sess.messagesSub, sub)
	return nil
}

// SubscribeProfiles (re)opens the profiles subscription. Every profile change
// refreshes the user list.
func (e *Engine) SubscribeProfiles(ctx context.Context) error {
	sess := e.currentSession()
	if sess == nil {
		return ErrNoCurrentUser
	}

	sub, err := e.feed.Subscribe(ctx, domain.TableProfiles, func(domain.ChangeEvent) {
		sess.scheduler.Request(refreshUsers)
	})
	if err != nil {
		return err
	}

	sess.replace(&sess.profilesSub, sub)
	return nil
}

// messageEventRelevant decides whether a messages change warrants a refetch:
// deletes always do, otherwise the new row must involve the current user and
// no blocked peer.
func (e *Engine) messageEventRelevant(evt domain.ChangeEvent) bool {
	if evt.Kind == domain.ChangeDelete {
		return true
	}
	p, ok := evt.Participants()
	if !ok {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.userID == "" {
		return false
	}
	relevant := p.SenderID == e.userID || p.ReceiverID == e.userID
	fromBlocked := slices.Contains(e.blocked, p.SenderID) || slices.Contains(e.blocked, p.ReceiverID)
	return relevant && !fromBlocked
}
