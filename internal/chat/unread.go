package chat

import (
	"github.com/samber/lo"
	"github.com/vedran77/blink/internal/domain"
)

// UnreadSendersCount is the number of distinct users with at least one unread
// message to the current user.
func (e *Engine) UnreadSendersCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return CountUnreadSenders(e.messages, e.userID)
}

// CountUnreadSenders counts distinct senders of unread messages addressed to
// userID, ignoring messages userID sent to themselves.
func CountUnreadSenders(messages []domain.Message, userID string) int {
	if userID == "" {
		return 0
	}
	senders := lo.FilterMap(messages, func(m domain.Message, _ int) (string, bool) {
		return m.SenderID, m.ReceiverID == userID && !m.Read && m.SenderID != userID
	})
	return len(lo.Uniq(senders))
}
