package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/repository"
)

// SendMessage stores a new unread message for receiverID. The local snapshot
// is not updated; the change feed or a later fetch brings the message in.
func (e *Engine) SendMessage(ctx context.Context, receiverID, content string) error {
	e.mu.RLock()
	userID, role := e.userID, e.role
	blocked := e.blocked
	e.mu.RUnlock()

	if userID == "" {
		return ErrNoCurrentUser
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	receiverID, err := normalizeID(receiverID)
	if err != nil {
		return err
	}
	if slices.Contains(blocked, receiverID) {
		return ErrBlockedRecipient
	}

	blockedBy, err := e.blockRepo.Exists(ctx, receiverID, userID)
	if err != nil {
		return fmt.Errorf("checking block status: %w", err)
	}
	if blockedBy {
		return ErrBlockedByRecipient
	}

	now := e.clock.Now()
	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   userID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  now,
		ExpiresAt:  now.Add(role.MessageLifetime()),
		Role:       role,
		Read:       false,
	}

	if err := e.messageRepo.Create(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrRecipientBlocked) {
			return ErrBlockedByRecipient
		}
		e.log.Error("Sending message failed", "user_id", userID, "receiver_id", receiverID, "error", err)
		return fmt.Errorf("creating message: %w", err)
	}
	return nil
}

// MarkMessagesAsRead marks everything senderID sent to the current user as
// read, then refreshes messages. Backend errors are logged, not returned.
func (e *Engine) MarkMessagesAsRead(ctx context.Context, senderID string) error {
	userID := e.CurrentUserID()
	if userID == "" {
		return nil
	}
	senderID, err := normalizeID(senderID)
	if err != nil {
		return err
	}

	if _, err := e.messageRepo.MarkRead(ctx, senderID, userID); err != nil {
		e.log.Error("Marking messages as read failed", "user_id", userID, "sender_id", senderID, "error", err)
	}
	e.FetchMessages(ctx)
	return nil
}

// BlockUser adds a block edge from the current user to blockedID if there is
// none yet, then refreshes blocks, messages and users. Blocking yourself does
// nothing. Backend errors are logged, not returned.
func (e *Engine) BlockUser(ctx context.Context, blockedID string) error {
	userID := e.CurrentUserID()
	if userID == "" {
		return nil
	}
	blockedID, err := normalizeID(blockedID)
	if err != nil {
		return err
	}
	if blockedID == userID {
		return nil
	}

	exists, err := e.blockRepo.Exists(ctx, userID, blockedID)
	switch {
	case err != nil:
		e.log.Error("Checking existing block failed", "user_id", userID, "blocked_id", blockedID, "error", err)
	case !exists:
		block := &domain.Block{
			ID:        uuid.New(),
			BlockerID: userID,
			BlockedID: blockedID,
			CreatedAt: e.clock.Now(),
		}
		if err := e.blockRepo.Create(ctx, block); err != nil {
			e.log.Error("Blocking user failed", "user_id", userID, "blocked_id", blockedID, "error", err)
		}
	}

	e.refreshVisibility(ctx)
	return nil
}

// UnblockUser removes the block edge to blockedID. With no edge it returns
// nil without touching the backend again. Backend errors are returned.
func (e *Engine) UnblockUser(ctx context.Context, blockedID string) error {
	userID := e.CurrentUserID()
	if userID == "" {
		return nil
	}
	blockedID, err := normalizeID(blockedID)
	if err != nil {
		return err
	}

	exists, err := e.blockRepo.Exists(ctx, userID, blockedID)
	if err != nil {
		return fmt.Errorf("checking block: %w", err)
	}
	if !exists {
		e.log.Debug("No block to remove", "user_id", userID, "blocked_id", blockedID)
		return nil
	}

	if err := e.blockRepo.Delete(ctx, userID, blockedID); err != nil {
		e.log.Error("Unblocking user failed", "user_id", userID, "blocked_id", blockedID, "error", err)
		return fmt.Errorf("deleting block: %w", err)
	}

	e.refreshVisibility(ctx)
	return nil
}

func (e *Engine) refreshVisibility(ctx context.Context) {
	e.FetchBlockedUsers(ctx)
	e.FetchMessages(ctx)
	e.FetchUsers(ctx)
}

// ReportUser files a report against reportedID. Reporting yourself, or
// reporting without a session, does nothing.
func (e *Engine) ReportUser(ctx context.Context, reportedID, reason string) error {
	userID := e.CurrentUserID()
	if userID == "" {
		return nil
	}
	reportedID, err := normalizeID(reportedID)
	if err != nil {
		return err
	}
	if reportedID == userID {
		return nil
	}

	report := &domain.Report{
		ID:         uuid.New(),
		ReporterID: userID,
		ReportedID: reportedID,
		Reason:     reason,
		CreatedAt:  e.clock.Now(),
	}
	if err := e.reportRepo.Create(ctx, report); err != nil {
		e.log.Error("Reporting user failed", "user_id", userID, "reported_id", reportedID, "error", err)
	}
	return nil
}

// UpdatePresence records now as the current user's last_seen and refreshes users.
func (e *Engine) UpdatePresence(ctx context.Context) {
	if e.CurrentUserID() == "" {
		return
	}
	e.touchPresence(ctx)
	e.FetchUsers(ctx)
}

func (e *Engine) touchPresence(ctx context.Context) {
	userID := e.CurrentUserID()
	if userID == "" {
		return
	}
	if err := e.profileRepo.TouchLastSeen(ctx, userID, e.clock.Now()); err != nil {
		e.log.Warn("Updating presence failed", "user_id", userID, "error", err)
	}
}
