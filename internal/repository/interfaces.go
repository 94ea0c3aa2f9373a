package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vedran77/blink/internal/domain"
)

// ErrRecipientBlocked is returned by MessageRepository.Create when the receiver
// has blocked the sender. The check happens in the same statement as the insert.
var ErrRecipientBlocked = errors.New("recipient has blocked the sender")

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	List(ctx context.Context) ([]domain.Profile, error)
	Upsert(ctx context.Context, profile *domain.Profile) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	NicknameTaken(ctx context.Context, nickname string) (bool, error)
}

type MessageRepository interface {
	// ListForUser returns unexpired messages sent or received by userID, oldest first.
	ListForUser(ctx context.Context, userID string, now time.Time) ([]domain.Message, error)
	Create(ctx context.Context, msg *domain.Message) error
	MarkRead(ctx context.Context, senderID, receiverID string) (int64, error)
}

type BlockRepository interface {
	ListBlocked(ctx context.Context, blockerID string) ([]string, error)
	Exists(ctx context.Context, blockerID, blockedID string) (bool, error)
	Create(ctx context.Context, block *domain.Block) error
	Delete(ctx context.Context, blockerID, blockedID string) error
}

type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
}
