package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/repository"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) ListForUser(ctx context.Context, userID string, now time.Time) ([]domain.Message, error) {
	query := `
		SELECT id, sender_id::text, receiver_id::text, content, created_at, expires_at, role, read
		FROM messages
		WHERE (sender_id = $1::uuid OR receiver_id = $1::uuid) AND expires_at > $2
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(
			&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content,
			&msg.CreatedAt, &msg.ExpiresAt, &role, &msg.Read,
		); err != nil {
			return nil, err
		}
		msg.Role = domain.ParseRole(role)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Create inserts msg unless the receiver has blocked the sender, in which
// case it returns repository.ErrRecipientBlocked.
func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at, expires_at, role, read)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text, $5::timestamptz, $6::timestamptz, $7::text, $8::boolean
		WHERE NOT EXISTS (
			SELECT 1 FROM blocks WHERE blocker_id = $3::uuid AND blocked_id = $2::uuid
		)`
	tag, err := r.pool.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content,
		msg.CreatedAt, msg.ExpiresAt, string(msg.Role), msg.Read,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrRecipientBlocked
	}
	return nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	query := `
		UPDATE messages SET read = true
		WHERE sender_id = $1::uuid AND receiver_id = $2::uuid AND read = false`
	tag, err := r.pool.Exec(ctx, query, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
