package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/blink/internal/domain"
)

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

func (r *BlockRepo) ListBlocked(ctx context.Context, blockerID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT blocked_id::text FROM blocks WHERE blocker_id = $1::uuid ORDER BY created_at`, blockerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *BlockRepo) Exists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocks WHERE blocker_id = $1::uuid AND blocked_id = $2::uuid)`,
		blockerID, blockedID,
	).Scan(&exists)
	return exists, err
}

func (r *BlockRepo) Create(ctx context.Context, b *domain.Block) error {
	query := `
		INSERT INTO blocks (id, blocker_id, blocked_id, created_at)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, b.ID, b.BlockerID, b.BlockedID, b.CreatedAt)
	return err
}

func (r *BlockRepo) Delete(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM blocks WHERE blocker_id = $1::uuid AND blocked_id = $2::uuid`, blockerID, blockedID)
	return err
}
