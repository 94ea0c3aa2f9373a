package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/blink/internal/domain"
)

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

func (r *ReportRepo) Create(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO reports (id, reporter_id, reported_id, reason, created_at)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		report.ID, report.ReporterID, report.ReportedID, report.Reason, report.CreatedAt,
	)
	return err
}
