package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/blink/internal/domain"
)

const profileColumns = `id::text, nickname, role, last_seen, gender, age, country_code, interests`

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1::uuid`
	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *ProfileRepo) List(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (r *ProfileRepo) Upsert(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (id, nickname, role, last_seen, gender, age, country_code, interests)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			nickname = EXCLUDED.nickname,
			gender = EXCLUDED.gender,
			age = EXCLUDED.age,
			country_code = EXCLUDED.country_code,
			interests = EXCLUDED.interests`
	role := p.Role
	if role == "" {
		role = domain.RoleStandard
	}
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Nickname, string(role), p.LastSeen, p.Gender, p.Age, p.CountryCode, p.Interests,
	)
	return err
}

func (r *ProfileRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE profiles SET last_seen = $1 WHERE id = $2::uuid`, at, id)
	return err
}

func (r *ProfileRepo) NicknameTaken(ctx context.Context, nickname string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE nickname = $1)`, nickname,
	).Scan(&taken)
	return taken, err
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	var role string
	if err := row.Scan(
		&p.ID, &p.Nickname, &role, &p.LastSeen,
		&p.Gender, &p.Age, &p.CountryCode, &p.Interests,
	); err != nil {
		return nil, err
	}
	p.Role = domain.ParseRole(role)
	return &p, nil
}
