package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mama165/sdk-go/logs"
	"github.com/vedran77/blink/internal/auth"
	"github.com/vedran77/blink/internal/config"
	"github.com/vedran77/blink/internal/database"
	"github.com/vedran77/blink/internal/identity"
	postgresrepo "github.com/vedran77/blink/internal/repository/postgres"
)

const sessionTokenTTL = time.Hour

// env is what every command needs: configuration, a logger and the local
// device identity. Commands that talk to the database call connect.
type env struct {
	cfg      *config.Config
	log      *slog.Logger
	identity *identity.Store

	pool     *pgxpool.Pool
	profiles *postgresrepo.ProfileRepo
	messages *postgresrepo.MessageRepo
	blocks   *postgresrepo.BlockRepo
	reports  *postgresrepo.ReportRepo
}

func loadEnv(opts *RootOptions) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "DEBUG"
	}
	return &env{
		cfg:      cfg,
		log:      logs.GetLoggerFromString(level),
		identity: identity.NewStore(cfg.IdentityFile),
	}, nil
}

func (e *env) connect(ctx context.Context) error {
	pool, err := database.Connect(ctx, e.cfg)
	if err != nil {
		return err
	}
	if err := database.CheckSchema(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	e.pool = pool
	e.profiles = postgresrepo.NewProfileRepo(pool)
	e.messages = postgresrepo.NewMessageRepo(pool)
	e.blocks = postgresrepo.NewBlockRepo(pool)
	e.reports = postgresrepo.NewReportRepo(pool)
	return nil
}

func (e *env) close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

func (e *env) userID() (uuid.UUID, error) {
	id, err := e.identity.LoadOrCreate()
	if err != nil {
		return uuid.Nil, fmt.Errorf("loading identity: %w", err)
	}
	return id, nil
}

// tokens prefers a token handed in through ACCESS_TOKEN and otherwise signs
// one for userID with the shared secret.
func (e *env) tokens(userID uuid.UUID) auth.TokenSource {
	if e.cfg.AccessToken != "" {
		return auth.StaticToken(e.cfg.AccessToken)
	}
	return auth.SessionToken{Issuer: auth.NewIssuer(e.cfg.JWTSecret, sessionTokenTTL), UserID: userID}
}
