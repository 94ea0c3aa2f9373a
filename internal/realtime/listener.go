package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/blink/internal/domain"
)

// Channel is the NOTIFY channel written by the schema triggers.
const Channel = "blink_changes"

const reconnectDelay = 2 * time.Second

// Listener is a Feed backed by Postgres LISTEN/NOTIFY on a dedicated connection.
type Listener struct {
	*Registry
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewListener(pool *pgxpool.Pool, log *slog.Logger) *Listener {
	return &Listener{
		Registry: NewRegistry(),
		pool:     pool,
		log:      log,
	}
}

func (l *Listener) Subscribe(_ context.Context, table string, h Handler) (Subscription, error) {
	id, _ := l.Add(table, h)
	return NewSubscription(func() { l.Remove(table, id) }), nil
}

// Run holds a LISTEN connection until ctx is done, reconnecting after failures.
// Notifications sent while disconnected are lost; subscribers refetch on the
// next event.
func (l *Listener) Run(ctx context.Context) error {
	l.log.Info("Starting change listener", "channel", Channel)
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Warn("Change listener disconnected", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		evt, err := DecodeNotification(n.Payload)
		if err != nil {
			l.log.Error("Dropping malformed notification", "error", err)
			continue
		}
		l.Dispatch(evt)
	}
}

// DecodeNotification parses a trigger payload into a ChangeEvent.
func DecodeNotification(payload string) (domain.ChangeEvent, error) {
	var evt domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decoding notification: %w", err)
	}
	if evt.Table == "" {
		return domain.ChangeEvent{}, fmt.Errorf("decoding notification: missing table")
	}
	switch evt.Kind {
	case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
	default:
		return domain.ChangeEvent{}, fmt.Errorf("decoding notification: unknown type %q", evt.Kind)
	}
	return evt, nil
}
