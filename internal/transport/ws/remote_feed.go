package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/vedran77/blink/internal/auth"
	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/realtime"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const redialDelay = 2 * time.Second

// RemoteFeed is a realtime.Feed backed by a relay server's WebSocket endpoint.
// Table subscriptions are sent when the first handler for a table is added and
// withdrawn with the last one, and replayed after every reconnect.
type RemoteFeed struct {
	*realtime.Registry
	endpoint string
	tokens   auth.TokenSource
	log      *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewRemoteFeed(endpoint string, tokens auth.TokenSource, log *slog.Logger) *RemoteFeed {
	return &RemoteFeed{
		Registry: realtime.NewRegistry(),
		endpoint: endpoint,
		tokens:   tokens,
		log:      log,
	}
}

func (f *RemoteFeed) Subscribe(ctx context.Context, table string, h realtime.Handler) (realtime.Subscription, error) {
	id, first := f.Add(table, h)
	if first {
		if err := f.send(ctx, EventTypeSubscribe, table); err != nil {
			f.Remove(table, id)
			return nil, err
		}
	}

	return realtime.NewSubscription(func() {
		if !f.Remove(table, id) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := f.send(ctx, EventTypeUnsubscribe, table); err != nil {
			f.log.Warn("Withdrawing realtime subscription failed", "table", table, "error", err)
		}
	}), nil
}

// send writes a table event if connected. While disconnected it does
// nothing; Run replays subscriptions on connect.
func (f *RemoteFeed) send(ctx context.Context, eventType, table string) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return nil
	}

	evt, err := NewEvent(eventType, TablePayload{Table: table})
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, evt); err != nil {
		return fmt.Errorf("sending %s %s: %w", eventType, table, err)
	}
	return nil
}

// Run keeps a connection open until ctx is done, redialing after failures.
func (f *RemoteFeed) Run(ctx context.Context) error {
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("Realtime connection lost", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redialDelay):
		}
	}
}

func (f *RemoteFeed) session(ctx context.Context) error {
	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	for _, table := range f.Tables() {
		if err := f.send(ctx, EventTypeSubscribe, table); err != nil {
			return err
		}
	}
	f.log.Info("Realtime connected", "endpoint", f.endpoint)

	for {
		var evt Event
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			return err
		}
		f.handle(evt)
	}
}

func (f *RemoteFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := f.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing realtime url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing realtime: %w", err)
	}
	return conn, nil
}

func (f *RemoteFeed) handle(evt Event) {
	switch evt.Type {
	case EventTypeChange:
		var change domain.ChangeEvent
		if err := json.Unmarshal(evt.Payload, &change); err != nil {
			f.log.Error("Dropping malformed change event", "error", err)
			return
		}
		f.Dispatch(change)
	case EventTypeError:
		var p ErrorPayload
		_ = json.Unmarshal(evt.Payload, &p)
		f.log.Warn("Realtime server error", "code", p.Code, "message", p.Message)
	case EventTypePong:
	default:
		f.log.Debug("Ignoring realtime event", "type", evt.Type)
	}
}
