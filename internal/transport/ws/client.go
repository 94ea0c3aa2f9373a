package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/blink/internal/domain"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

var knownTables = map[string]struct{}{
	domain.TableProfiles: {},
	domain.TableMessages: {},
	domain.TableBlocks:   {},
}

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	log    *slog.Logger

	// tables tracks which change streams this client listens to.
	tables map[string]struct{}
	mu     sync.RWMutex

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		log:    hub.log.With("user_id", userID),
		tables: make(map[string]struct{}),
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) IsSubscribed(table string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[table]
	return ok
}

func (c *Client) Subscribe(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table] = struct{}{}
}

func (c *Client) Unsubscribe(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, table)
}

// ReadPump reads client events until the connection drops.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.log.Debug("Realtime client disconnected")
			} else {
				c.log.Warn("Realtime read failed", "error", err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes queued events to the connection and keeps it alive with pings.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Warn("Realtime write failed", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.log.Warn("Realtime ping failed", "error", err)
				return
			}

		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeSubscribe, EventTypeUnsubscribe:
		var p TablePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid "+event.Type+" payload")
			return
		}
		if _, ok := knownTables[p.Table]; !ok {
			c.sendError("UNKNOWN_TABLE", "unknown table: "+p.Table)
			return
		}
		if event.Type == EventTypeSubscribe {
			c.Subscribe(p.Table)
		} else {
			c.Unsubscribe(p.Table)
		}
		c.log.Debug("Realtime subscription changed", "type", event.Type, "table", p.Table)

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong})
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
