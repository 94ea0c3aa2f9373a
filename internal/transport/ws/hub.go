package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vedran77/blink/internal/domain"
)

// Hub tracks connected clients and relays change events to them.
type Hub struct {
	clients map[*Client]struct{}
	log     *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	stopped    chan struct{}
}

type broadcastMsg struct {
	table string
	data  []byte
	// audience, when set, limits delivery to these users.
	audience []uuid.UUID
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		stopped:    make(chan struct{}),
	}
}

// Run is the Hub's event loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return nil

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.log.Info("Realtime client connected", "user_id", client.userID, "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Info("Realtime client disconnected", "user_id", client.userID, "total", len(h.clients))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.IsSubscribed(msg.table) || !msg.reaches(client.userID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full - disconnect
					h.log.Warn("Dropping slow realtime client", "user_id", client.userID)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// drop stops c's write pump; send stays open so late pongs never panic.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.done)
}

// Publish relays a change to subscribed clients. Message rows go only to
// their sender and receiver, block rows only to the blocker; profile rows go
// to every subscriber.
func (h *Hub) Publish(evt domain.ChangeEvent) {
	payload, err := NewEvent(EventTypeChange, evt)
	if err != nil {
		h.log.Error("Encoding change event failed", "error", err)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("Encoding change event failed", "error", err)
		return
	}

	msg := &broadcastMsg{table: evt.Table, data: data}
	switch evt.Table {
	case domain.TableMessages:
		msg.audience = messageAudience(evt)
	case domain.TableBlocks:
		msg.audience = blockAudience(evt)
	}
	if msg.audience != nil && len(msg.audience) == 0 {
		h.log.Debug("Change event has no audience", "table", evt.Table, "type", evt.Kind)
		return
	}

	select {
	case h.broadcast <- msg:
	case <-h.stopped:
	}
}

func (m *broadcastMsg) reaches(userID uuid.UUID) bool {
	if m.audience == nil {
		return true
	}
	for _, id := range m.audience {
		if id == userID {
			return true
		}
	}
	return false
}

func messageAudience(evt domain.ChangeEvent) []uuid.UUID {
	var ids []uuid.UUID
	add := func(p domain.MessageParticipants, ok bool) {
		if !ok {
			return
		}
		for _, raw := range []string{p.SenderID, p.ReceiverID} {
			if id, err := uuid.Parse(raw); err == nil {
				ids = append(ids, id)
			}
		}
	}
	add(evt.Participants())
	add(evt.OldParticipants())
	return restricted(ids)
}

// blockAudience is the blocker of the new and old row. The blocked user
// never learns about the edge.
func blockAudience(evt domain.ChangeEvent) []uuid.UUID {
	var ids []uuid.UUID
	for _, raw := range []json.RawMessage{evt.Record, evt.OldRecord} {
		var row struct {
			BlockerID string `json:"blocker_id"`
		}
		if len(raw) == 0 || json.Unmarshal(raw, &row) != nil {
			continue
		}
		if id, err := uuid.Parse(row.BlockerID); err == nil {
			ids = append(ids, id)
		}
	}
	return restricted(ids)
}

// restricted turns an empty audience into a non-nil one, so that reaches
// denies everybody instead of allowing everybody.
func restricted(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
