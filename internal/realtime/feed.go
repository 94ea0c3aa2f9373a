// Package realtime delivers row-level change notifications per table.
package realtime

import (
	"context"
	"sync"

	"github.com/vedran77/blink/internal/domain"
)

type Handler func(domain.ChangeEvent)

// Feed opens change subscriptions. Delivery is at least once: handlers must
// tolerate duplicates.
type Feed interface {
	Subscribe(ctx context.Context, table string, h Handler) (Subscription, error)
}

type Subscription interface {
	Unsubscribe()
}

// Registry keeps table -> handler bindings and fans events out to them.
// Feed implementations embed it.
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]map[uint64]Handler)}
}

// Add registers h for table. first is true when table had no handlers before.
func (r *Registry) Add(table string, h Handler) (id uint64, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	hs, ok := r.handlers[table]
	if !ok {
		hs = make(map[uint64]Handler)
		r.handlers[table] = hs
	}
	hs[r.nextID] = h
	return r.nextID, len(hs) == 1
}

// Remove drops a binding. last is true when table has no handlers left.
func (r *Registry) Remove(table string, id uint64) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs, ok := r.handlers[table]
	if !ok {
		return false
	}
	if _, ok := hs[id]; !ok {
		return false
	}
	delete(hs, id)
	if len(hs) == 0 {
		delete(r.handlers, table)
		return true
	}
	return false
}

// Tables lists tables that currently have at least one handler.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tables := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		tables = append(tables, t)
	}
	return tables
}

// Dispatch calls every handler registered for the event's table.
func (r *Registry) Dispatch(evt domain.ChangeEvent) {
	r.mu.RLock()
	hs := make([]Handler, 0, len(r.handlers[evt.Table]))
	for _, h := range r.handlers[evt.Table] {
		hs = append(hs, h)
	}
	r.mu.RUnlock()

	for _, h := range hs {
		h(evt)
	}
}

type subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps cancel so that it runs at most once.
func NewSubscription(cancel func()) Subscription {
	return &subscription{cancel: cancel}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
