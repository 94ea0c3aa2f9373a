package chat

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type refreshKind uint8

const (
	refreshBlocked refreshKind = 1 << iota
	refreshMessages
	refreshUsers
)

func (k refreshKind) has(other refreshKind) bool {
	return k&other != 0
}

// scheduler collapses refresh requests arriving within window into a single
// run. Feed events and heartbeat ticks go through it; user actions fetch directly.
type scheduler struct {
	clock  clockwork.Clock
	window time.Duration
	ctx    context.Context
	run    func(ctx context.Context, kinds refreshKind)

	mu        sync.Mutex
	pending   refreshKind
	scheduled bool
	timer     clockwork.Timer
	stopped   bool
}

func newScheduler(ctx context.Context, clock clockwork.Clock, window time.Duration, run func(context.Context, refreshKind)) *scheduler {
	return &scheduler{
		clock:  clock,
		window: window,
		ctx:    ctx,
		run:    run,
	}
}

func (s *scheduler) Request(kinds refreshKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending |= kinds
	if s.scheduled {
		return
	}
	s.scheduled = true
	if s.window <= 0 {
		go s.flush()
		return
	}
	s.timer = s.clock.AfterFunc(s.window, s.flush)
}

func (s *scheduler) flush() {
	s.mu.Lock()
	kinds := s.pending
	s.pending = 0
	s.scheduled = false
	s.timer = nil
	stopped := s.stopped
	s.mu.Unlock()

	if stopped || kinds == 0 {
		return
	}
	s.run(s.ctx, kinds)
}

func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.pending = 0
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
