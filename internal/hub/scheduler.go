package hub

import (
	"context"
	"sync"
	"time"
)

// scheduler runs deferred tasks. Pending timers can be stopped and running
// tasks see their context cancelled on Stop.
type scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	stopped bool
	wg      sync.WaitGroup
}

func newScheduler() *scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &scheduler{
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[*time.Timer]struct{}),
	}
}

// After runs fn once delay has elapsed. It reports false if the scheduler
// has already stopped.
func (s *scheduler) After(delay time.Duration, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	s.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.pending, timer)
		s.mu.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		fn(s.ctx)
	})
	s.pending[timer] = struct{}{}
	return true
}

// Pending is the number of tasks whose timer has not fired yet.
func (s *scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels pending timers and waits for running tasks to return.
func (s *scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	s.stopped = true
	for timer := range s.pending {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.pending, timer)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
