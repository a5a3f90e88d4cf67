package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/mozilla-ai/lumigator/pkg/metrics"
	"go.uber.org/zap"
)

type supervisedTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor runs background tasks outside of any request. Each task gets its own context
// derived from the supervisor root context and is identified by a key.
type Supervisor struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	tasks  map[string]*supervisedTask
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
}

func NewSupervisor(ctx context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		tasks:  map[string]*supervisedTask{},
		log:    zap.S().Named("supervisor"),
	}
}

// Go starts fn unless a task with the same id is running. A panic in fn is recovered and logged.
func (s *Supervisor) Go(id string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return fmt.Errorf("supervisor is shut down")
	}
	if _, found := s.tasks[id]; found {
		return fmt.Errorf("task %s is already running", id)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &supervisedTask{cancel: cancel, done: make(chan struct{})}
	s.tasks[id] = t
	metrics.UpdateSupervisorTasksMetric(len(s.tasks))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.remove(id, t)
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorw("task panicked", "task", id, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn(ctx)
	}()
	return nil
}

func (s *Supervisor) remove(id string, t *supervisedTask) {
	t.cancel()
	close(t.done)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[id] == t {
		delete(s.tasks, id)
	}
	metrics.UpdateSupervisorTasksMetric(len(s.tasks))
}

func (s *Supervisor) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.tasks[id]
	return found
}

// Cancel cancels the task and waits for it to return. It reports whether the task was running.
func (s *Supervisor) Cancel(id string) bool {
	s.mu.Lock()
	t, found := s.tasks[id]
	s.mu.Unlock()
	if !found {
		return false
	}

	t.cancel()
	<-t.done
	return true
}

// Wait blocks until every task has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Shutdown cancels every task and waits for them until ctx is done.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
