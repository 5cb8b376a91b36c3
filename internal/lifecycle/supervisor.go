// Package lifecycle provides the concurrency glue shared by every
// long-running component (event consumers, the MQTT connection loop, the
// federation sync loop, poller tasks): a Supervisor that starts each as a
// cancellable, independently observable goroutine and waits for every one
// of them to drain on Stop, plus a bounded pool for blocking I/O so a slow
// backend cannot starve the goroutines issuing requests against it.
package lifecycle

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Task is one long-running unit of work. It must return promptly once ctx
// is cancelled, leaving any unacknowledged work for a peer to reclaim
// rather than attempting to finish it.
type Task func(ctx context.Context) error

// Supervisor starts and stops a named set of Tasks together, tracking
// which are currently running and the error (if any) each last exited
// with.
type Supervisor struct {
	mu     sync.Mutex
	tasks  map[string]Task
	cancel map[string]context.CancelFunc
	done   map[string]chan struct{}
	errs   map[string]error
	wg     sync.WaitGroup
	logger *logrus.Entry
}

// NewSupervisor builds an empty Supervisor. Register tasks with Add before
// calling Start.
func NewSupervisor(logger *logrus.Entry) *Supervisor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Supervisor{
		tasks:  make(map[string]Task),
		cancel: make(map[string]context.CancelFunc),
		done:   make(map[string]chan struct{}),
		errs:   make(map[string]error),
		logger: logger.WithField("component", "lifecycle"),
	}
}

// Add registers a task under name. Add must be called before Start; tasks
// added after Start has run are not started until the next Start call.
func (s *Supervisor) Add(name string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = task
}

// Start launches every registered task in its own goroutine, each with a
// context derived from ctx that Stop cancels independently.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, task := range s.tasks {
		if _, running := s.cancel[name]; running {
			continue
		}
		taskCtx, cancel := context.WithCancel(ctx)
		s.cancel[name] = cancel
		done := make(chan struct{})
		s.done[name] = done
		s.wg.Add(1)
		go s.run(name, task, taskCtx, done)
	}
}

func (s *Supervisor) run(name string, task Task, ctx context.Context, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)
	log := s.logger.WithField("task", name)
	log.Info("task started")

	err := task(ctx)

	s.mu.Lock()
	s.errs[name] = err
	delete(s.cancel, name)
	delete(s.done, name)
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("task exited with error")
		return
	}
	log.Info("task stopped")
}

// Stop cancels every running task's context and blocks until all of them
// have returned.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	for _, cancel := range s.cancel {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// StopTask cancels a single named task without affecting the others,
// blocking until it has returned.
func (s *Supervisor) StopTask(name string) {
	s.mu.Lock()
	cancel, ok := s.cancel[name]
	done := s.done[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	<-done
}

// LastError returns the error the named task last exited with, if it has
// ever run and exited.
func (s *Supervisor) LastError(name string) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, ok := s.errs[name]
	return err, ok
}

// Running reports whether the named task is currently executing.
func (s *Supervisor) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cancel[name]
	return ok
}
