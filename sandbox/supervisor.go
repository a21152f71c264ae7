package sandbox

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"roomkit/errors"
)

const restartDelay = 200 * time.Millisecond

// Worker is a supervised unit of work. Workers don't protect
// themselves; the supervisor recovers their panics and restarts them.
type Worker interface {
	Run(ctx context.Context) error
}

// workerName resolves a worker's type name for logs, so workers don't
// have to carry a naming method.
func workerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// supervisor runs workers in goroutines, restarting any that crash or
// panic until the context is canceled. A failure in one worker never
// stops the others.
type supervisor struct {
	log *slog.Logger
	wg  sync.WaitGroup
}

func newSupervisor(log *slog.Logger) *supervisor {
	return &supervisor{log: log}
}

// Start runs one worker under supervision. A worker returning nil
// terminated properly and is never restarted; an error or a panic
// schedules a restart after a short delay.
func (s *supervisor) Start(ctx context.Context, worker Worker) {
	s.wg.Add(1)
	name := workerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info("stopping worker", "name", name)
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.New(errors.KindInternal, "run worker", "worker %s panicked: %v", name, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				s.log.Info("worker finished", "name", name)
				return
			}
			if ctx.Err() != nil {
				s.log.Info("worker stopped", "name", name)
				return
			}

			s.log.Warn("worker crashed, restarting", "name", name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(restartDelay):
			}
		}
	}()
}

// Wait blocks until every supervised worker has exited.
func (s *supervisor) Wait() {
	s.wg.Wait()
}
