// Package supervisor manages named goroutines tied to a shared context:
// panic recovery, optional restart-on-exit, and timeout-aware waiting.
package supervisor

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"quizbot/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log logx.Logger
	wg  sync.WaitGroup
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{ctx: ctx, cancel: cancel, log: logx.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines.
func (s *Supervisor) Cancel() { s.cancel() }

// Go runs fn in a supervised goroutine. Panics are recovered and logged.
func (s *Supervisor) Go(name string, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.recoverPanic(name)
		fn(s.ctx)
	}()
}

// GoRestart runs fn under a restart loop with backoff. The loop exits when
// the supervisor context is cancelled; a clean return of fn restarts it,
// which suits long-poll loops that may exit unexpectedly.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context), base, max time.Duration) {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max < base {
		max = 10 * time.Second
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		backoff := base
		for {
			if s.ctx.Err() != nil {
				return
			}
			func() {
				defer s.recoverPanic(name)
				fn(s.ctx)
			}()
			if s.ctx.Err() != nil {
				return
			}
			s.log.Warn("supervised goroutine exited; restarting",
				logx.String("name", name), logx.Duration("backoff", backoff))
			t := time.NewTimer(backoff)
			select {
			case <-s.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			backoff *= 2
			if backoff > max {
				backoff = max
			}
		}
	}()
}

// Wait blocks until all goroutines exit or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
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

func (s *Supervisor) recoverPanic(name string) {
	if r := recover(); r != nil {
		s.log.Error("panic in supervised goroutine",
			logx.String("name", name),
			logx.Any("panic", r),
			logx.String("stack", string(debug.Stack())))
	}
}
