// Package sweeper runs periodic storage maintenance: expired creation tokens
// are deleted in bulk on a cron schedule, emulating a store-side TTL so the
// entitlement resolver never has to garbage-collect tokens itself.
package sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"quizbot/pkg/logx"
)

// Store is the maintenance surface the sweeper needs.
type Store interface {
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountQuizzes(ctx context.Context) (int64, error)
}

type Config struct {
	// Schedule is a cron expression or descriptor. Default "@every 10m".
	Schedule string
	// RunTimeout bounds a single sweep. Default 30s.
	RunTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Schedule == "" {
		c.Schedule = "@every 10m"
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Second
	}
	return c
}

type Sweeper struct {
	cfg   Config
	store Store
	log   logx.Logger

	cron *cron.Cron
	now  func() time.Time
}

func New(cfg Config, store Store, log logx.Logger) *Sweeper {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sweeper{
		cfg:   cfg.withDefaults(),
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, s.runOnce); err != nil {
		return err
	}
	if _, err := c.AddFunc("@daily", s.logStats); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("sweeper started", logx.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()
	s.Sweep(ctx)
}

func (s *Sweeper) logStats() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		s.log.Warn("stats query failed", logx.Err(err))
		return
	}
	quizzes, err := s.store.CountQuizzes(ctx)
	if err != nil {
		s.log.Warn("stats query failed", logx.Err(err))
		return
	}
	s.log.Info("daily stats", logx.Int64("users", users), logx.Int64("quizzes", quizzes))
}

// Sweep deletes all tokens whose expiry is at or before the current time.
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.store.DeleteExpiredTokens(ctx, s.now())
	if err != nil {
		s.log.Warn("token sweep failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("expired tokens deleted", logx.Int64("count", n))
	}
}
