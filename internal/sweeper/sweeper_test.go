package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizbot/pkg/logx"
)

type stubStore struct {
	calls   int
	gotNow  time.Time
	deleted int64
	err     error
}

func (s *stubStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	s.calls++
	s.gotNow = now
	return s.deleted, s.err
}

func (s *stubStore) CountUsers(ctx context.Context) (int64, error)   { return 7, nil }
func (s *stubStore) CountQuizzes(ctx context.Context) (int64, error) { return 3, nil }

func TestSweepUsesInjectedClock(t *testing.T) {
	t.Parallel()
	st := &stubStore{deleted: 3}
	sw := New(Config{}, st, logx.Nop())
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sw.SetClock(func() time.Time { return fixed })

	sw.Sweep(context.Background())

	if st.calls != 1 {
		t.Fatalf("calls = %d, want 1", st.calls)
	}
	if !st.gotNow.Equal(fixed) {
		t.Fatalf("now = %v, want %v", st.gotNow, fixed)
	}
}

func TestSweepStoreErrorDoesNotPanic(t *testing.T) {
	t.Parallel()
	st := &stubStore{err: errors.New("db locked")}
	sw := New(Config{}, st, logx.Nop())
	sw.Sweep(context.Background())
	if st.calls != 1 {
		t.Fatalf("calls = %d, want 1", st.calls)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	sw := New(Config{Schedule: "not a schedule"}, &stubStore{}, logx.Nop())
	if err := sw.Start(); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	sw := New(Config{}, &stubStore{}, logx.Nop())
	if err := sw.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sw.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
