package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	kit "quizbot/internal/transport"
	"quizbot/pkg/logx"
)

// scriptedSender returns, per recipient, a scripted sequence of outcomes and
// instruments in-flight concurrency.
type scriptedSender struct {
	mu       sync.Mutex
	scripts  map[int64][]error // consumed front to back; empty/missing = success
	attempts map[int64]int
	events   []string

	inFlight    int
	maxInFlight int
	holdFor     time.Duration
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{
		scripts:  map[int64][]error{},
		attempts: map[int64]int{},
	}
}

func (s *scriptedSender) script(id int64, outcomes ...error) {
	s.scripts[id] = outcomes
}

func (s *scriptedSender) Copy(ctx context.Context, to kit.ChatTarget, src kit.MessageRef) error {
	s.mu.Lock()
	s.attempts[to.ChatID]++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.events = append(s.events, fmt.Sprintf("start:%d", to.ChatID))
	var err error
	if q := s.scripts[to.ChatID]; len(q) > 0 {
		err, s.scripts[to.ChatID] = q[0], q[1:]
	}
	hold := s.holdFor
	s.mu.Unlock()

	if hold > 0 {
		time.Sleep(hold)
	}

	s.mu.Lock()
	s.inFlight--
	s.events = append(s.events, fmt.Sprintf("done:%d", to.ChatID))
	s.mu.Unlock()
	return err
}

func (s *scriptedSender) attemptCount(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[id]
}

// fakeSleep records requested delays and returns immediately.
type fakeSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeSleep) sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	return nil
}

func newTestDispatcher(cfg Config, s Sender) (*Dispatcher, *fakeSleep) {
	d := NewDispatcher(cfg, s, logx.Nop())
	fs := &fakeSleep{}
	d.sleep = fs.sleep
	return d, fs
}

func idRange(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

func rateLimited(after time.Duration) error {
	return &kit.RateLimitedError{RetryAfter: after}
}

func TestRunAccountsEveryRecipient(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 3, 49, 50, 51, 120, 237} {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()
			sender := newScriptedSender()
			// Sprinkle some permanent failures.
			for i := int64(1); i <= int64(n); i += 7 {
				sender.script(i, errors.New("blocked"))
			}
			d, _ := newTestDispatcher(Config{}, sender)

			rep := d.Run(context.Background(), Job{Recipients: idRange(n)}, nil)
			if rep.Total != n {
				t.Fatalf("Total = %d, want %d", rep.Total, n)
			}
			if rep.Sent+rep.Failed != n {
				t.Fatalf("Sent(%d)+Failed(%d) != %d", rep.Sent, rep.Failed, n)
			}
		})
	}
}

func TestConcurrencyCeiling(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	sender.holdFor = 2 * time.Millisecond
	// Mix in flood-control responses so retries are in the mix too.
	sender.script(10, rateLimited(time.Second))
	sender.script(20, rateLimited(time.Second), rateLimited(time.Second))
	sender.script(30, errors.New("chat not found"))
	d, _ := newTestDispatcher(Config{}, sender)

	d.Run(context.Background(), Job{Recipients: idRange(200)}, nil)

	if sender.maxInFlight > 5 {
		t.Fatalf("maxInFlight = %d, want <= 5", sender.maxInFlight)
	}
	if sender.maxInFlight < 2 {
		t.Fatalf("maxInFlight = %d; sends never overlapped, stub is broken", sender.maxInFlight)
	}
}

func TestBatchBarrier(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	sender.holdFor = time.Millisecond
	// Recipient 1 is the slowest task of batch 1: two flood retries.
	sender.script(1, rateLimited(time.Second), rateLimited(time.Second))
	d, _ := newTestDispatcher(Config{}, sender)

	rep := d.Run(context.Background(), Job{Recipients: idRange(120)}, nil)
	if rep.Sent != 120 {
		t.Fatalf("Sent = %d, want 120", rep.Sent)
	}

	// No task from batch 2 (ids 51..100) may start before every batch-1 task
	// (ids 1..50, retries included) is done.
	sender.mu.Lock()
	events := append([]string(nil), sender.events...)
	sender.mu.Unlock()

	lastBatch1Done := -1
	firstBatch2Start := len(events)
	for i, ev := range events {
		var id int64
		if strings.HasPrefix(ev, "done:") {
			fmt.Sscanf(ev, "done:%d", &id)
			if id <= 50 && i > lastBatch1Done {
				lastBatch1Done = i
			}
		} else {
			fmt.Sscanf(ev, "start:%d", &id)
			if id > 50 && id <= 100 && i < firstBatch2Start {
				firstBatch2Start = i
			}
		}
	}
	if firstBatch2Start < lastBatch1Done {
		t.Fatalf("batch 2 started (event %d) before batch 1 fully resolved (event %d)",
			firstBatch2Start, lastBatch1Done)
	}
}

func TestRateLimitRetryDelayAndOutcome(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	sender.script(1, rateLimited(2*time.Second)) // then success
	d, fs := newTestDispatcher(Config{}, sender)

	rep := d.Run(context.Background(), Job{Recipients: []int64{1}}, nil)

	if got := sender.attemptCount(1); got != 2 {
		t.Fatalf("attempts = %d, want 2 (one retry per signal)", got)
	}
	// Single batch, so the only sleep is the retry delay: retry_after + 500ms.
	fs.mu.Lock()
	delays := append([]time.Duration(nil), fs.delays...)
	fs.mu.Unlock()
	if len(delays) != 1 || delays[0] != 2500*time.Millisecond {
		t.Fatalf("delays = %v, want [2.5s]", delays)
	}
	// The outcome reflects the retry's result, not the original rejection.
	if rep.Sent != 1 || rep.Failed != 0 {
		t.Fatalf("report = %+v, want sent=1 failed=0", rep)
	}
}

func TestScenarioRetriedRecipientSucceeds(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	sender.script(2, rateLimited(time.Second)) // B: limited once, then success
	d, _ := newTestDispatcher(Config{}, sender)

	rep := d.Run(context.Background(), Job{Recipients: []int64{1, 2, 3}}, nil)
	if rep.Sent != 3 || rep.Failed != 0 {
		t.Fatalf("report = %+v, want sent=3 failed=0", rep)
	}
}

func TestScenarioPermanentFailureIsRecorded(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	sender.script(1, errors.New("blocked"))
	d, _ := newTestDispatcher(Config{}, sender)

	rep := d.Run(context.Background(), Job{Recipients: []int64{1, 2}}, nil)
	if rep.Sent != 1 || rep.Failed != 1 {
		t.Fatalf("report = %+v, want sent=1 failed=1", rep)
	}
	if len(rep.Diagnostics) != 1 || !strings.Contains(rep.Diagnostics[0], "1:") {
		t.Fatalf("diagnostics = %v, want one entry referencing recipient 1", rep.Diagnostics)
	}
	if got := sender.attemptCount(1); got != 1 {
		t.Fatalf("attempts for failed recipient = %d, want 1 (never retried)", got)
	}
}

func TestDiagnosticsCapped(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	for i := int64(1); i <= 60; i++ {
		sender.script(i, errors.New("blocked"))
	}
	d, _ := newTestDispatcher(Config{}, sender)

	rep := d.Run(context.Background(), Job{Recipients: idRange(60)}, nil)
	if rep.Failed != 60 {
		t.Fatalf("Failed = %d, want 60", rep.Failed)
	}
	if len(rep.Diagnostics) != 20 {
		t.Fatalf("len(Diagnostics) = %d, want cap of 20", len(rep.Diagnostics))
	}
}

func TestRetryCapGivesUp(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	limits := make([]error, 50)
	for i := range limits {
		limits[i] = rateLimited(time.Second)
	}
	sender.script(1, limits...)
	d, fs := newTestDispatcher(Config{MaxRetries: 3}, sender)

	rep := d.Run(context.Background(), Job{Recipients: []int64{1}}, nil)
	if rep.Failed != 1 {
		t.Fatalf("report = %+v, want the capped recipient recorded failed", rep)
	}
	if got := sender.attemptCount(1); got != 4 {
		t.Fatalf("attempts = %d, want 4 (initial + 3 retries)", got)
	}
	fs.mu.Lock()
	n := len(fs.delays)
	fs.mu.Unlock()
	if n != 3 {
		t.Fatalf("retry sleeps = %d, want 3", n)
	}
	if len(rep.Diagnostics) != 1 || !strings.Contains(rep.Diagnostics[0], "rate limited") {
		t.Fatalf("diagnostics = %v, want a rate-limit diagnostic", rep.Diagnostics)
	}
}

func TestProgressSnapshots(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	d, _ := newTestDispatcher(Config{}, sender)

	var snaps []Progress
	var mu sync.Mutex
	d.Run(context.Background(), Job{Recipients: idRange(120)}, func(p Progress) {
		mu.Lock()
		snaps = append(snaps, p)
		mu.Unlock()
	})

	want := []Progress{
		{Processed: 50, Total: 120, Percent: 41, Sent: 50},
		{Processed: 100, Total: 120, Percent: 83, Sent: 100},
		{Processed: 120, Total: 120, Percent: 100, Sent: 120},
	}
	if len(snaps) != len(want) {
		t.Fatalf("got %d snapshots, want %d", len(snaps), len(want))
	}
	for i, w := range want {
		if snaps[i] != w {
			t.Fatalf("snapshot[%d] = %+v, want %+v", i, snaps[i], w)
		}
	}
}

func TestInterBatchPause(t *testing.T) {
	t.Parallel()
	sender := newScriptedSender()
	d, fs := newTestDispatcher(Config{}, sender)

	d.Run(context.Background(), Job{Recipients: idRange(120)}, nil)

	fs.mu.Lock()
	delays := append([]time.Duration(nil), fs.delays...)
	fs.mu.Unlock()
	// 3 batches -> 2 pauses, no trailing pause after the last batch.
	if len(delays) != 2 {
		t.Fatalf("pauses = %v, want exactly 2", delays)
	}
	for _, p := range delays {
		if p != 500*time.Millisecond {
			t.Fatalf("pause = %v, want 500ms", p)
		}
	}
}

type panicSender struct{ scriptedSender }

func (p *panicSender) Copy(ctx context.Context, to kit.ChatTarget, src kit.MessageRef) error {
	if to.ChatID == 2 {
		panic("boom")
	}
	return p.scriptedSender.Copy(ctx, to, src)
}

func TestSendPanicDowngradedToFailure(t *testing.T) {
	t.Parallel()
	sender := &panicSender{scriptedSender: *newScriptedSender()}
	d, _ := newTestDispatcher(Config{}, sender)

	rep := d.Run(context.Background(), Job{Recipients: []int64{1, 2, 3}}, nil)
	if rep.Sent != 2 || rep.Failed != 1 {
		t.Fatalf("report = %+v, want sent=2 failed=1", rep)
	}
	if len(rep.Diagnostics) != 1 || !strings.Contains(rep.Diagnostics[0], "panic") {
		t.Fatalf("diagnostics = %v, want a panic diagnostic for recipient 2", rep.Diagnostics)
	}
}

func TestFormatReportTruncatesSamples(t *testing.T) {
	t.Parallel()
	rep := Report{Total: 10, Sent: 2, Failed: 8}
	for i := 0; i < 8; i++ {
		rep.Diagnostics = append(rep.Diagnostics, fmt.Sprintf("%d: blocked", i))
	}
	out := FormatReport(rep)
	if !strings.Contains(out, "…and 3 more") {
		t.Fatalf("report output missing truncation suffix:\n%s", out)
	}
	if strings.Count(out, "blocked") != 5 {
		t.Fatalf("report should show exactly 5 samples:\n%s", out)
	}
}
