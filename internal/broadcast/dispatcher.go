package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	kit "quizbot/internal/transport"
	"quizbot/pkg/logx"
)

// Dispatcher executes Jobs. It is stateless between jobs and safe to reuse.
type Dispatcher struct {
	cfg    Config
	sender Sender
	log    logx.Logger

	// sleep is swappable so tests can run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(cfg Config, sender Sender, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		cfg:    cfg.withDefaults(),
		sender: sender,
		log:    log,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// tally owns the running counters and the capped diagnostic list. All
// mutation goes through its mutex; sends only report terminal outcomes.
type tally struct {
	mu     sync.Mutex
	sent   int
	failed int
	diags  []string
	cap    int
}

func (t *tally) ok() {
	t.mu.Lock()
	t.sent++
	t.mu.Unlock()
}

func (t *tally) fail(detail string) {
	t.mu.Lock()
	t.failed++
	if detail != "" && len(t.diags) < t.cap {
		t.diags = append(t.diags, detail)
	}
	t.mu.Unlock()
}

func (t *tally) snapshot() (sent, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent, t.failed
}

// Run dispatches the job and blocks until every recipient has a terminal
// outcome. It never returns an error: individual failures are accounted in
// the Report, and a send panic is downgraded to a failure for that
// recipient only. onProgress (optional) fires after every batch barrier.
func (d *Dispatcher) Run(ctx context.Context, job Job, onProgress func(Progress)) Report {
	start := time.Now()
	total := len(job.Recipients)
	t := &tally{cap: d.cfg.MaxDiagnostics}

	d.log.Info("broadcast started",
		logx.Int("total", total),
		logx.Int("batch_size", d.cfg.BatchSize),
		logx.Int("concurrency", d.cfg.Concurrency))

	sem := make(chan struct{}, d.cfg.Concurrency)

	for off := 0; off < total; off += d.cfg.BatchSize {
		end := off + d.cfg.BatchSize
		if end > total {
			end = total
		}

		// Batch barrier: every send in [off, end) resolves — retries
		// included — before the next batch starts.
		var wg sync.WaitGroup
		for _, id := range job.Recipients[off:end] {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				if detail, ok := d.sendOne(ctx, id, job.Source); ok {
					t.ok()
				} else {
					t.fail(detail)
				}
			}(id)
		}
		wg.Wait()

		sent, failed := t.snapshot()
		processed := end
		pct := processed * 100 / total
		if pct > 100 {
			pct = 100
		}
		if onProgress != nil {
			onProgress(Progress{Processed: processed, Total: total, Percent: pct, Sent: sent, Failed: failed})
		}
		d.log.Debug("broadcast batch done",
			logx.Int("processed", processed), logx.Int("sent", sent), logx.Int("failed", failed))

		// Deliberate throttle between batches, independent of per-send
		// flood handling.
		if end < total {
			if err := d.sleep(ctx, d.cfg.BatchPause); err != nil {
				d.log.Warn("broadcast pause interrupted", logx.Err(err))
			}
		}
	}

	sent, failed := t.snapshot()
	rep := Report{
		Total:       total,
		Sent:        sent,
		Failed:      failed,
		Diagnostics: t.diags,
		Took:        time.Since(start),
	}
	if failed > 0 {
		d.log.Warn("broadcast finished with failures",
			logx.Int("total", rep.Total), logx.Int("sent", rep.Sent),
			logx.Int("failed", rep.Failed), logx.Duration("took", rep.Took))
	} else {
		d.log.Info("broadcast finished",
			logx.Int("total", rep.Total), logx.Int("sent", rep.Sent), logx.Duration("took", rep.Took))
	}
	return rep
}

// sendOne delivers to a single recipient. Flood-control responses are
// retried in place after retry_after + FloodExtra, iteratively, holding the
// recipient's concurrency slot so the batch keeps waiting for it. Any other
// error is terminal for this recipient.
func (d *Dispatcher) sendOne(ctx context.Context, id int64, src kit.MessageRef) (detail string, ok bool) {
	retries := 0
	for {
		err := d.copyOnce(ctx, id, src)
		if err == nil {
			return "", true
		}

		rl, isRL := kit.AsRateLimited(err)
		if !isRL {
			return fmt.Sprintf("%d: %v", id, err), false
		}

		retries++
		if d.cfg.MaxRetries > 0 && retries > d.cfg.MaxRetries {
			return fmt.Sprintf("%d: still rate limited after %d retries", id, d.cfg.MaxRetries), false
		}

		delay := rl.RetryAfter + d.cfg.FloodExtra
		d.log.Debug("send rate limited; retrying",
			logx.Int64("recipient", id),
			logx.Duration("delay", delay),
			logx.Int("retry", retries))
		if serr := d.sleep(ctx, delay); serr != nil {
			return fmt.Sprintf("%d: %v", id, serr), false
		}
	}
}

// copyOnce performs a single transport call, downgrading panics to errors so
// one bad recipient can never abort the whole job.
func (d *Dispatcher) copyOnce(ctx context.Context, id int64, src kit.MessageRef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panic: %v", r)
		}
	}()
	return d.sender.Copy(ctx, kit.ChatTarget{ChatID: id}, src)
}
