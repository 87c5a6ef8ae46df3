package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizbot/internal/broadcast"
	kit "quizbot/internal/transport"
	"quizbot/pkg/logx"
	"quizbot/pkg/tgui"
)

var (
	// ErrNoReplyTarget: /broadcast was not sent as a reply to the message
	// that should be copied out.
	ErrNoReplyTarget = errors.New("broadcast: no reply target")
	// ErrEmptyRecipients: the user store produced zero recipients.
	ErrEmptyRecipients = errors.New("broadcast: empty recipient set")
	// ErrNoPendingJob: /confirm arrived with nothing staged.
	ErrNoPendingJob = errors.New("broadcast: no pending job")
)

// stageBroadcast snapshots the recipient list and parks the job as pending
// for the admin. Nothing is sent until the job is confirmed.
func (b *Bot) stageBroadcast(ctx context.Context, adminID int64, replyTo *kit.MessageRef) (*broadcast.Job, error) {
	if replyTo == nil {
		return nil, ErrNoReplyTarget
	}
	ids, err := b.store.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrEmptyRecipients
	}
	job := &broadcast.Job{
		Source:     *replyTo,
		Recipients: ids,
		CreatedAt:  time.Now(),
	}
	b.sessions.setPending(adminID, job)
	return job, nil
}

// confirmBroadcast takes the pending job. The transfer is one-shot: a second
// confirm without a fresh /broadcast gets ErrNoPendingJob.
func (b *Bot) confirmBroadcast(adminID int64) (*broadcast.Job, error) {
	job, ok := b.sessions.takePending(adminID)
	if !ok {
		return nil, ErrNoPendingJob
	}
	return job, nil
}

func (b *Bot) cmdBroadcast(ctx context.Context, req *Request) error {
	job, err := b.stageBroadcast(ctx, req.FromID, req.ReplyTo)
	switch {
	case errors.Is(err, ErrNoReplyTarget):
		return req.Reply(ctx, "❌ Reply to the message you want to broadcast with /broadcast.")
	case errors.Is(err, ErrEmptyRecipients):
		return req.Reply(ctx, "❌ There are no registered users to broadcast to.")
	case err != nil:
		return err
	}

	rm := tgui.ConfirmInline("bcast").Markup()
	_, err = req.Adapter.SendText(ctx, req.Chat, fmt.Sprintf(
		"📢 Broadcast staged: the replied message will be copied to %d users.\n\n"+
			"Confirm with /confirm or the button below; /cancel discards it.", len(job.Recipients)),
		&kit.SendOptions{ReplyMarkupAdapter: rm})
	return err
}

// cmdConfirm takes the pending job (one-shot) and runs it in a supervised
// goroutine so the update loop stays responsive during the send.
func (b *Bot) cmdConfirm(ctx context.Context, req *Request) error {
	job, err := b.confirmBroadcast(req.FromID)
	if errors.Is(err, ErrNoPendingJob) {
		return req.Reply(ctx,
			"❌ No broadcast is pending. Stage one by replying to a message with /broadcast.")
	}
	if err != nil {
		return err
	}
	b.startBroadcast(req.Chat, job)
	return nil
}

func (b *Bot) startBroadcast(adminChat kit.ChatTarget, job *broadcast.Job) {
	b.sup.Go("broadcast.run", func(c context.Context) {
		rep := broadcast.NewReporter(b.adapter, adminChat, b.log)
		rep.Begin(c, len(job.Recipients))
		report := b.dispatcher.Run(c, *job, func(p broadcast.Progress) {
			rep.OnBatch(c, p)
		})
		rep.Finish(c, report)
		b.log.Info("broadcast job finished",
			logx.Int("total", report.Total),
			logx.Int("sent", report.Sent),
			logx.Int("failed", report.Failed))
	})
}

// handleBroadcastCallback services the inline confirm/cancel buttons on the
// staged-broadcast preview. Only the owner who staged the job may act on it.
func (b *Bot) handleBroadcastCallback(ctx context.Context, req *Request, action string) error {
	cb := req.Update.Callback
	if !b.isOwner(req.FromID) {
		return req.Adapter.AnswerCallback(ctx, cb.ID, "Not allowed")
	}
	ref := kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}

	switch action {
	case "yes":
		job, ok := b.sessions.takePending(req.FromID)
		if !ok {
			_ = req.Adapter.AnswerCallback(ctx, cb.ID, "Nothing pending")
			return req.Adapter.EditText(ctx, ref, "❌ No broadcast is pending.", nil)
		}
		_ = req.Adapter.AnswerCallback(ctx, cb.ID, "Starting…")
		_ = req.Adapter.EditText(ctx, ref, "📢 Broadcast confirmed.", nil)
		b.startBroadcast(req.Chat, job)
		return nil
	case "no":
		b.sessions.clearPending(req.FromID)
		_ = req.Adapter.AnswerCallback(ctx, cb.ID, "Canceled")
		return req.Adapter.EditText(ctx, ref, "Broadcast canceled; the pending job was discarded.", nil)
	default:
		return req.Adapter.AnswerCallback(ctx, cb.ID, "")
	}
}
