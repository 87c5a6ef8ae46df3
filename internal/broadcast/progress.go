package broadcast

import (
	"context"
	"fmt"
	"strings"

	kit "quizbot/internal/transport"
	"quizbot/pkg/logx"
)

// reportSamples is how many diagnostics the final report shows inline.
const reportSamples = 5

// StatusSink is the slice of the transport the reporter needs: one status
// message that is sent once and then edited in place.
type StatusSink interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error
}

// Reporter turns dispatcher progress into a single live-edited Telegram
// message for the admin who confirmed the broadcast.
type Reporter struct {
	sink StatusSink
	log  logx.Logger

	chat kit.ChatTarget
	ref  kit.MessageRef
	live bool
}

func NewReporter(sink StatusSink, chat kit.ChatTarget, log logx.Logger) *Reporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reporter{sink: sink, log: log, chat: chat}
}

// Begin posts the initial status message. Failure to post is not fatal:
// the broadcast proceeds, only the live progress view is lost.
func (r *Reporter) Begin(ctx context.Context, total int) {
	ref, err := r.sink.SendText(ctx, r.chat,
		fmt.Sprintf("📢 Broadcasting to %d users…", total), nil)
	if err != nil {
		r.log.Warn("progress message send failed", logx.Err(err))
		return
	}
	r.ref = ref
	r.live = true
}

// OnBatch edits the status message with the latest snapshot.
func (r *Reporter) OnBatch(ctx context.Context, p Progress) {
	if !r.live {
		return
	}
	text := fmt.Sprintf("📢 Broadcasting… %d/%d (%d%%)\n✅ sent %d • ❌ failed %d",
		p.Processed, p.Total, p.Percent, p.Sent, p.Failed)
	if err := r.sink.EditText(ctx, r.ref, text, nil); err != nil {
		r.log.Warn("progress message edit failed", logx.Err(err))
	}
}

// Finish replaces the status message with the final report.
func (r *Reporter) Finish(ctx context.Context, rep Report) {
	text := FormatReport(rep)
	if r.live {
		if err := r.sink.EditText(ctx, r.ref, text, nil); err == nil {
			return
		}
	}
	// No live status message (or the edit failed): send the report fresh.
	if _, err := r.sink.SendText(ctx, r.chat, text, nil); err != nil {
		r.log.Warn("final report send failed", logx.Err(err))
	}
}

// FormatReport renders the final accounting with up to reportSamples
// diagnostics and an "…and N more" suffix when truncated.
func FormatReport(rep Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📣 Broadcast complete\n")
	fmt.Fprintf(&b, "• Recipients: %d\n", rep.Total)
	fmt.Fprintf(&b, "• Sent: %d\n", rep.Sent)
	fmt.Fprintf(&b, "• Failed: %d", rep.Failed)

	if len(rep.Diagnostics) > 0 {
		b.WriteString("\n\nFailures:")
		n := len(rep.Diagnostics)
		show := n
		if show > reportSamples {
			show = reportSamples
		}
		for _, d := range rep.Diagnostics[:show] {
			b.WriteString("\n• ")
			b.WriteString(d)
		}
		if n > show {
			fmt.Fprintf(&b, "\n…and %d more", n-show)
		}
	}
	return b.String()
}
