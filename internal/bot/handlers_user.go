package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizbot/internal/auth"
	"quizbot/internal/storage"
	kit "quizbot/internal/transport"
	"quizbot/pkg/logx"
	"quizbot/pkg/tgui"
)

const tutorialURL = "https://youtu.be/WeqpaV6VnO4"

func (b *Bot) cmdStart(ctx context.Context, req *Request) error {
	if err := b.store.EnsureUser(ctx, req.FromID); err != nil {
		return err
	}
	rm := tgui.NewInline().
		Row(tgui.URLBtn("📺 Watch Tutorial Video", tutorialURL)).
		Markup()
	_, err := req.Adapter.SendText(ctx, req.Chat,
		"🌟 Welcome to QuizBot! 🌟\n\n"+
			"Create your own quizzes with /create\n"+
			"Take quizzes with /quiz\n\n"+
			"Watch the tutorial to learn how to build great quizzes:",
		&kit.SendOptions{ReplyMarkupAdapter: rm})
	return err
}

func (b *Bot) cmdHelp(ctx context.Context, req *Request) error {
	var sb strings.Builder
	sb.WriteString("📚 QuizBot commands:\n\n")
	for _, c := range b.commandList() {
		if c.Access == AccessOwner {
			continue
		}
		fmt.Fprintf(&sb, "/%s - %s\n", c.Name, c.Description)
	}
	if b.isOwner(req.FromID) {
		sb.WriteString("\n🔧 Owner commands:\n")
		for _, c := range b.commandList() {
			if c.Access != AccessOwner {
				continue
			}
			usage := c.Usage
			if usage == "" {
				usage = "/" + c.Name
			}
			fmt.Fprintf(&sb, "%s - %s\n", usage, c.Description)
		}
	}
	return req.Reply(ctx, sb.String())
}

func (b *Bot) cmdQuiz(ctx context.Context, req *Request) error {
	if err := b.store.EnsureUser(ctx, req.FromID); err != nil {
		return err
	}
	q, err := b.store.RandomQuiz(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return req.Reply(ctx, "No quizzes available yet. Create one with /create!")
	}
	if err != nil {
		return err
	}

	kb := tgui.NewInline()
	for i, opt := range q.Options {
		kb.Row(tgui.Btn(tgui.TruncRunes(opt, 32), tgui.Data("quiz", "ans", fmt.Sprintf("%s:%d", q.ID, i))))
	}
	_, err = req.Adapter.SendText(ctx, req.Chat,
		fmt.Sprintf("❓ Quiz: %s", q.Question),
		&kit.SendOptions{ReplyMarkupAdapter: kb.Markup()})
	return err
}

// handleCallback resolves quiz answers submitted via inline buttons.
func (b *Bot) handleCallback(ctx context.Context, req *Request) error {
	cb := req.Update.Callback
	if cb == nil {
		return nil
	}
	plugin, action, payload := tgui.Split(cb.Data)
	if plugin == "bcast" {
		return b.handleBroadcastCallback(ctx, req, action)
	}
	if plugin != "quiz" || action != "ans" {
		return req.Adapter.AnswerCallback(ctx, cb.ID, "")
	}
	// payload is "<quizID>:<optionIndex>"
	sep := strings.LastIndexByte(payload, ':')
	if sep <= 0 {
		return req.Adapter.AnswerCallback(ctx, cb.ID, "")
	}
	quizID := payload[:sep]
	var selected int
	if _, err := fmt.Sscanf(payload[sep+1:], "%d", &selected); err != nil {
		return req.Adapter.AnswerCallback(ctx, cb.ID, "")
	}
	_ = req.Adapter.AnswerCallback(ctx, cb.ID, "")

	q, err := b.store.GetQuiz(ctx, quizID)
	if errors.Is(err, storage.ErrNotFound) {
		ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: cb.MessageID}
		return req.Adapter.EditText(ctx, ref, "Quiz no longer exists.", nil)
	}
	if err != nil {
		return err
	}
	if selected < 0 || selected >= len(q.Options) {
		return nil
	}

	if err := b.store.EnsureUser(ctx, req.FromID); err != nil {
		return err
	}

	var verdict string
	if selected == q.Correct {
		if err := b.store.AddPoints(ctx, req.FromID, b.settings.PointsPerCorrect); err != nil {
			b.log.Warn("award points failed", logx.Int64("user_id", req.FromID), logx.Err(err))
		}
		if err := b.store.IncQuizzesTaken(ctx, req.FromID); err != nil {
			b.log.Warn("quiz counter update failed", logx.Int64("user_id", req.FromID), logx.Err(err))
		}
		verdict = fmt.Sprintf("✅ Correct! +%d points!", b.settings.PointsPerCorrect)
	} else {
		verdict = fmt.Sprintf("❌ Incorrect! The correct answer was: %s", q.Options[q.Correct])
	}

	ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: cb.MessageID}
	return req.Adapter.EditText(ctx, ref, fmt.Sprintf(
		"%s\n\nQuestion: %s\nYour answer: %s\nCorrect answer: %s",
		verdict, q.Question, q.Options[selected], q.Options[q.Correct]), nil)
}

func (b *Bot) cmdStatus(ctx context.Context, req *Request) error {
	if err := b.store.EnsureUser(ctx, req.FromID); err != nil {
		return err
	}
	u, err := b.store.GetUser(ctx, req.FromID)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("🔑 Your Account Status:\n\n")
	fmt.Fprintf(&sb, "• Points: %d\n", u.Points)
	fmt.Fprintf(&sb, "• Quizzes taken: %d, created: %d\n", u.QuizzesTaken, u.QuizzesCreated)

	if sudo, _ := b.store.IsSudo(ctx, req.FromID); sudo {
		sb.WriteString("• 🌟 Sudo user (unlimited access)\n")
	}
	now := time.Now()
	for _, kind := range []auth.Kind{auth.KindPremium, auth.KindToken} {
		ent, ok, err := b.store.GetEntitlement(ctx, req.FromID, string(kind))
		if err != nil {
			return err
		}
		if ok && ent.ExpiresAt.After(now) {
			fmt.Fprintf(&sb, "• %s active until %s\n", kind, ent.ExpiresAt.Format("2006-01-02 15:04 MST"))
		}
	}
	fmt.Fprintf(&sb, "\nGet a creation token with /redeem (%d points).", b.settings.TokenPrice)
	return req.Reply(ctx, sb.String())
}

func (b *Bot) cmdRedeem(ctx context.Context, req *Request) error {
	if err := b.store.EnsureUser(ctx, req.FromID); err != nil {
		return err
	}
	if sudo, _ := b.store.IsSudo(ctx, req.FromID); sudo {
		return req.Reply(ctx, "🌟 You're a sudo user! You don't need tokens.")
	}

	err := b.store.AddPoints(ctx, req.FromID, -b.settings.TokenPrice)
	if errors.Is(err, storage.ErrInsufficientPoints) {
		u, gerr := b.store.GetUser(ctx, req.FromID)
		if gerr != nil {
			return gerr
		}
		return req.Reply(ctx, fmt.Sprintf(
			"❌ You need %d points for a token; you have %d.\nTake more quizzes to earn points!",
			b.settings.TokenPrice, u.Points))
	}
	if err != nil {
		return err
	}

	expires := time.Now().Add(b.settings.TokenValidity)
	if err := b.store.PutEntitlement(ctx, storage.Entitlement{
		UserID:    req.FromID,
		Kind:      string(auth.KindToken),
		ExpiresAt: expires,
	}); err != nil {
		return err
	}
	// Make the new grant visible immediately, not after the cache TTL.
	b.resolver.Invalidate(req.FromID)

	return req.Reply(ctx, fmt.Sprintf(
		"🎉 Token redeemed!\n\n• %d points spent\n• Quiz creation unlocked until %s",
		b.settings.TokenPrice, expires.Format("2006-01-02 15:04 MST")))
}

func (b *Bot) cmdStats(ctx context.Context, req *Request) error {
	users, err := b.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	quizzes, err := b.store.CountQuizzes(ctx)
	if err != nil {
		return err
	}
	sudo, err := b.store.CountSudo(ctx)
	if err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf(
		"📊 Bot Statistics:\n\n• Total Users: %d\n• Total Quizzes: %d\n• Sudo Users: %d",
		users, quizzes, sudo))
}

func (b *Bot) cmdLeaderboard(ctx context.Context, req *Request) error {
	top, err := b.store.TopUsers(ctx, 10)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		return req.Reply(ctx, "No users yet!")
	}
	var sb strings.Builder
	sb.WriteString("🏆 Top Users:\n\n")
	for i, u := range top {
		fmt.Fprintf(&sb, "%d. User %d: %d points\n", i+1, u.ID, u.Points)
	}
	return req.Reply(ctx, sb.String())
}
