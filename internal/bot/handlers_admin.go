package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"quizbot/internal/auth"
	"quizbot/internal/storage"
)

func parseUserID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseKind(s string) (auth.Kind, bool) {
	switch s {
	case "token":
		return auth.KindToken, true
	case "premium":
		return auth.KindPremium, true
	default:
		return "", false
	}
}

func (b *Bot) cmdGrant(ctx context.Context, req *Request) error {
	id, ok := parseUserID(req.Args)
	if !ok || len(req.Args) < 2 {
		return req.Reply(ctx, "Usage: /grant <user_id> token|premium [duration, e.g. 720h]")
	}
	kind, ok := parseKind(req.Args[1])
	if !ok {
		return req.Reply(ctx, "Usage: /grant <user_id> token|premium [duration, e.g. 720h]")
	}

	validity := b.settings.TokenValidity
	if kind == auth.KindPremium {
		validity = 30 * 24 * time.Hour
	}
	if len(req.Args) >= 3 {
		d, err := time.ParseDuration(req.Args[2])
		if err != nil || d <= 0 {
			return req.Reply(ctx, "❌ Invalid duration. Use Go syntax, e.g. 24h, 720h.")
		}
		validity = d
	}

	if err := b.store.EnsureUser(ctx, id); err != nil {
		return err
	}
	expires := time.Now().Add(validity)
	if err := b.store.PutEntitlement(ctx, storage.Entitlement{
		UserID:    id,
		Kind:      string(kind),
		ExpiresAt: expires,
	}); err != nil {
		return err
	}
	b.resolver.Invalidate(id)

	return req.Reply(ctx, fmt.Sprintf(
		"✅ Granted %s to user %d until %s.", kind, id, expires.Format("2006-01-02 15:04 MST")))
}

func (b *Bot) cmdRevoke(ctx context.Context, req *Request) error {
	id, ok := parseUserID(req.Args)
	if !ok || len(req.Args) < 2 {
		return req.Reply(ctx, "Usage: /revoke <user_id> token|premium")
	}
	kind, ok := parseKind(req.Args[1])
	if !ok {
		return req.Reply(ctx, "Usage: /revoke <user_id> token|premium")
	}

	if err := b.store.DeleteEntitlement(ctx, id, string(kind)); err != nil {
		return err
	}
	b.resolver.Invalidate(id)

	return req.Reply(ctx, fmt.Sprintf("✅ Revoked %s from user %d.", kind, id))
}

func (b *Bot) cmdAddSudo(ctx context.Context, req *Request) error {
	id, ok := parseUserID(req.Args)
	if !ok {
		return req.Reply(ctx, "Usage: /addsudo <user_id>")
	}
	if err := b.store.EnsureUser(ctx, id); err != nil {
		return err
	}
	if err := b.store.AddSudo(ctx, id); err != nil {
		return err
	}
	b.resolver.Invalidate(id)
	return req.Reply(ctx, fmt.Sprintf("✅ User %d is now a sudo user.", id))
}

func (b *Bot) cmdRemoveSudo(ctx context.Context, req *Request) error {
	id, ok := parseUserID(req.Args)
	if !ok {
		return req.Reply(ctx, "Usage: /removesudo <user_id>")
	}
	if err := b.store.RemoveSudo(ctx, id); err != nil {
		return err
	}
	b.resolver.Invalidate(id)
	return req.Reply(ctx, fmt.Sprintf("✅ User %d is no longer a sudo user.", id))
}
