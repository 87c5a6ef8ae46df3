// Package bot routes Telegram updates to command handlers: the quiz flows,
// the entitlement commands, and the admin broadcast state machine.
package bot

import (
	"context"
	"strings"
	"time"

	"quizbot/internal/auth"
	"quizbot/internal/broadcast"
	rtsup "quizbot/internal/runtime/supervisor"
	"quizbot/internal/storage"
	kit "quizbot/internal/transport"
	"quizbot/pkg/logx"
)

// Store is the persistence surface the router needs.
type Store interface {
	EnsureUser(ctx context.Context, id int64) error
	GetUser(ctx context.Context, id int64) (storage.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	AddPoints(ctx context.Context, id int64, delta int64) error
	IncQuizzesTaken(ctx context.Context, id int64) error
	IncQuizzesCreated(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int64, error)
	CountQuizzes(ctx context.Context) (int64, error)
	CountSudo(ctx context.Context) (int64, error)
	TopUsers(ctx context.Context, n int) ([]storage.User, error)

	SaveQuiz(ctx context.Context, q storage.Quiz) error
	GetQuiz(ctx context.Context, id string) (storage.Quiz, error)
	RandomQuiz(ctx context.Context) (storage.Quiz, error)

	AddSudo(ctx context.Context, userID int64) error
	RemoveSudo(ctx context.Context, userID int64) error
	IsSudo(ctx context.Context, userID int64) (bool, error)
	GetEntitlement(ctx context.Context, userID int64, kind string) (storage.Entitlement, bool, error)
	PutEntitlement(ctx context.Context, e storage.Entitlement) error
	DeleteEntitlement(ctx context.Context, userID int64, kind string) error
}

type Settings struct {
	OwnerUserIDs []int64

	TokenPrice       int64         // points per token, default 50
	PointsPerCorrect int64         // default 10
	TokenValidity    time.Duration // default 24h

	CommandTimeout time.Duration // default 30s
	UpdateBuffer   int           // default 256
}

func (s Settings) withDefaults() Settings {
	if s.TokenPrice <= 0 {
		s.TokenPrice = 50
	}
	if s.PointsPerCorrect <= 0 {
		s.PointsPerCorrect = 10
	}
	if s.TokenValidity <= 0 {
		s.TokenValidity = 24 * time.Hour
	}
	if s.CommandTimeout <= 0 {
		s.CommandTimeout = 30 * time.Second
	}
	if s.UpdateBuffer <= 0 {
		s.UpdateBuffer = 256
	}
	return s
}

type Bot struct {
	adapter    kit.Adapter
	store      Store
	resolver   *auth.Resolver
	dispatcher *broadcast.Dispatcher
	log        logx.Logger
	settings   Settings

	sessions *sessions
	commands map[string]Command
	chain    []Middleware

	sup     *rtsup.Supervisor
	updates chan kit.Update
}

func New(adapter kit.Adapter, store Store, resolver *auth.Resolver, dispatcher *broadcast.Dispatcher, settings Settings, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{
		adapter:    adapter,
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		log:        log,
		settings:   settings.withDefaults(),
		sessions:   newSessions(),
	}
	b.chain = []Middleware{
		MWPanicRecover(log),
		MWRequestLog(log),
		MWTimeout(b.settings.CommandTimeout),
	}
	b.commands = map[string]Command{}
	for _, c := range b.commandList() {
		b.commands[c.Name] = c
	}
	return b
}

func (b *Bot) Start(ctx context.Context) error {
	b.updates = make(chan kit.Update, b.settings.UpdateBuffer)
	b.sup = rtsup.New(ctx, rtsup.WithLogger(b.log.With(logx.String("comp", "bot"))))

	if err := b.adapter.Start(ctx, b.updates); err != nil {
		return err
	}

	b.sup.Go("updates.loop", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case up := <-b.updates:
				b.handleUpdate(c, up)
			}
		}
	})

	b.log.Info("bot started", logx.Int("commands", len(b.commands)))
	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.sup != nil {
		b.sup.Cancel()
		_ = b.sup.Wait(ctx)
	}
	return b.adapter.Stop(ctx)
}

// handleUpdate runs each update in its own supervised goroutine so a slow
// handler (or a running broadcast) never stalls the update loop.
func (b *Bot) handleUpdate(ctx context.Context, up kit.Update) {
	req := b.buildRequest(up)
	if req == nil {
		return
	}
	h := b.route(req)
	if h == nil {
		return
	}
	b.sup.Go("handle."+req.Command, func(c context.Context) {
		_ = Chain(h, b.chain...)(c, req)
	})
}

func (b *Bot) buildRequest(up kit.Update) *Request {
	switch up.Kind {
	case kit.UpdateMessage:
		m := up.Message
		if m == nil {
			return nil
		}
		req := &Request{
			Update:  up,
			Chat:    kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID},
			FromID:  m.FromID,
			ReplyTo: m.ReplyTo,
			Adapter: b.adapter,
			Logger:  b.log,
		}
		if cmd, args, ok := splitCommand(m.Text); ok {
			req.Command = cmd
			req.Args = args
		} else {
			req.Command = "(text)"
		}
		return req
	case kit.UpdateCallback:
		cb := up.Callback
		if cb == nil {
			return nil
		}
		return &Request{
			Update:  up,
			Chat:    kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
			FromID:  cb.FromID,
			Command: "(callback)",
			Adapter: b.adapter,
			Logger:  b.log,
		}
	default:
		return nil
	}
}

func (b *Bot) route(req *Request) HandlerFunc {
	if req.Update.Kind == kit.UpdateCallback {
		return b.handleCallback
	}
	if req.Command == "(text)" {
		// Plain text only matters inside the creation conversation.
		if _, ok := b.sessions.create(req.FromID); ok {
			return b.handleCreateInput
		}
		return nil
	}
	cmd, ok := b.commands[req.Command]
	if !ok {
		return func(ctx context.Context, r *Request) error {
			return r.Reply(ctx, "Unknown command. Try /help.")
		}
	}
	return b.gate(cmd)
}

// gate wraps a command handler with its access check.
func (b *Bot) gate(cmd Command) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		switch cmd.Access {
		case AccessOwner:
			if !b.isOwner(req.FromID) {
				return req.Reply(ctx, "❌ Only the bot owner can use this command.")
			}
		case AccessEntitled:
			if !b.resolver.HasAccess(ctx, req.FromID) {
				return req.Reply(ctx,
					"❌ You need an active token or premium to do that.\nUse /redeem to trade points for a token.")
			}
		}
		return cmd.Handle(ctx, req)
	}
}

func (b *Bot) isOwner(userID int64) bool {
	for _, id := range b.settings.OwnerUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// splitCommand parses "/cmd@bot arg1 arg2" into ("cmd", [arg1 arg2], true).
func splitCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name := fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	name = strings.ToLower(name)
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}
