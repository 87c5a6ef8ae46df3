package bot

import (
	"context"

	kit "quizbot/internal/transport"
	"quizbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// Access gates who may invoke a command.
type Access int

const (
	AccessEveryone Access = iota
	// AccessEntitled requires sudo, an active token, or active premium.
	AccessEntitled
	// AccessOwner restricts to the configured owner ids.
	AccessOwner
)

type Command struct {
	Name        string
	Description string
	Usage       string
	Access      Access
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	// ReplyTo is the message the command replied to, if any.
	ReplyTo *kit.MessageRef

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends plain text back to the request's chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, nil)
	return err
}
