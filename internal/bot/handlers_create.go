package bot

import (
	"context"
	"strings"
	"time"

	"quizbot/internal/quiz"
	"quizbot/internal/storage"
)

func (b *Bot) cmdCreate(ctx context.Context, req *Request) error {
	if err := b.store.EnsureUser(ctx, req.FromID); err != nil {
		return err
	}
	b.sessions.startCreate(req.FromID)
	return req.Reply(ctx, "📝 Let's create a new quiz!\n\nPlease send your question:")
}

// handleCreateInput advances the creation conversation with a plain-text
// message. The conversation is per-user; /cancel aborts it at any step.
func (b *Bot) handleCreateInput(ctx context.Context, req *Request) error {
	st, ok := b.sessions.create(req.FromID)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(req.Update.Message.Text)

	switch st.step {
	case stepQuestion:
		if text == "" {
			return req.Reply(ctx, "❌ Question can't be empty. Send your question:")
		}
		st.draft.Question = text
		st.step = stepOptions
		return req.Reply(ctx,
			"📋 Great! Now send the options separated by commas.\nExample: Option A, Option B, Option C")

	case stepOptions:
		opts, err := quiz.ParseOptions(text)
		if err != nil {
			return req.Reply(ctx, "❌ Please provide between 2 and 10 options, separated by commas.")
		}
		st.draft.Options = opts
		st.step = stepCorrect
		return req.Reply(ctx, "Now send the number of the correct option (1, 2, 3, …):")

	case stepCorrect:
		idx, err := quiz.ParseCorrect(text, len(st.draft.Options))
		if err != nil {
			return req.Reply(ctx, "❌ Invalid option number. Please enter a valid number:")
		}
		st.draft.Correct = idx
		st.step = stepConfirm
		return req.Reply(ctx, st.draft.Preview())

	case stepConfirm:
		if !strings.EqualFold(text, "yes") {
			b.sessions.endCreate(req.FromID)
			return req.Reply(ctx, "Quiz creation canceled.")
		}
		if err := st.draft.Validate(); err != nil {
			b.sessions.endCreate(req.FromID)
			return req.Reply(ctx, "❌ Something went wrong with the draft; please start over with /create.")
		}
		q := storage.Quiz{
			ID:        quiz.NewID(time.Now()),
			Question:  st.draft.Question,
			Options:   st.draft.Options,
			Correct:   st.draft.Correct,
			CreatorID: req.FromID,
		}
		if err := b.store.SaveQuiz(ctx, q); err != nil {
			return err
		}
		if err := b.store.IncQuizzesCreated(ctx, req.FromID); err != nil {
			return err
		}
		b.sessions.endCreate(req.FromID)
		return req.Reply(ctx,
			"🎉 Quiz created successfully!\n\nShare this id for others to take it: "+q.ID)
	}
	return nil
}

// cmdCancel aborts whichever flow the user has open: the creation
// conversation, or (for the owner) the pending broadcast.
func (b *Bot) cmdCancel(ctx context.Context, req *Request) error {
	if _, ok := b.sessions.create(req.FromID); ok {
		b.sessions.endCreate(req.FromID)
		return req.Reply(ctx, "Operation canceled.")
	}
	if b.isOwner(req.FromID) && b.sessions.clearPending(req.FromID) {
		return req.Reply(ctx, "Broadcast canceled; the pending job was discarded.")
	}
	return req.Reply(ctx, "Nothing to cancel.")
}
