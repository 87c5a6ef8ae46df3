// Package quiz holds the quiz-authoring rules: option parsing, validation
// and id generation. Persistence lives in storage; conversation state lives
// in the bot router.
package quiz

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	// MinOptions is the smallest answer set a quiz may have.
	MinOptions = 2
	// MaxOptions keeps inline keyboards within Telegram's practical limits.
	MaxOptions = 10
)

var (
	ErrTooFewOptions  = errors.New("quiz: at least 2 options required")
	ErrTooManyOptions = errors.New("quiz: too many options")
	ErrBadCorrect     = errors.New("quiz: correct option out of range")
	ErrEmptyQuestion  = errors.New("quiz: question is empty")
)

// NewID derives a short shareable quiz id from the creation time:
// "qz_" plus the last 8 digits of the unix timestamp, plus two random
// digits so two quizzes saved within the same second get distinct ids.
func NewID(now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return fmt.Sprintf("qz_%s%02d", ts, rand.IntN(100))
}

// ParseOptions splits a comma-separated option list, trimming blanks.
func ParseOptions(text string) ([]string, error) {
	parts := strings.Split(text, ",")
	opts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			opts = append(opts, p)
		}
	}
	if len(opts) < MinOptions {
		return nil, ErrTooFewOptions
	}
	if len(opts) > MaxOptions {
		return nil, ErrTooManyOptions
	}
	return opts, nil
}

// ParseCorrect parses a 1-based option number and returns the 0-based index.
func ParseCorrect(text string, optionCount int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ErrBadCorrect
	}
	idx := n - 1
	if idx < 0 || idx >= optionCount {
		return 0, ErrBadCorrect
	}
	return idx, nil
}

// Draft accumulates a quiz through the creation conversation.
type Draft struct {
	Question string
	Options  []string
	Correct  int
}

func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(d.Options) < MinOptions {
		return ErrTooFewOptions
	}
	if d.Correct < 0 || d.Correct >= len(d.Options) {
		return ErrBadCorrect
	}
	return nil
}

// Preview renders the confirmation text shown before saving.
func (d *Draft) Preview() string {
	var b strings.Builder
	b.WriteString("✅ Quiz Preview:\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nOptions:\n", d.Question)
	for i, opt := range d.Options {
		mark := ""
		if i == d.Correct {
			mark = " (correct)"
		}
		fmt.Fprintf(&b, "%d. %s%s\n", i+1, opt, mark)
	}
	b.WriteString("\nDoes this look right? (yes/no)")
	return b.String()
}
