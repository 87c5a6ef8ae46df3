package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type Quiz struct {
	ID        string
	Question  string
	Options   []string
	Correct   int
	CreatorID int64
	CreatedAt time.Time
}

func (s *DB) SaveQuiz(ctx context.Context, q Quiz) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quizzes(id, question, options_json, correct, creator_id, created_at)
		 VALUES(?,?,?,?,?,?)`,
		q.ID, q.Question, string(opts), q.Correct, q.CreatorID, q.CreatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *DB) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	var q Quiz
	var opts, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question, options_json, correct, creator_id, created_at FROM quizzes WHERE id = ?`, id,
	).Scan(&q.ID, &q.Question, &opts, &q.Correct, &q.CreatorID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, ErrNotFound
	}
	if err != nil {
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return Quiz{}, err
	}
	q.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return q, nil
}

// RandomQuiz picks one quiz uniformly at random.
func (s *DB) RandomQuiz(ctx context.Context) (Quiz, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM quizzes ORDER BY RANDOM() LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, ErrNotFound
	}
	if err != nil {
		return Quiz{}, err
	}
	return s.GetQuiz(ctx, id)
}

func (s *DB) CountQuizzes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes`).Scan(&n)
	return n, err
}
