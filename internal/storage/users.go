package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type User struct {
	ID             int64
	Points         int64
	QuizzesTaken   int64
	QuizzesCreated int64
	CreatedAt      time.Time
}

// EnsureUser registers a user on first contact. Existing rows are untouched.
func (s *DB) EnsureUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, created_at) VALUES(?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *DB) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, points, quizzes_taken, quizzes_created, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Points, &u.QuizzesTaken, &u.QuizzesCreated, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return u, nil
}

// ListUserIDs returns every known user id, ordered, without duplicates
// (primary key guarantees uniqueness). This is the broadcast recipient
// snapshot: ids registered afterwards are not part of the returned set.
func (s *DB) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddPoints adjusts a user's balance by delta (may be negative). It fails
// with ErrInsufficientPoints instead of letting the balance go below zero.
func (s *DB) AddPoints(ctx context.Context, id int64, delta int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET points = points + ? WHERE id = ? AND points + ? >= 0`,
		delta, id, delta,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientPoints
	}
	return nil
}

var ErrInsufficientPoints = errors.New("storage: insufficient points")

func (s *DB) IncQuizzesTaken(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET quizzes_taken = quizzes_taken + 1 WHERE id = ?`, id)
	return err
}

func (s *DB) IncQuizzesCreated(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET quizzes_created = quizzes_created + 1 WHERE id = ?`, id)
	return err
}

func (s *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// TopUsers returns up to n users ordered by points, highest first.
func (s *DB) TopUsers(ctx context.Context, n int) ([]User, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, points, quizzes_taken, quizzes_created FROM users ORDER BY points DESC, id ASC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Points, &u.QuizzesTaken, &u.QuizzesCreated); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
