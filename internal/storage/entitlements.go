package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Entitlement is a time-bounded grant (token or premium). Sudo status is a
// separate, non-expiring table.
type Entitlement struct {
	UserID    int64
	Kind      string
	ExpiresAt time.Time
}

func (s *DB) IsSudo(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sudo_users WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *DB) AddSudo(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sudo_users(user_id) VALUES(?) ON CONFLICT(user_id) DO NOTHING`, userID)
	return err
}

func (s *DB) RemoveSudo(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sudo_users WHERE user_id = ?`, userID)
	return err
}

func (s *DB) CountSudo(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sudo_users`).Scan(&n)
	return n, err
}

// GetEntitlement returns the stored grant for (userID, kind), expired or not.
// Deciding whether an expired grant still counts is the resolver's job.
func (s *DB) GetEntitlement(ctx context.Context, userID int64, kind string) (Entitlement, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM entitlements WHERE user_id = ? AND kind = ?`, userID, kind,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Entitlement{}, false, nil
	}
	if err != nil {
		return Entitlement{}, false, err
	}
	return Entitlement{UserID: userID, Kind: kind, ExpiresAt: time.UnixMilli(ms)}, true, nil
}

// PutEntitlement overwrites any existing grant of the same kind.
func (s *DB) PutEntitlement(ctx context.Context, e Entitlement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entitlements(user_id, kind, expires_at) VALUES(?,?,?)
		 ON CONFLICT(user_id, kind) DO UPDATE SET expires_at=excluded.expires_at`,
		e.UserID, e.Kind, e.ExpiresAt.UnixMilli(),
	)
	return err
}

func (s *DB) DeleteEntitlement(ctx context.Context, userID int64, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM entitlements WHERE user_id = ? AND kind = ?`, userID, kind)
	return err
}

// DeleteExpiredTokens removes token rows whose expiry is at or before now.
// Premium rows are not touched here; the resolver cleans those up lazily.
func (s *DB) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entitlements WHERE kind = 'token' AND expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
