package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UserRepo reads and writes account rows.
type UserRepo struct {
	q querier
}

const userColumns = `id, username, display_name, chip_balance, elo_score,
	highest_elo, games_played, games_won, is_active, is_bot, version,
	created_at, last_login_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.ChipBalance,
		&u.EloScore, &u.HighestElo, &u.GamesPlayed, &u.GamesWon,
		&u.IsActive, &u.IsBot, &u.Version, &u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, translateErr(err)
	}
	if lastLogin.Valid {
		u.LastLoginAt = lastLogin.Time
	}
	return &u, nil
}

// GetByID returns the user or ErrNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetByUsername looks a user up case-insensitively.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower(?)`,
		username)
	return scanUser(row)
}

// GetByIDs fetches the given users; missing ids are silently absent from
// the result.
func (r *UserRepo) GetByIDs(ctx context.Context, ids []string) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Add inserts a user. Usernames are unique case-insensitively.
func (r *UserRepo) Add(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	var lastLogin sql.NullTime
	if !u.LastLoginAt.IsZero() {
		lastLogin = sql.NullTime{Time: u.LastLoginAt, Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.DisplayName, u.ChipBalance, u.EloScore,
		u.HighestElo, u.GamesPlayed, u.GamesWon, u.IsActive, u.IsBot,
		u.Version, u.CreatedAt, lastLogin)
	return translateErr(err)
}

// Update writes the user back, guarded by the version token. The stored
// version is bumped; u.Version is updated on success.
func (r *UserRepo) Update(ctx context.Context, u *User) error {
	var lastLogin sql.NullTime
	if !u.LastLoginAt.IsZero() {
		lastLogin = sql.NullTime{Time: u.LastLoginAt, Valid: true}
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET
			username = ?, display_name = ?, chip_balance = ?,
			elo_score = ?, highest_elo = ?, games_played = ?,
			games_won = ?, is_active = ?, last_login_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		u.Username, u.DisplayName, u.ChipBalance, u.EloScore,
		u.HighestElo, u.GamesPlayed, u.GamesWon, u.IsActive, lastLogin,
		u.ID, u.Version)
	if err != nil {
		return translateErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is gone or someone else updated it first.
		if _, err := r.GetByID(ctx, u.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	u.Version++
	return nil
}

// TopByElo returns the n highest-rated active users, ties broken by
// username for a stable order.
func (r *UserRepo) TopByElo(ctx context.Context, n int) ([]*User, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active = 1
		ORDER BY elo_score DESC, lower(username) ASC
		LIMIT ?`, n)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// EloRank returns the user's 1-based rank among active users, or
// ErrNotFound when the user does not exist or is inactive.
func (r *UserRepo) EloRank(ctx context.Context, id string) (int, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if !u.IsActive {
		return 0, fmt.Errorf("%w: user %s is inactive", ErrNotFound, id)
	}
	var rank int
	err = r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) + 1 FROM users
		WHERE is_active = 1 AND elo_score > ?`, u.EloScore).Scan(&rank)
	if err != nil {
		return 0, translateErr(err)
	}
	return rank, nil
}

// CountActive returns how many active users exist.
func (r *UserRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE is_active = 1`).Scan(&n)
	return n, translateErr(err)
}
