// Package store is the sqlite persistence layer: users, game histories
// and the chip-transaction ledger, plus the unit-of-work the settlement
// pipeline runs inside.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a unique constraint is violated
	// (username, reference number, idempotency key).
	ErrDuplicate = errors.New("store: duplicate")

	// ErrVersionConflict is returned when an optimistic-concurrency
	// update lost the race.
	ErrVersionConflict = errors.New("store: version conflict")
)

// querier is satisfied by both *sql.DB and *sql.Tx so repositories work
// inside and outside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the database handle and hands out repositories.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows one writer; a single conn also keeps :memory:
	// databases from evaporating between pool checkouts.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Users() *UserRepo        { return &UserRepo{q: s.db} }
func (s *Store) Histories() *HistoryRepo { return &HistoryRepo{q: s.db} }
func (s *Store) Transactions() *ChipRepo { return &ChipRepo{q: s.db} }

// UnitOfWork scopes repository calls to one transaction. Commit persists
// everything added through it atomically.
type UnitOfWork struct {
	tx *sql.Tx
}

// Begin starts a unit of work.
func (s *Store) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

func (u *UnitOfWork) Commit() error   { return u.tx.Commit() }
func (u *UnitOfWork) Rollback() error { return u.tx.Rollback() }

func (u *UnitOfWork) Users() *UserRepo        { return &UserRepo{q: u.tx} }
func (u *UnitOfWork) Histories() *HistoryRepo { return &HistoryRepo{q: u.tx} }
func (u *UnitOfWork) Transactions() *ChipRepo { return &ChipRepo{q: u.tx} }

// translateErr maps driver errors onto the package sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			chip_balance  INTEGER NOT NULL DEFAULT 0 CHECK (chip_balance >= 0),
			elo_score     INTEGER NOT NULL DEFAULT 1000 CHECK (elo_score >= 100),
			highest_elo   INTEGER NOT NULL DEFAULT 1000,
			games_played  INTEGER NOT NULL DEFAULT 0,
			games_won     INTEGER NOT NULL DEFAULT 0,
			is_active     INTEGER NOT NULL DEFAULT 1,
			is_bot        INTEGER NOT NULL DEFAULT 0,
			version       INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMP NOT NULL,
			last_login_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username
			ON users (lower(username))`,
		`CREATE INDEX IF NOT EXISTS idx_users_active_elo
			ON users (is_active, elo_score DESC)`,

		`CREATE TABLE IF NOT EXISTS game_histories (
			id               TEXT PRIMARY KEY,
			room_id          TEXT NOT NULL,
			started_at       TIMESTAMP NOT NULL,
			ended_at         TIMESTAMP,
			status           TEXT NOT NULL,
			winner_id        TEXT,
			win_type         TEXT NOT NULL DEFAULT '',
			win_score        INTEGER NOT NULL DEFAULT 0,
			table_stake      INTEGER NOT NULL DEFAULT 0,
			rake             INTEGER NOT NULL DEFAULT 0,
			player_results   TEXT NOT NULL DEFAULT '[]',
			server_seed_hash TEXT NOT NULL DEFAULT '',
			server_seed      TEXT NOT NULL DEFAULT '',
			initial_state    TEXT NOT NULL DEFAULT '',
			client_seed      TEXT NOT NULL DEFAULT '',
			nonce            INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_histories_room ON game_histories (room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_histories_started ON game_histories (started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_histories_winner ON game_histories (winner_id)`,

		`CREATE TABLE IF NOT EXISTS chip_transactions (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id),
			game_history_id  TEXT,
			type             TEXT NOT NULL,
			amount           INTEGER NOT NULL,
			balance_before   INTEGER NOT NULL,
			balance_after    INTEGER NOT NULL CHECK (balance_after = balance_before + amount),
			description      TEXT NOT NULL DEFAULT '',
			reference_number TEXT NOT NULL,
			idempotency_key  TEXT,
			created_at       TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_reference
			ON chip_transactions (reference_number)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_idempotency
			ON chip_transactions (idempotency_key)
			WHERE idempotency_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user_created
			ON chip_transactions (user_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
