package store

import (
	"context"
	"database/sql"
	"time"
)

// ChipRepo writes the append-only chip ledger.
type ChipRepo struct {
	q querier
}

const txColumns = `id, user_id, game_history_id, type, amount,
	balance_before, balance_after, description, reference_number,
	idempotency_key, created_at`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func scanTx(row interface{ Scan(...any) error }) (*ChipTransaction, error) {
	var t ChipTransaction
	var gameID, idemKey sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &gameID, &t.Type, &t.Amount,
		&t.BalanceBefore, &t.BalanceAfter, &t.Description,
		&t.ReferenceNumber, &idemKey, &t.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	t.GameHistoryID = gameID.String
	t.IdempotencyKey = idemKey.String
	return &t, nil
}

// GetByID returns the transaction or ErrNotFound.
func (r *ChipRepo) GetByID(ctx context.Context, id string) (*ChipTransaction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM chip_transactions WHERE id = ?`, id)
	return scanTx(row)
}

// GetByReferenceNumber returns the transaction or ErrNotFound.
func (r *ChipRepo) GetByReferenceNumber(ctx context.Context, ref string) (*ChipTransaction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM chip_transactions WHERE reference_number = ?`,
		ref)
	return scanTx(row)
}

// GetByIdempotencyKey is how the settlement pipeline detects replays.
func (r *ChipRepo) GetByIdempotencyKey(ctx context.Context, key string) (*ChipTransaction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM chip_transactions WHERE idempotency_key = ?`,
		key)
	return scanTx(row)
}

// GetByGameHistoryID lists a game's ledger entries in creation order.
func (r *ChipRepo) GetByGameHistoryID(ctx context.Context, gameID string) ([]*ChipTransaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+txColumns+` FROM chip_transactions
		WHERE game_history_id = ? ORDER BY created_at ASC, id ASC`, gameID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var txs []*ChipTransaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Add inserts one ledger entry.
func (r *ChipRepo) Add(ctx context.Context, t *ChipTransaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO chip_transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, nullString(t.GameHistoryID), t.Type, t.Amount,
		t.BalanceBefore, t.BalanceAfter, t.Description, t.ReferenceNumber,
		nullString(t.IdempotencyKey), t.CreatedAt)
	return translateErr(err)
}

// AddRange inserts several entries; callers wanting atomicity run this
// inside a unit of work.
func (r *ChipRepo) AddRange(ctx context.Context, txs []*ChipTransaction) error {
	for _, t := range txs {
		if err := r.Add(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
