package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// HistoryRepo reads and writes completed-game records.
type HistoryRepo struct {
	q querier
}

const historyColumns = `id, room_id, started_at, ended_at, status,
	winner_id, win_type, win_score, table_stake, rake, player_results,
	server_seed_hash, server_seed, initial_state, client_seed, nonce`

func scanHistory(row interface{ Scan(...any) error }) (*GameHistory, error) {
	var h GameHistory
	var endedAt sql.NullTime
	var winnerID sql.NullString
	var results string
	err := row.Scan(&h.ID, &h.RoomID, &h.StartedAt, &endedAt, &h.Status,
		&winnerID, &h.WinType, &h.WinScore, &h.TableStake, &h.Rake,
		&results, &h.ServerSeedHash, &h.ServerSeed, &h.InitialState,
		&h.ClientSeed, &h.Nonce)
	if err != nil {
		return nil, translateErr(err)
	}
	if endedAt.Valid {
		h.EndedAt = endedAt.Time
	}
	if winnerID.Valid {
		h.WinnerID = winnerID.String
	}
	if err := json.Unmarshal([]byte(results), &h.PlayerResults); err != nil {
		return nil, fmt.Errorf("decode player results: %w", err)
	}
	return &h, nil
}

func (h *GameHistory) encodeResults() (string, error) {
	results := h.PlayerResults
	if results == nil {
		results = []PlayerResult{}
	}
	b, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode player results: %w", err)
	}
	return string(b), nil
}

// GetByID returns the history or ErrNotFound.
func (r *HistoryRepo) GetByID(ctx context.Context, id string) (*GameHistory, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM game_histories WHERE id = ?`, id)
	return scanHistory(row)
}

// GetByRoomID lists histories for a room, newest first.
func (r *HistoryRepo) GetByRoomID(ctx context.Context, roomID string) ([]*GameHistory, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+historyColumns+` FROM game_histories
		WHERE room_id = ? ORDER BY started_at DESC`, roomID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var hs []*GameHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		hs = append(hs, h)
	}
	return hs, rows.Err()
}

// Add inserts a history row, typically in InProgress when the game deals.
func (r *HistoryRepo) Add(ctx context.Context, h *GameHistory) error {
	results, err := h.encodeResults()
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO game_histories (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.RoomID, h.StartedAt, nullTime(h.EndedAt), h.Status,
		nullString(h.WinnerID), h.WinType, h.WinScore, h.TableStake,
		h.Rake, results, h.ServerSeedHash, h.ServerSeed, h.InitialState,
		h.ClientSeed, h.Nonce)
	return translateErr(err)
}

// Update rewrites the mutable portion of a history row: the room finishes
// or cancels a game by writing status, winner, results and the reveal.
func (r *HistoryRepo) Update(ctx context.Context, h *GameHistory) error {
	results, err := h.encodeResults()
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE game_histories SET
			ended_at = ?, status = ?, winner_id = ?, win_type = ?,
			win_score = ?, table_stake = ?, rake = ?, player_results = ?,
			server_seed = ?, initial_state = ?, client_seed = ?, nonce = ?
		WHERE id = ?`,
		nullTime(h.EndedAt), h.Status, nullString(h.WinnerID), h.WinType,
		h.WinScore, h.TableStake, h.Rake, results, h.ServerSeed,
		h.InitialState, h.ClientSeed, h.Nonce, h.ID)
	if err != nil {
		return translateErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
