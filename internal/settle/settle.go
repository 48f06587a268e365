// Package settle moves chips and ratings when a game ends: stake
// collection at start, the all-or-nothing settlement transaction at the
// end, and refunds when a game is cancelled. Every mutation is an entry in
// the chip ledger; idempotency keys make replays harmless.
package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/okeynet/okeyd/internal/rules"
	"github.com/okeynet/okeyd/internal/store"
)

var (
	// ErrInsufficientBalance aborts stake collection; the room cancels
	// instead of starting.
	ErrInsufficientBalance = errors.New("settle: insufficient balance")

	// ErrUserMissing means a seated player has no persistent account.
	ErrUserMissing = errors.New("settle: user missing")
)

const (
	rakePercent = 5
	rakeCap     = 10_000

	// Bots have no persisted rating; they count as average opponents.
	botElo         = 1000
	botGamesPlayed = 1000
)

// Retry schedule for transient store failures.
var retryBackoff = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second}

// Participant is one seat as settlement sees it.
type Participant struct {
	UserID      string
	DisplayName string
	Seat        int
	IsBot       bool
}

// Result describes a finished game. An empty WinnerID is a deck-empty
// draw: stakes come back and ratings move at draw weight.
type Result struct {
	GameID   string
	Stake    int64
	WinType  rules.WinType
	WinScore int
	WinnerID string
	Players  []Participant
}

// Pipeline runs settlement against the store.
type Pipeline struct {
	store  *store.Store
	clock  quartz.Clock
	logger zerolog.Logger
}

func New(st *store.Store, clock quartz.Clock, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:  st,
		clock:  clock,
		logger: logger.With().Str("component", "settlement").Logger(),
	}
}

// Rake is what the house keeps from a pot.
func Rake(totalPot int64) int64 {
	rake := totalPot * rakePercent / 100
	if rake > rakeCap {
		rake = rakeCap
	}
	return rake
}

func settleKey(gameID string) string { return "game-settle-" + gameID }

func refundKey(gameID, userID string) string {
	return fmt.Sprintf("game-refund-%s-%s", gameID, userID)
}

func stakeKey(gameID, userID string) string {
	return fmt.Sprintf("game-stake-%s-%s", gameID, userID)
}

// CollectStakes debits the table stake from every seated human inside one
// transaction. Any insufficient balance aborts the whole collection. A
// replay (same game id) is a no-op.
func (p *Pipeline) CollectStakes(ctx context.Context, gameID string, stake int64, players []Participant) error {
	if stake == 0 {
		return nil
	}

	uow, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	now := p.clock.Now().UTC()
	for _, pl := range players {
		if pl.IsBot {
			continue
		}
		u, err := uow.Users().GetByID(ctx, pl.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUserMissing, pl.UserID)
		}
		if err != nil {
			return err
		}
		if u.ChipBalance < stake {
			return fmt.Errorf("%w: user %s has %d, needs %d",
				ErrInsufficientBalance, pl.UserID, u.ChipBalance, stake)
		}

		before := u.ChipBalance
		u.ChipBalance -= stake
		if err := uow.Users().Update(ctx, u); err != nil {
			return err
		}
		err = uow.Transactions().Add(ctx, &store.ChipTransaction{
			ID:              uuid.NewString(),
			UserID:          pl.UserID,
			GameHistoryID:   gameID,
			Type:            store.TxGameStake,
			Amount:          -stake,
			BalanceBefore:   before,
			BalanceAfter:    before + -stake,
			Description:     "Table stake",
			ReferenceNumber: uuid.NewString(),
			IdempotencyKey:  stakeKey(gameID, pl.UserID),
			CreatedAt:       now,
		})
		if errors.Is(err, store.ErrDuplicate) {
			// Already collected for this game.
			return nil
		}
		if err != nil {
			return err
		}
	}
	return uow.Commit()
}

// Settle runs the terminal money and rating movement exactly once per
// game. It returns the per-player results for the game history.
func (p *Pipeline) Settle(ctx context.Context, res Result) ([]store.PlayerResult, error) {
	// Replay short-circuit.
	if _, err := p.store.Transactions().GetByIdempotencyKey(ctx, settleKey(res.GameID)); err == nil {
		p.logger.Debug().Str("game_id", res.GameID).Msg("Settlement already applied")
		return nil, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	uow, err := p.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	users := make(map[string]*store.User, len(res.Players))
	ratings := make([]Rating, len(res.Players))
	winnerIdx := -1
	for i, pl := range res.Players {
		if pl.UserID == res.WinnerID && res.WinnerID != "" {
			winnerIdx = i
		}
		if pl.IsBot {
			ratings[i] = Rating{Elo: botElo, GamesPlayed: botGamesPlayed}
			continue
		}
		u, err := uow.Users().GetByID(ctx, pl.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserMissing, pl.UserID)
		}
		if err != nil {
			return nil, err
		}
		users[pl.UserID] = u
		ratings[i] = Rating{Elo: u.EloScore, GamesPlayed: u.GamesPlayed}
	}

	totalPot := res.Stake * int64(len(res.Players))
	rake := Rake(totalPot)
	winnerPayout := totalPot - rake

	var changes []int
	if winnerIdx >= 0 {
		changes = EloChanges(ratings, winnerIdx, res.WinType)
	} else {
		changes = EloDrawChanges(ratings)
	}

	now := p.clock.Now().UTC()
	results := make([]store.PlayerResult, len(res.Players))
	var txs []*store.ChipTransaction

	for i, pl := range res.Players {
		results[i] = store.PlayerResult{
			UserID:      pl.UserID,
			DisplayName: pl.DisplayName,
			Seat:        pl.Seat,
			IsBot:       pl.IsBot,
			IsWinner:    i == winnerIdx,
			EloDelta:    changes[i],
		}
		if i == winnerIdx {
			results[i].Score = res.WinScore
		}
		if pl.IsBot {
			continue
		}
		u := users[pl.UserID]

		switch {
		case i == winnerIdx:
			// Stake was debited at collection; crediting the full
			// payout leaves the net at payout minus stake and keeps
			// winner + rake equal to the losers' stakes.
			before := u.ChipBalance
			u.ChipBalance += winnerPayout
			results[i].ChipsDelta = winnerPayout - res.Stake
			u.GamesWon++
			txs = append(txs, &store.ChipTransaction{
				ID:              uuid.NewString(),
				UserID:          pl.UserID,
				GameHistoryID:   res.GameID,
				Type:            store.TxGameWin,
				Amount:          winnerPayout,
				BalanceBefore:   before,
				BalanceAfter:    before + winnerPayout,
				Description:     fmt.Sprintf("Game win (%s), net %d", res.WinType, winnerPayout-res.Stake),
				ReferenceNumber: uuid.NewString(),
				IdempotencyKey:  settleKey(res.GameID),
				CreatedAt:       now,
			})

		case winnerIdx < 0 && res.Stake > 0:
			// Draw: the stake comes back.
			before := u.ChipBalance
			u.ChipBalance += res.Stake
			results[i].ChipsDelta = 0
			txs = append(txs, &store.ChipTransaction{
				ID:              uuid.NewString(),
				UserID:          pl.UserID,
				GameHistoryID:   res.GameID,
				Type:            store.TxGameWin,
				Amount:          res.Stake,
				BalanceBefore:   before,
				BalanceAfter:    before + res.Stake,
				Description:     "Stake returned (deck empty)",
				ReferenceNumber: uuid.NewString(),
				IdempotencyKey:  fmt.Sprintf("game-draw-%s-%s", res.GameID, pl.UserID),
				CreatedAt:       now,
			})

		default:
			// Loser: stake already gone, record the outcome.
			results[i].ChipsDelta = -res.Stake
			txs = append(txs, &store.ChipTransaction{
				ID:              uuid.NewString(),
				UserID:          pl.UserID,
				GameHistoryID:   res.GameID,
				Type:            store.TxGameLoss,
				Amount:          0,
				BalanceBefore:   u.ChipBalance,
				BalanceAfter:    u.ChipBalance,
				Description:     fmt.Sprintf("Game loss (%s)", res.WinType),
				ReferenceNumber: uuid.NewString(),
				CreatedAt:       now,
			})
		}

		u.GamesPlayed++
		u.EloScore = ApplyFloor(u.EloScore + changes[i])
		if u.EloScore > u.HighestElo {
			u.HighestElo = u.EloScore
		}
		if err := uow.Users().Update(ctx, u); err != nil {
			return nil, err
		}
	}

	// The replay short-circuit looks for the settle key; make sure one
	// ledger entry carries it even when the winner is a bot or the game
	// was a draw.
	if len(txs) > 0 {
		keyed := false
		for _, tx := range txs {
			if tx.IdempotencyKey == settleKey(res.GameID) {
				keyed = true
				break
			}
		}
		if !keyed {
			txs[0].IdempotencyKey = settleKey(res.GameID)
		}
	}

	if err := uow.Transactions().AddRange(ctx, txs); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Raced with another settlement of the same game.
			return nil, nil
		}
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("game_id", res.GameID).
		Str("winner_id", res.WinnerID).
		Int64("pot", totalPot).
		Int64("rake", rake).
		Msg("Settlement committed")
	return results, nil
}

// Refund credits every collected stake back, keyed per user so replays
// are no-ops. Used when a game cancels after collection.
func (p *Pipeline) Refund(ctx context.Context, gameID string, players []Participant, stake int64) error {
	if stake == 0 {
		return nil
	}

	uow, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	now := p.clock.Now().UTC()
	for _, pl := range players {
		if pl.IsBot {
			continue
		}
		// Only refund what was actually collected.
		if _, err := uow.Transactions().GetByIdempotencyKey(ctx, stakeKey(gameID, pl.UserID)); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return err
		}
		u, err := uow.Users().GetByID(ctx, pl.UserID)
		if err != nil {
			return err
		}
		before := u.ChipBalance
		u.ChipBalance += stake
		if err := uow.Users().Update(ctx, u); err != nil {
			return err
		}
		err = uow.Transactions().Add(ctx, &store.ChipTransaction{
			ID:              uuid.NewString(),
			UserID:          pl.UserID,
			GameHistoryID:   gameID,
			Type:            store.TxGameWin,
			Amount:          stake,
			BalanceBefore:   before,
			BalanceAfter:    before + stake,
			Description:     "Stake refund (game cancelled)",
			ReferenceNumber: uuid.NewString(),
			IdempotencyKey:  refundKey(gameID, pl.UserID),
			CreatedAt:       now,
		})
		if errors.Is(err, store.ErrDuplicate) {
			// Already refunded.
			return nil
		}
		if err != nil {
			return err
		}
	}
	return uow.Commit()
}

// WithRetry runs op up to three times with backoff, for transient store
// failures around settlement. Permanent errors stop immediately.
func (p *Pipeline) WithRetry(ctx context.Context, name string, op func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil ||
			errors.Is(err, ErrInsufficientBalance) ||
			errors.Is(err, ErrUserMissing) {
			return err
		}
		if attempt >= len(retryBackoff) {
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempt+1, err)
		}

		p.logger.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt+1).
			Msg("Retrying after transient failure")

		timer := p.clock.NewTimer(retryBackoff[attempt])
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
