package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okeynet/okeyd/internal/bot"
	"github.com/okeynet/okeyd/internal/fairness"
	"github.com/okeynet/okeyd/internal/gameid"
	"github.com/okeynet/okeyd/internal/protocol"
	"github.com/okeynet/okeyd/internal/rules"
	"github.com/okeynet/okeyd/internal/settle"
	"github.com/okeynet/okeyd/internal/store"
	"github.com/okeynet/okeyd/internal/tile"
	"github.com/okeynet/okeyd/internal/timer"
)

func (r *Room) now() time.Time { return r.deps.Clock.Now().UTC() }

// sendTo delivers an event to one seat. Bots and empty seats are skipped;
// the transport drops messages for closed connections.
func (r *Room) sendTo(p *Player, msgType string, payload any) {
	if p == nil || p.IsBot || !p.Connected || p.ConnID == "" {
		return
	}
	r.deps.Sender.Send(p.ConnID, msgType, payload)
}

func (r *Room) broadcast(msgType string, payload any) {
	for _, p := range r.players {
		r.sendTo(p, msgType, payload)
	}
}

func (r *Room) setPhase(next Phase) {
	if r.phase == next {
		return
	}
	old := r.phase
	r.phase = next
	r.logger.Info().
		Str("from", old.String()).
		Str("to", next.String()).
		Msg("Phase changed")
	r.broadcast(protocol.TypeOnGamePhaseChanged, protocol.OnGamePhaseChanged{
		OldPhase: old.String(),
		NewPhase: next.String(),
	})
}

// handleStart runs the full game start: bot fill, stake collection, the
// committed shuffle, the deal, and the dealer's opening turn.
func (r *Room) handleStart(cmd command, withBots bool) {
	p := r.playerByID(cmd.playerID)
	if p == nil {
		return
	}
	if r.phase != PhaseWaiting && r.phase != PhaseReady {
		r.fail(p, protocol.ErrKindInvalidPhase, "game already started")
		return
	}
	if p.Position != 0 {
		r.fail(p, protocol.ErrKindInvalidAction, "only the table owner can start the game")
		return
	}

	// Open seats are always filled with bots; a plain start gets Normal
	// ones, the explicit variant honours the requested difficulty.
	difficulty := bot.Normal
	if withBots {
		difficulty = bot.ParseDifficulty(cmd.difficulty)
	}
	for len(r.players) < MaxPlayers {
		identity := bot.NewIdentity(r.rng, r.botSeq)
		r.botSeq++
		seat := &Player{
			ID:          identity.ID,
			DisplayName: identity.DisplayName,
			Position:    r.freePosition(),
			IsBot:       true,
		}
		r.players = append(r.players, seat)
		r.bots[seat.ID] = bot.NewEngine(difficulty, r.rng)
		r.broadcast(protocol.TypeOnPlayerJoined, protocol.OnPlayerJoined{
			PlayerID:     seat.ID,
			PlayerName:   seat.DisplayName,
			Position:     seat.Position,
			TotalPlayers: len(r.players),
		})
	}
	if r.phase == PhaseWaiting {
		r.setPhase(PhaseReady)
	}

	ctx := context.Background()
	gameID := gameid.New()
	err := r.deps.Pipeline.WithRetry(ctx, "collect stakes", func(ctx context.Context) error {
		return r.deps.Pipeline.CollectStakes(ctx, gameID, r.stake, r.participants())
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("Stake collection failed")
		kind := protocol.ErrKindInternal
		if errors.Is(err, settle.ErrInsufficientBalance) {
			kind = protocol.ErrKindInsufficientBalance
		}
		r.fail(p, kind, "could not collect table stakes")
		return
	}
	r.gameID = gameID
	r.stakesHeld = r.stake > 0

	r.setPhase(PhaseShuffling)
	serverSeed, err := fairness.NewServerSeed()
	if err != nil {
		r.logger.Error().Err(err).Msg("Server seed generation failed")
		r.cancelGame("internal server error")
		return
	}
	nonce := r.deps.Nonces.Next()
	drng := fairness.NewDetRNG(serverSeed, r.clientSeed, nonce)
	shuffled := rules.Shuffle(tile.FullSet(), drng)
	initialState := tile.Serialize(shuffled)
	commitment := fairness.NewCommitment(serverSeed, initialState, nonce, r.clientSeed, r.now())
	r.commitment = &commitment

	indicator, rest := rules.ChooseIndicator(shuffled, drng)
	r.indicator = indicator

	r.setPhase(PhaseDealing)
	hands, deck := rules.Deal(rest)
	r.deck = deck
	r.discard = nil
	for _, seat := range r.players {
		seat.Hand = hands[seat.Position]
		seat.HasDrawn = false
	}

	hist := &store.GameHistory{
		ID:             gameID,
		RoomID:         r.id,
		StartedAt:      r.now(),
		Status:         store.StatusInProgress,
		TableStake:     r.stake,
		ServerSeedHash: commitment.Hash,
	}
	err = r.deps.Pipeline.WithRetry(ctx, "record game start", func(ctx context.Context) error {
		return r.deps.Store.Histories().Add(ctx, hist)
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("Could not record game start")
		r.cancelGame("internal server error")
		return
	}
	r.history = hist

	// Bots know their own tiles and the public indicator, nothing else.
	for id, eng := range r.bots {
		if seat := r.playerByID(id); seat != nil {
			eng.Memory().ObserveAll(seat.Hand)
		}
		eng.Memory().Observe(indicator)
	}

	// The dealer opens with 15 tiles and discards first.
	r.turnPos = 0
	r.turnNumber = 1
	r.turnPhase = TurnWaitingForDiscard
	r.setPhase(PhasePlaying)

	for _, seat := range r.players {
		r.sendTo(seat, protocol.TypeOnGameStarted, protocol.OnGameStarted{
			RoomID:         r.id,
			InitialState:   r.projectionFor(seat),
			ServerSeedHash: commitment.Hash,
		})
	}

	dealer := r.currentPlayer()
	r.timer.Start(dealer.ID, r.turnNumber, timer.DefaultDuration)
	r.broadcast(protocol.TypeOnTurnChanged, protocol.OnTurnChanged{
		PlayerID:   dealer.ID,
		PlayerName: dealer.DisplayName,
		Position:   dealer.Position,
		TimeLeft:   int(timer.DefaultDuration.Seconds()),
		TurnNumber: r.turnNumber,
		TurnPhase:  r.turnPhase.String(),
	})
	if dealer.IsBot {
		r.scheduleBotMove()
	}

	r.logger.Info().
		Str("game_id", gameID).
		Uint64("nonce", nonce).
		Int64("stake", r.stake).
		Msg("Game started")
}

func (r *Room) handleDraw(cmd command, fromDiscard bool) {
	p, ok := r.currentTurnActor(cmd)
	if !ok {
		return
	}
	if r.turnPhase != TurnWaitingForDraw {
		r.fail(p, protocol.ErrKindInvalidAction, "a tile was already drawn this turn")
		return
	}
	if fromDiscard && len(r.discard) == 0 {
		r.fail(p, protocol.ErrKindInvalidAction, "discard pile is empty")
		return
	}
	if !fromDiscard && len(r.deck) == 0 {
		r.fail(p, protocol.ErrKindInvalidAction, "deck is empty")
		return
	}
	r.performDraw(p, fromDiscard)
}

func (r *Room) handleDiscard(cmd command) {
	p, ok := r.currentTurnActor(cmd)
	if !ok {
		return
	}
	if r.turnPhase != TurnWaitingForDiscard {
		r.fail(p, protocol.ErrKindInvalidAction, "draw a tile before discarding")
		return
	}
	r.performDiscard(p, cmd.tileID)
}

func (r *Room) handleDeclareWin(cmd command) {
	p, ok := r.currentTurnActor(cmd)
	if !ok {
		return
	}
	if r.turnPhase != TurnWaitingForDiscard {
		r.fail(p, protocol.ErrKindInvalidAction, "draw a tile before declaring a win")
		return
	}

	res := rules.CheckWinWithDiscard(p.Hand, cmd.tileID)
	if !res.Winning {
		r.fail(p, protocol.ErrKindInvalidAction, "hand does not win with that discard")
		return
	}

	if !r.removeFromHand(p, cmd.tileID) {
		r.fail(p, protocol.ErrKindInvalidAction, "tile not in hand")
		return
	}
	r.discard = append(r.discard, res.Discard)
	r.finishGame(p.ID, res.Type, res.Score)
}

// currentTurnActor validates that a playing-phase command comes from the
// player whose turn it is. Failures are reported to the caller only.
func (r *Room) currentTurnActor(cmd command) (*Player, bool) {
	p := r.playerByID(cmd.playerID)
	if p == nil {
		return nil, false
	}
	if r.phase != PhasePlaying {
		r.fail(p, protocol.ErrKindInvalidPhase, "no game in progress")
		return nil, false
	}
	cur := r.currentPlayer()
	if cur == nil || cur.ID != p.ID {
		msg := "not your turn"
		if cur != nil {
			msg = fmt.Sprintf("it is %s's turn (player %s)", cur.DisplayName, cur.ID)
		}
		r.fail(p, protocol.ErrKindNotYourTurn, msg)
		return nil, false
	}
	return p, true
}

func (r *Room) performDraw(p *Player, fromDiscard bool) {
	var t tile.Tile
	if fromDiscard {
		t = r.discard[len(r.discard)-1]
		r.discard = r.discard[:len(r.discard)-1]
		// A public pickup tells every bot which faces this seat collects.
		for id, eng := range r.bots {
			if id == p.ID {
				continue
			}
			eng.Memory().RecordDiscardPickup(p.Position, t)
		}
	} else {
		t = r.deck[len(r.deck)-1]
		r.deck = r.deck[:len(r.deck)-1]
		// A blind draw is private, but the drawer itself has seen it.
		if eng := r.bots[p.ID]; eng != nil {
			eng.Memory().Observe(t)
		}
	}
	p.Hand = append(p.Hand, t)
	p.HasDrawn = true
	r.turnPhase = TurnWaitingForDiscard

	r.sendTo(p, protocol.TypeOnTileDrawn, protocol.OnTileDrawn{
		Tile:        toProtoTile(t),
		FromDiscard: fromDiscard,
		Timestamp:   r.now(),
	})
	for _, q := range r.players {
		if q.ID == p.ID {
			continue
		}
		r.sendTo(q, protocol.TypeOnOpponentDrewTile, protocol.OnOpponentDrewTile{
			PlayerID:    p.ID,
			FromDiscard: fromDiscard,
			Timestamp:   r.now(),
		})
	}
	r.broadcast(protocol.TypeOnDeckUpdated, protocol.OnDeckUpdated{
		RemainingTileCount: len(r.deck),
		DiscardPileCount:   len(r.discard),
	})
	r.checkConservation()
}

func (r *Room) performDiscard(p *Player, tileID int) {
	idx := -1
	for i, t := range p.Hand {
		if t.ID == tileID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.fail(p, protocol.ErrKindInvalidAction, "tile not in hand")
		return
	}
	t := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	p.HasDrawn = false
	r.discard = append(r.discard, t)

	for _, eng := range r.bots {
		eng.Memory().Observe(t)
	}

	if len(r.deck) == 0 {
		r.broadcast(protocol.TypeOnTileDiscarded, protocol.OnTileDiscarded{
			PlayerID:  p.ID,
			TileID:    t.ID,
			Tile:      toProtoTile(t),
			Timestamp: r.now(),
		})
		// Nobody can draw; the game is a draw and stakes come back.
		r.finishGame("", rules.WinDeckEmpty, 0)
		return
	}

	nextPos := rules.NextSeat(p.Position)
	next := r.playerAt(nextPos)
	r.broadcast(protocol.TypeOnTileDiscarded, protocol.OnTileDiscarded{
		PlayerID:         p.ID,
		TileID:           t.ID,
		Tile:             toProtoTile(t),
		NextTurnPlayerID: next.ID,
		NextTurnPosition: nextPos,
		Timestamp:        r.now(),
	})

	r.turnPos = nextPos
	r.turnNumber++
	r.turnPhase = TurnWaitingForDraw
	r.timer.Start(next.ID, r.turnNumber, timer.DefaultDuration)
	r.broadcast(protocol.TypeOnTurnChanged, protocol.OnTurnChanged{
		PlayerID:   next.ID,
		PlayerName: next.DisplayName,
		Position:   nextPos,
		TimeLeft:   int(timer.DefaultDuration.Seconds()),
		TurnNumber: r.turnNumber,
		TurnPhase:  r.turnPhase.String(),
	})
	r.checkConservation()

	if next.IsBot {
		r.scheduleBotMove()
	}
}

// handleBotMove applies one half-step of the current bot's turn: the draw
// first, then the discard or win on a later pass. Stale moves from a
// superseded turn are dropped.
func (r *Room) handleBotMove(cmd command) {
	if r.phase != PhasePlaying || cmd.turnNumber != r.turnNumber {
		return
	}
	cur := r.currentPlayer()
	if cur == nil || !cur.IsBot {
		return
	}
	eng := r.bots[cur.ID]
	if eng == nil {
		return
	}

	if r.turnPhase == TurnWaitingForDraw {
		var top *tile.Tile
		if n := len(r.discard); n > 0 {
			t := r.discard[n-1]
			top = &t
		}
		fromDiscard := eng.DecideDrawSource(cur.Hand, top) == bot.DrawDiscard
		r.performDraw(cur, fromDiscard)
		if r.phase == PhasePlaying {
			r.scheduleBotMove()
		}
		return
	}

	dec := eng.DecideDiscard(cur.Hand)
	if dec.DeclareWin {
		res := rules.CheckWinWithDiscard(cur.Hand, dec.Discard.ID)
		if res.Winning && r.removeFromHand(cur, dec.Discard.ID) {
			r.discard = append(r.discard, res.Discard)
			r.finishGame(cur.ID, res.Type, res.Score)
			return
		}
	}
	r.performDiscard(cur, dec.Discard.ID)
}

// scheduleBotMove queues the current bot's next half-step after its think
// time. The captured turn number invalidates the move if the turn ends
// first.
func (r *Room) scheduleBotMove() {
	cur := r.currentPlayer()
	if cur == nil || !cur.IsBot {
		return
	}
	eng := r.bots[cur.ID]
	if eng == nil {
		return
	}
	playerID := cur.ID
	turn := r.turnNumber
	r.deps.Clock.AfterFunc(eng.ThinkTime(), func() {
		r.enqueue(command{kind: cmdBotMove, playerID: playerID, turnNumber: turn})
	})
}

func (r *Room) handleTimerEvent(ev timer.Event) {
	if r.phase != PhasePlaying || ev.TurnNumber != r.turnNumber {
		return
	}
	switch ev.Kind {
	case timer.EventTick:
		r.broadcast(protocol.TypeOnTurnTimerTick, protocol.OnTurnTimerTick{
			PlayerID:   ev.PlayerID,
			TimeLeft:   ev.Remaining,
			IsCritical: ev.Critical,
		})
	case timer.EventTimeout:
		cur := r.currentPlayer()
		if cur == nil || cur.ID != ev.PlayerID {
			return
		}
		r.logger.Info().
			Str("player_id", cur.ID).
			Int("turn", r.turnNumber).
			Msg("Turn timed out")
		r.broadcast(protocol.TypeOnPlayerTimeout, protocol.OnPlayerTimeout{
			PlayerID:   cur.ID,
			TurnNumber: r.turnNumber,
		})
		r.fail(cur, protocol.ErrKindTimeExpired, "turn timer expired")
		r.broadcast(protocol.TypeOnAutoPlayTriggered, protocol.OnAutoPlayTriggered{
			PlayerID: cur.ID,
			Reason:   "Timeout",
		})
		r.autoPlay(cur)
	}
}

// autoPlay completes a timed-out turn with a transient easy engine over
// the player's real hand, so a hand that already wins still wins.
func (r *Room) autoPlay(p *Player) {
	eng := bot.NewEngine(bot.Easy, r.rng)
	if r.turnPhase == TurnWaitingForDraw {
		var top *tile.Tile
		if n := len(r.discard); n > 0 {
			t := r.discard[n-1]
			top = &t
		}
		fromDiscard := eng.DecideDrawSource(p.Hand, top) == bot.DrawDiscard
		r.performDraw(p, fromDiscard)
		if r.phase != PhasePlaying {
			return
		}
	}

	dec := eng.DecideDiscard(p.Hand)
	if dec.DeclareWin {
		res := rules.CheckWinWithDiscard(p.Hand, dec.Discard.ID)
		if res.Winning && r.removeFromHand(p, dec.Discard.ID) {
			r.discard = append(r.discard, res.Discard)
			r.finishGame(p.ID, res.Type, res.Score)
			return
		}
	}
	r.performDiscard(p, dec.Discard.ID)
	if r.phase == PhasePlaying {
		// The client missed its own turn; ship a snapshot so it can resync.
		r.sendTo(p, protocol.TypeOnGameStateUpdated, protocol.OnGameStateUpdated{
			State: r.projectionFor(p),
		})
	}
}

// finishGame settles, reveals the commitment, persists the outcome and
// announces it. An empty winnerID is a deck-empty draw.
func (r *Room) finishGame(winnerID string, winType rules.WinType, winScore int) {
	r.timer.Stop()
	ctx := context.Background()

	res := settle.Result{
		GameID:   r.history.ID,
		Stake:    r.stake,
		WinType:  winType,
		WinScore: winScore,
		WinnerID: winnerID,
		Players:  r.participants(),
	}
	var results []store.PlayerResult
	err := r.deps.Pipeline.WithRetry(ctx, "settle game", func(ctx context.Context) error {
		rs, err := r.deps.Pipeline.Settle(ctx, res)
		if err == nil && rs != nil {
			results = rs
		}
		return err
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("Settlement failed")
		r.cancelGame("settlement failed")
		return
	}
	r.stakesHeld = false

	reveal := r.commitment.Reveal(r.now())
	h := r.history
	h.EndedAt = r.now()
	h.Status = store.StatusCompleted
	h.WinnerID = winnerID
	h.WinType = winType.String()
	h.WinScore = winScore
	if winnerID != "" {
		h.Rake = settle.Rake(r.stake * int64(len(r.players)))
	}
	h.PlayerResults = results
	h.ServerSeed = reveal.ServerSeed
	h.InitialState = reveal.InitialState
	h.ClientSeed = reveal.ClientSeed
	h.Nonce = reveal.Nonce
	err = r.deps.Pipeline.WithRetry(ctx, "record game end", func(ctx context.Context) error {
		return r.deps.Store.Histories().Update(ctx, h)
	})
	if err != nil {
		// Money already moved; the reveal still goes out.
		r.logger.Error().Err(err).Str("game_id", h.ID).Msg("Could not record game end")
	}

	r.setPhase(PhaseFinished)
	r.broadcast(protocol.TypeOnGameEnded, protocol.OnGameEnded{
		RoomID:    r.id,
		WinnerID:  winnerID,
		WinType:   winType.String(),
		WinScore:  winScore,
		Reveal:    toProtoReveal(h.ID, reveal),
		Timestamp: r.now(),
	})
	r.refreshLeaderboard(ctx)

	r.logger.Info().
		Str("game_id", h.ID).
		Str("winner_id", winnerID).
		Str("win_type", winType.String()).
		Msg("Game finished")
}

// cancelGame aborts a started game: held stakes are refunded, the
// commitment is still revealed, and the history records the cancellation.
func (r *Room) cancelGame(reason string) {
	if r.phase.terminal() {
		return
	}
	r.timer.Stop()
	ctx := context.Background()

	// Stakes may be held before the history row exists, so the refund
	// keys off the game id recorded at collection time.
	if r.stakesHeld && r.gameID != "" {
		gameID := r.gameID
		err := r.deps.Pipeline.WithRetry(ctx, "refund stakes", func(ctx context.Context) error {
			return r.deps.Pipeline.Refund(ctx, gameID, r.participants(), r.stake)
		})
		if err != nil {
			r.logger.Error().Err(err).Str("game_id", gameID).Msg("Refund failed")
		} else {
			r.stakesHeld = false
		}
	}

	var reveal fairness.Reveal
	if r.commitment != nil {
		reveal = r.commitment.Reveal(r.now())
	}
	if r.history != nil {
		h := r.history
		h.EndedAt = r.now()
		h.Status = store.StatusCancelled
		h.ServerSeed = reveal.ServerSeed
		h.InitialState = reveal.InitialState
		h.ClientSeed = reveal.ClientSeed
		h.Nonce = reveal.Nonce
		if err := r.deps.Store.Histories().Update(ctx, h); err != nil {
			r.logger.Error().Err(err).Str("game_id", h.ID).Msg("Could not record cancellation")
		}
	}

	r.setPhase(PhaseCancelled)
	ended := protocol.OnGameEnded{
		RoomID:    r.id,
		WinType:   "Cancelled",
		Reason:    reason,
		Timestamp: r.now(),
	}
	if r.commitment != nil {
		historyID := ""
		if r.history != nil {
			historyID = r.history.ID
		}
		ended.Reveal = toProtoReveal(historyID, reveal)
	}
	r.broadcast(protocol.TypeOnGameEnded, ended)

	r.logger.Info().Str("reason", reason).Msg("Game cancelled")
}

func (r *Room) refreshLeaderboard(ctx context.Context) {
	if r.deps.Leaderboard == nil {
		return
	}
	var ids []string
	for _, p := range r.players {
		if !p.IsBot {
			ids = append(ids, p.ID)
		}
	}
	users, err := r.deps.Store.Users().GetByIDs(ctx, ids)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Leaderboard refresh skipped")
		return
	}
	r.deps.Leaderboard.UpdateAsync(users)
}

// projectionFor is the per-player view: the receiver's full hand, tile
// counts for everyone else. Opponent tiles never leave the room.
func (r *Room) projectionFor(p *Player) protocol.GameState {
	state := protocol.GameState{
		RoomID:         r.id,
		Phase:          r.phase.String(),
		TurnPhase:      r.turnPhase.String(),
		Hand:           toProtoTiles(p.Hand),
		DeckCount:      len(r.deck),
		DiscardCount:   len(r.discard),
		CurrentTurnPos: r.turnPos,
		TurnNumber:     r.turnNumber,
		ServerTime:     r.now(),
	}
	if cur := r.currentPlayer(); cur != nil {
		state.CurrentTurnPlayer = cur.ID
	}
	if r.commitment != nil {
		state.CommitmentHash = r.commitment.Hash
		ind := toProtoTile(r.indicator)
		state.Indicator = &ind
	}
	if n := len(r.discard); n > 0 {
		top := toProtoTile(r.discard[n-1])
		state.DiscardTop = &top
	}
	for _, q := range r.players {
		if q.ID == p.ID {
			continue
		}
		state.Opponents = append(state.Opponents, protocol.OpponentView{
			PlayerID:    q.ID,
			DisplayName: q.DisplayName,
			Position:    q.Position,
			TileCount:   len(q.Hand),
			IsBot:       q.IsBot,
			IsConnected: q.Connected || q.IsBot,
		})
	}
	return state
}

// checkConservation verifies that deck, discards, hands and the indicator
// still account for all 106 tiles. A violation means corrupted state; the
// game cannot continue.
func (r *Room) checkConservation() {
	if r.phase != PhasePlaying {
		return
	}
	total := len(r.deck) + len(r.discard) + 1
	for _, p := range r.players {
		total += len(p.Hand)
	}
	if total != tile.SetSize {
		r.logger.Error().Int("total", total).Msg("Tile conservation violated")
		r.cancelGame("internal state error")
	}
}

func (r *Room) playerAt(pos int) *Player {
	for _, p := range r.players {
		if p.Position == pos {
			return p
		}
	}
	return nil
}

func (r *Room) removeFromHand(p *Player, tileID int) bool {
	for i, t := range p.Hand {
		if t.ID == tileID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

func toProtoTile(t tile.Tile) protocol.Tile {
	return protocol.Tile{
		ID:           t.ID,
		Color:        t.Color.String(),
		Value:        t.Value,
		IsFalseJoker: t.IsFalseJoker,
		IsOkey:       t.IsOkey,
	}
}

func toProtoTiles(ts []tile.Tile) []protocol.Tile {
	out := make([]protocol.Tile, len(ts))
	for i, t := range ts {
		out[i] = toProtoTile(t)
	}
	return out
}

func toProtoReveal(gameHistoryID string, r fairness.Reveal) protocol.Reveal {
	return protocol.Reveal{
		GameHistoryID:  gameHistoryID,
		ServerSeed:     r.ServerSeed,
		InitialState:   r.InitialState,
		Nonce:          r.Nonce,
		ClientSeed:     r.ClientSeed,
		CommitmentHash: r.Hash,
	}
}
