package room

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okeynet/okeyd/internal/bot"
	"github.com/okeynet/okeyd/internal/fairness"
	"github.com/okeynet/okeyd/internal/protocol"
	"github.com/okeynet/okeyd/internal/randutil"
	"github.com/okeynet/okeyd/internal/registry"
	"github.com/okeynet/okeyd/internal/rules"
	"github.com/okeynet/okeyd/internal/settle"
	"github.com/okeynet/okeyd/internal/store"
	"github.com/okeynet/okeyd/internal/tile"
	"github.com/okeynet/okeyd/internal/timer"
)

type sentMsg struct {
	connID  string
	msgType string
	payload any
}

type captureSender struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (s *captureSender) Send(connID, msgType string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, sentMsg{connID: connID, msgType: msgType, payload: payload})
}

func (s *captureSender) ofType(msgType string) []sentMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMsg
	for _, m := range s.msgs {
		if m.msgType == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (s *captureSender) lastTo(connID, msgType string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].connID == connID && s.msgs[i].msgType == msgType {
			return s.msgs[i].payload, true
		}
	}
	return nil, false
}

type fixture struct {
	room   *Room
	store  *store.Store
	sender *captureSender
	clock  *quartz.Mock
}

func newFixture(t *testing.T, stake int64) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := quartz.NewMock(t)
	logger := zerolog.Nop()
	sender := &captureSender{}
	deps := Deps{
		Registry: registry.New(clock),
		Store:    st,
		Pipeline: settle.New(st, clock, logger),
		Sender:   sender,
		Clock:    clock,
		Nonces:   &fairness.NonceSource{},
		Logger:   logger,
		BotSeed:  7,
	}
	return &fixture{
		room:   New("room-1", "Test Table", stake, deps),
		store:  st,
		sender: sender,
		clock:  clock,
	}
}

func (f *fixture) seedUser(t *testing.T, id string, balance int64) {
	t.Helper()
	require.NoError(t, f.store.Users().Add(context.Background(), &store.User{
		ID:          id,
		Username:    id,
		DisplayName: id,
		ChipBalance: balance,
		EloScore:    1000,
		HighestElo:  1000,
		IsActive:    true,
	}))
}

func conn(id string) string { return "conn-" + id }

func (f *fixture) join(id string) {
	f.room.handle(command{kind: cmdJoin, playerID: id, displayName: id, connID: conn(id)})
}

func tileTotal(r *Room) int {
	total := len(r.deck) + len(r.discard) + 1
	for _, p := range r.players {
		total += len(p.Hand)
	}
	return total
}

// playUntilDone drives the loop to a terminal phase, humans steered by
// the engines map.
func (f *fixture) playUntilDone(t *testing.T, engines map[string]*bot.Engine) {
	t.Helper()
	r := f.room
	for steps := 0; steps < 4000; steps++ {
		if r.phase != PhasePlaying {
			return
		}
		require.Equal(t, tile.SetSize, tileTotal(r), "tile conservation broken at step %d", steps)

		cur := r.currentPlayer()
		require.NotNil(t, cur)
		if cur.IsBot {
			r.handle(command{kind: cmdBotMove, playerID: cur.ID, turnNumber: r.turnNumber})
			continue
		}

		eng := engines[cur.ID]
		require.NotNil(t, eng, "no engine for human %s", cur.ID)
		if r.turnPhase == TurnWaitingForDraw {
			kind := cmdDrawDeck
			var top *tile.Tile
			if n := len(r.discard); n > 0 {
				tt := r.discard[n-1]
				top = &tt
			}
			if eng.DecideDrawSource(cur.Hand, top) == bot.DrawDiscard {
				kind = cmdDrawDiscard
			}
			r.handle(command{kind: kind, playerID: cur.ID})
			continue
		}
		dec := eng.DecideDiscard(cur.Hand)
		if dec.DeclareWin {
			r.handle(command{kind: cmdDeclareWin, playerID: cur.ID, tileID: dec.Discard.ID})
		} else {
			r.handle(command{kind: cmdDiscard, playerID: cur.ID, tileID: dec.Discard.ID})
		}
	}
	t.Fatal("game did not reach a terminal phase")
}

func TestJoinFillsSeatsAndReady(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.join(id)
	}

	require.Len(t, f.room.players, 4)
	for i, id := range []string{"alice", "bob", "carol", "dave"} {
		assert.Equal(t, i, f.room.players[i].Position)
		assert.Equal(t, id, f.room.players[i].ID)
	}
	assert.Equal(t, PhaseReady, f.room.phase)
	assert.Len(t, f.sender.ofType(protocol.TypeRoomJoined), 4)

	f.join("eve")
	payload, ok := f.sender.lastTo(conn("eve"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrKindInvalidAction, payload.(protocol.OnError).Kind)
	assert.Len(t, f.room.players, 4)
}

func TestStartRequiresOwner(t *testing.T) {
	f := newFixture(t, 0)
	f.join("alice")
	f.join("bob")

	f.room.handle(command{kind: cmdStart, playerID: "bob"})
	payload, ok := f.sender.lastTo(conn("bob"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrKindInvalidAction, payload.(protocol.OnError).Kind)
	assert.Equal(t, PhaseWaiting, f.room.phase)
}

func TestStartFillsOpenSeatsWithNormalBots(t *testing.T) {
	f := newFixture(t, 0)
	f.join("alice")
	f.join("bob")
	f.room.handle(command{kind: cmdStart, playerID: "alice"})
	r := f.room

	require.Equal(t, PhasePlaying, r.phase)
	require.Len(t, r.players, 4)
	require.Len(t, r.bots, 2)
	for _, eng := range r.bots {
		assert.Equal(t, bot.Normal, eng.Difficulty())
	}
	joined := f.sender.ofType(protocol.TypeOnPlayerJoined)
	assert.NotEmpty(t, joined, "bot seats are announced like any other join")
}

func TestStartWithBotsDealsHands(t *testing.T) {
	f := newFixture(t, 0)
	f.join("alice")
	f.room.handle(command{kind: cmdStartWithBots, playerID: "alice", difficulty: "hard"})
	r := f.room

	require.Equal(t, PhasePlaying, r.phase)
	require.Len(t, r.players, 4)
	require.Len(t, r.bots, 3)
	for _, eng := range r.bots {
		assert.Equal(t, bot.Hard, eng.Difficulty())
	}

	// Dealer (seat 0) holds 15 and discards first.
	assert.Len(t, r.playerAt(0).Hand, 15)
	for pos := 1; pos < 4; pos++ {
		assert.Len(t, r.playerAt(pos).Hand, 14)
	}
	assert.Len(t, r.deck, 48)
	assert.Equal(t, TurnWaitingForDiscard, r.turnPhase)
	assert.Equal(t, 0, r.turnPos)
	assert.Equal(t, 1, r.turnNumber)
	assert.Equal(t, tile.SetSize, tileTotal(r))

	require.NotNil(t, r.commitment)
	assert.NotEmpty(t, r.commitment.Hash)
	require.NotNil(t, r.history)
	assert.Equal(t, r.commitment.Hash, r.history.ServerSeedHash)

	// Exactly the two copies of the okey identity are marked.
	okeys := 0
	okeys += countOkeys(r.deck)
	for _, p := range r.players {
		okeys += countOkeys(p.Hand)
	}
	assert.Equal(t, 2, okeys)
	assert.False(t, r.indicator.IsFalseJoker)

	payload, ok := f.sender.lastTo(conn("alice"), protocol.TypeOnGameStarted)
	require.True(t, ok)
	started := payload.(protocol.OnGameStarted)
	assert.Equal(t, r.commitment.Hash, started.ServerSeedHash)
	assert.Len(t, started.InitialState.Hand, 15)
	assert.Len(t, started.InitialState.Opponents, 3)
}

func countOkeys(ts []tile.Tile) int {
	n := 0
	for _, t := range ts {
		if t.IsOkey {
			n++
		}
	}
	return n
}

func TestCounterClockwiseTurnOrder(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.join(id)
	}
	f.room.handle(command{kind: cmdStart, playerID: "alice"})
	r := f.room
	require.Equal(t, PhasePlaying, r.phase)

	var order []int
	order = append(order, r.turnPos)
	for i := 0; i < 4; i++ {
		cur := r.currentPlayer()
		if r.turnPhase == TurnWaitingForDraw {
			r.handle(command{kind: cmdDrawDeck, playerID: cur.ID})
		}
		r.handle(command{kind: cmdDiscard, playerID: cur.ID, tileID: cur.Hand[0].ID})
		order = append(order, r.turnPos)
	}
	assert.Equal(t, []int{0, 3, 2, 1, 0}, order)
	assert.Equal(t, 5, r.turnNumber)
}

func TestTurnValidationOrder(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.join(id)
	}
	f.room.handle(command{kind: cmdStart, playerID: "alice"})
	r := f.room

	// Out of turn; the error names whose turn it is.
	r.handle(command{kind: cmdDrawDeck, playerID: "bob"})
	payload, ok := f.sender.lastTo(conn("bob"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrKindNotYourTurn, payload.(protocol.OnError).Kind)
	assert.Contains(t, payload.(protocol.OnError).Message, "(player alice)")

	// Dealer already holds 15; another draw is invalid.
	r.handle(command{kind: cmdDrawDeck, playerID: "alice"})
	payload, ok = f.sender.lastTo(conn("alice"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrKindInvalidAction, payload.(protocol.OnError).Kind)

	// Dealer discards; dave (seat 3) must draw before discarding.
	r.handle(command{kind: cmdDiscard, playerID: "alice", tileID: r.playerAt(0).Hand[0].ID})
	require.Equal(t, 3, r.turnPos)
	dave := r.playerAt(3)
	r.handle(command{kind: cmdDiscard, playerID: "dave", tileID: dave.Hand[0].ID})
	payload, ok = f.sender.lastTo(conn("dave"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Contains(t, payload.(protocol.OnError).Message, "draw a tile")

	// Discarding a tile you do not hold fails.
	r.handle(command{kind: cmdDrawDeck, playerID: "dave"})
	r.handle(command{kind: cmdDiscard, playerID: "dave", tileID: 999})
	payload, ok = f.sender.lastTo(conn("dave"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Contains(t, payload.(protocol.OnError).Message, "not in hand")
	assert.Len(t, dave.Hand, 15)
}

func TestProjectionHidesOpponentTiles(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.join(id)
	}
	f.room.handle(command{kind: cmdStart, playerID: "alice"})

	proj := f.room.projectionFor(f.room.playerAt(1))
	assert.Len(t, proj.Hand, 14)
	require.Len(t, proj.Opponents, 3)
	for _, o := range proj.Opponents {
		assert.NotEqual(t, "bob", o.PlayerID)
		assert.Positive(t, o.TileCount)
	}
	require.NotNil(t, proj.Indicator)
	assert.Equal(t, 48, proj.DeckCount)
	assert.NotEmpty(t, proj.CommitmentHash)

	// Each player's start event carries only their own tiles.
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		payload, ok := f.sender.lastTo(conn(id), protocol.TypeOnGameStarted)
		require.True(t, ok)
		state := payload.(protocol.OnGameStarted).InitialState
		own := f.room.playerByID(id)
		assert.Len(t, state.Hand, len(own.Hand))
		for _, o := range state.Opponents {
			assert.NotEqual(t, id, o.PlayerID)
		}
	}
}

func TestFullBotGameCompletesAndSettles(t *testing.T) {
	f := newFixture(t, 100)
	f.seedUser(t, "alice", 1000)
	f.join("alice")
	f.room.handle(command{kind: cmdStartWithBots, playerID: "alice", difficulty: "normal"})
	r := f.room
	require.Equal(t, PhasePlaying, r.phase)

	engines := map[string]*bot.Engine{
		"alice": bot.NewEngine(bot.Normal, randutil.New(3)),
	}
	f.playUntilDone(t, engines)
	require.Equal(t, PhaseFinished, r.phase)

	ctx := context.Background()
	h, err := f.store.Histories().GetByID(ctx, r.history.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, h.Status)
	require.Len(t, h.PlayerResults, 4)

	// The reveal verifies and reproduces the committed shuffle.
	reveal := fairness.Reveal{
		ServerSeed:   h.ServerSeed,
		InitialState: h.InitialState,
		Nonce:        h.Nonce,
		ClientSeed:   h.ClientSeed,
		Hash:         h.ServerSeedHash,
	}
	assert.True(t, fairness.Verify(reveal))
	drng := fairness.NewDetRNG(h.ServerSeed, h.ClientSeed, h.Nonce)
	assert.Equal(t, h.InitialState, tile.Serialize(rules.Shuffle(tile.FullSet(), drng)))

	alice, err := f.store.Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.GamesPlayed)
	switch h.WinnerID {
	case "alice":
		// Pot 400, rake 20; the stake left at collection.
		assert.Equal(t, int64(1280), alice.ChipBalance)
		assert.Equal(t, 1, alice.GamesWon)
	case "":
		assert.Equal(t, "DeckEmpty", h.WinType)
		assert.Equal(t, int64(1000), alice.ChipBalance)
	default:
		assert.Equal(t, int64(900), alice.ChipBalance)
	}

	ended := f.sender.ofType(protocol.TypeOnGameEnded)
	require.NotEmpty(t, ended)
	ev := ended[len(ended)-1].payload.(protocol.OnGameEnded)
	assert.Equal(t, h.WinnerID, ev.WinnerID)
	assert.True(t, fairness.Verify(fairness.Reveal{
		ServerSeed:   ev.Reveal.ServerSeed,
		InitialState: ev.Reveal.InitialState,
		Nonce:        ev.Reveal.Nonce,
		ClientSeed:   ev.Reveal.ClientSeed,
		Hash:         ev.Reveal.CommitmentHash,
	}))
}

func TestInsufficientBalanceAbortsStart(t *testing.T) {
	f := newFixture(t, 100)
	f.seedUser(t, "alice", 50)
	f.join("alice")
	f.room.handle(command{kind: cmdStartWithBots, playerID: "alice", difficulty: "easy"})

	payload, ok := f.sender.lastTo(conn("alice"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrKindInsufficientBalance, payload.(protocol.OnError).Kind)
	assert.Equal(t, PhaseReady, f.room.phase)
	assert.False(t, f.room.stakesHeld)

	alice, err := f.store.Users().GetByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), alice.ChipBalance)
}

func TestTimeoutAutoPlays(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.join(id)
	}
	f.room.handle(command{kind: cmdStart, playerID: "alice"})
	r := f.room

	// A stale timeout from a superseded turn does nothing.
	r.handleTimerEvent(timer.Event{Kind: timer.EventTimeout, PlayerID: "alice", TurnNumber: 99})
	assert.Equal(t, 1, r.turnNumber)

	r.handleTimerEvent(timer.Event{Kind: timer.EventTimeout, PlayerID: "alice", TurnNumber: 1})
	assert.Len(t, r.playerAt(0).Hand, 14)
	assert.Equal(t, 3, r.turnPos)
	assert.Equal(t, 2, r.turnNumber)
	assert.NotEmpty(t, f.sender.ofType(protocol.TypeOnPlayerTimeout))
	auto := f.sender.ofType(protocol.TypeOnAutoPlayTriggered)
	require.NotEmpty(t, auto)
	assert.Equal(t, "Timeout", auto[len(auto)-1].payload.(protocol.OnAutoPlayTriggered).Reason)

	// The timed-out player receives a snapshot to resync against.
	snapshots := f.sender.ofType(protocol.TypeOnGameStateUpdated)
	require.NotEmpty(t, snapshots)
	assert.Equal(t, "conn-alice", snapshots[len(snapshots)-1].connID)

	// A timed-out draw-phase turn draws and discards like a bot would.
	r.handleTimerEvent(timer.Event{Kind: timer.EventTimeout, PlayerID: "dave", TurnNumber: 2})
	assert.Len(t, r.playerAt(3).Hand, 14)
	assert.Equal(t, 2, r.turnPos)
	assert.Equal(t, 3, r.turnNumber)
	assert.Equal(t, tile.SetSize, tileTotal(r))
}

func TestTimeoutDeclaresWinningHand(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.seedUser(t, id, 1000)
		f.join(id)
	}
	f.room.handle(command{kind: cmdStart, playerID: "alice"})
	r := f.room

	// The dealer times out holding a made hand; auto-play must win with
	// it, not throw it away.
	r.playerAt(0).Hand = winningHand15()
	r.handleTimerEvent(timer.Event{Kind: timer.EventTimeout, PlayerID: "alice", TurnNumber: 1})

	require.Equal(t, PhaseFinished, r.phase)
	h, err := f.store.Histories().GetByID(context.Background(), r.history.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", h.WinnerID)
	assert.Equal(t, store.StatusCompleted, h.Status)
}

func TestLeaveMidGameCancelsAndRefunds(t *testing.T) {
	f := newFixture(t, 100)
	f.seedUser(t, "alice", 1000)
	f.join("alice")
	f.room.handle(command{kind: cmdStartWithBots, playerID: "alice", difficulty: "normal"})
	require.Equal(t, PhasePlaying, f.room.phase)

	f.room.handle(command{kind: cmdLeave, playerID: "alice"})
	assert.Equal(t, PhaseCancelled, f.room.phase)

	ctx := context.Background()
	alice, err := f.store.Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), alice.ChipBalance)
	assert.Equal(t, 0, alice.GamesPlayed)

	h, err := f.store.Histories().GetByID(ctx, f.room.history.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, h.Status)
	assert.NotEmpty(t, h.ServerSeed, "cancellation still reveals the commitment")

	ended := f.sender.ofType(protocol.TypeOnGameEnded)
	require.NotEmpty(t, ended)
	assert.Equal(t, "Cancelled", ended[len(ended)-1].payload.(protocol.OnGameEnded).WinType)
}

func TestDeckEmptyEndsInDraw(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.seedUser(t, id, 1000)
		f.join(id)
	}
	f.room.handle(command{kind: cmdStart, playerID: "alice"})
	r := f.room

	r.deck = nil
	r.handle(command{kind: cmdDiscard, playerID: "alice", tileID: r.playerAt(0).Hand[0].ID})

	require.Equal(t, PhaseFinished, r.phase)
	h, err := f.store.Histories().GetByID(context.Background(), r.history.ID)
	require.NoError(t, err)
	assert.Empty(t, h.WinnerID)
	assert.Equal(t, "DeckEmpty", h.WinType)
	assert.Equal(t, store.StatusCompleted, h.Status)
}

func TestDeclareWinValidation(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.seedUser(t, id, 1000)
		f.join(id)
	}
	f.room.handle(command{kind: cmdStart, playerID: "alice"})
	r := f.room

	// A random opening hand essentially never wins.
	alice := r.playerAt(0)
	if rules.CheckWin(alice.Hand).Winning {
		t.Skip("dealt a winning opening hand")
	}
	r.handle(command{kind: cmdDeclareWin, playerID: "alice", tileID: alice.Hand[0].ID})
	payload, ok := f.sender.lastTo(conn("alice"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrKindInvalidAction, payload.(protocol.OnError).Kind)
	assert.Equal(t, PhasePlaying, r.phase)
	assert.Len(t, alice.Hand, 15)

	// A forged winning hand settles the game.
	alice.Hand = winningHand15()
	r.handle(command{kind: cmdDeclareWin, playerID: "alice", tileID: alice.Hand[14].ID})
	assert.Equal(t, PhaseFinished, r.phase)
}

// winningHand15 is four runs of 3,3,4,4 plus one spare to discard.
func winningHand15() []tile.Tile {
	mk := func(id int, c tile.Color, v int) tile.Tile {
		return tile.Tile{ID: 200 + id, Color: c, Value: v}
	}
	return []tile.Tile{
		mk(0, tile.Red, 1), mk(1, tile.Red, 2), mk(2, tile.Red, 3),
		mk(3, tile.Blue, 1), mk(4, tile.Blue, 2), mk(5, tile.Blue, 3),
		mk(6, tile.Black, 1), mk(7, tile.Black, 2), mk(8, tile.Black, 3), mk(9, tile.Black, 4),
		mk(10, tile.Yellow, 5), mk(11, tile.Yellow, 6), mk(12, tile.Yellow, 7), mk(13, tile.Yellow, 8),
		mk(14, tile.Yellow, 12),
	}
}

func TestDisconnectAndReconnect(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		f.join(id)
	}
	f.room.handle(command{kind: cmdStart, playerID: "alice"})
	r := f.room

	r.handle(command{kind: cmdDisconnect, playerID: "bob"})
	bob := r.playerByID("bob")
	assert.False(t, bob.Connected)
	assert.Len(t, r.players, 4, "mid-game seats are held")
	disc := f.sender.ofType(protocol.TypeOnPlayerDisconnected)
	require.NotEmpty(t, disc)
	assert.Equal(t, 30, disc[len(disc)-1].payload.(protocol.OnPlayerDisconnected).ReconnectionTimeoutSeconds)

	// Back within the window, with a new connection.
	bob.DisconnectedAt = r.now().Add(-10 * time.Second)
	r.handle(command{kind: cmdReconnect, playerID: "bob", connID: "conn-bob-2"})
	assert.True(t, bob.Connected)
	assert.Equal(t, "conn-bob-2", bob.ConnID)
	payload, ok := f.sender.lastTo("conn-bob-2", protocol.TypeOnReconnected)
	require.True(t, ok)
	state := payload.(protocol.OnReconnected).GameState
	assert.Len(t, state.Hand, len(bob.Hand))

	// Past the window the seat is forfeit for reconnection.
	r.handle(command{kind: cmdDisconnect, playerID: "bob"})
	bob.DisconnectedAt = r.now().Add(-31 * time.Second)
	r.handle(command{kind: cmdReconnect, playerID: "bob", connID: "conn-bob-3"})
	payload, ok = f.sender.lastTo("conn-bob-3", protocol.TypeOnError)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrKindReconnectExpired, payload.(protocol.OnError).Kind)
	assert.False(t, bob.Connected)
}

func TestDisconnectInLobbyLeavesSeat(t *testing.T) {
	f := newFixture(t, 0)
	f.join("alice")
	f.join("bob")
	f.room.handle(command{kind: cmdDisconnect, playerID: "bob"})
	assert.Len(t, f.room.players, 1)
	assert.Nil(t, f.room.playerByID("bob"))
}

func TestClientSeedLockedAfterStart(t *testing.T) {
	f := newFixture(t, 0)
	f.join("alice")
	f.room.handle(command{kind: cmdSetClientSeed, playerID: "alice", seed: "lucky"})
	assert.Equal(t, "lucky", f.room.clientSeed)

	f.room.handle(command{kind: cmdStartWithBots, playerID: "alice", difficulty: "easy"})
	require.Equal(t, PhasePlaying, f.room.phase)
	assert.Equal(t, "lucky", f.room.commitment.ClientSeed)

	f.room.handle(command{kind: cmdSetClientSeed, playerID: "alice", seed: "late"})
	payload, ok := f.sender.lastTo(conn("alice"), protocol.TypeOnError)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrKindInvalidPhase, payload.(protocol.OnError).Kind)
	assert.Equal(t, "lucky", f.room.clientSeed)
}

func TestBotMemoryObservesDiscards(t *testing.T) {
	f := newFixture(t, 0)
	f.join("alice")
	f.room.handle(command{kind: cmdStartWithBots, playerID: "alice", difficulty: "expert"})
	r := f.room
	require.Equal(t, PhasePlaying, r.phase)

	discarded := r.playerAt(0).Hand[0]
	r.handle(command{kind: cmdDiscard, playerID: "alice", tileID: discarded.ID})

	if discarded.IsWildcard() {
		t.Skip("wildcard discards are not tracked by face")
	}
	for _, eng := range r.bots {
		assert.Positive(t, eng.Memory().SeenCount(discarded))
	}
}

func TestBotMemoryCountsOwnDeckDraws(t *testing.T) {
	f := newFixture(t, 0)
	f.join("alice")
	f.room.handle(command{kind: cmdStartWithBots, playerID: "alice", difficulty: "expert"})
	r := f.room
	require.Equal(t, PhasePlaying, r.phase)

	// Dealer discards; the bot at seat 3 draws blind from the deck.
	r.handle(command{kind: cmdDiscard, playerID: "alice", tileID: r.playerAt(0).Hand[0].ID})
	cur := r.currentPlayer()
	require.True(t, cur.IsBot)
	eng := r.bots[cur.ID]
	require.NotNil(t, eng)

	top := r.deck[len(r.deck)-1]
	if top.IsWildcard() {
		t.Skip("wildcard draws are not tracked by face")
	}
	before := eng.Memory().SeenCount(top)
	if before >= 2 {
		t.Skip("both copies of the face already observed")
	}
	r.performDraw(cur, false)
	assert.Equal(t, before+1, eng.Memory().SeenCount(top))
}

// TestHistoryFailureStillRefunds drops the histories table between stake
// collection and the game-start insert; the debited stakes must come back
// even though no history row ever existed.
func TestHistoryFailureStillRefunds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "okey.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// Retry backoff has to elapse for real; the mock clock has no driver
	// while the start command runs synchronously.
	clock := quartz.NewReal()
	logger := zerolog.Nop()
	sender := &captureSender{}
	r := New("room-1", "Test Table", 100, Deps{
		Registry: registry.New(clock),
		Store:    st,
		Pipeline: settle.New(st, clock, logger),
		Sender:   sender,
		Clock:    clock,
		Nonces:   &fairness.NonceSource{},
		Logger:   logger,
		BotSeed:  7,
	})

	ctx := context.Background()
	require.NoError(t, st.Users().Add(ctx, &store.User{
		ID:          "alice",
		Username:    "alice",
		DisplayName: "alice",
		ChipBalance: 1000,
		EloScore:    1000,
		HighestElo:  1000,
		IsActive:    true,
	}))
	r.handle(command{kind: cmdJoin, playerID: "alice", displayName: "alice", connID: conn("alice")})

	raw, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	_, err = raw.Exec("DROP TABLE game_histories")
	require.NoError(t, err)

	r.handle(command{kind: cmdStartWithBots, playerID: "alice", difficulty: "normal"})

	assert.Equal(t, PhaseCancelled, r.phase)
	assert.False(t, r.stakesHeld)
	assert.Nil(t, r.history)
	alice, err := st.Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), alice.ChipBalance)
}

func TestManagerLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	mgr := NewManager(f.room.deps)
	defer mgr.Close()

	r := mgr.CreateRoom("Lobby 1", 50)
	got, ok := mgr.Get(r.ID())
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Equal(t, 1, mgr.Len())
	assert.Equal(t, int64(50), r.Stake())

	r.Join("alice", "alice", conn("alice"))
	require.Eventually(t, func() bool {
		return len(f.sender.ofType(protocol.TypeRoomJoined)) == 1
	}, time.Second, 5*time.Millisecond)

	// Last player leaving reaps the room.
	r.Leave("alice")
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("room loop did not exit")
	}
	require.Eventually(t, func() bool { return mgr.Len() == 0 }, time.Second, 5*time.Millisecond)

	_, ok = mgr.Get(r.ID())
	assert.False(t, ok)
}
