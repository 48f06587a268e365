// Package room hosts the authoritative per-room game state machine.
// Each room runs a single-writer loop: every mutation happens on one
// goroutine consuming a bounded command channel, so the room needs no
// locks of its own. Timer events and bot moves enter through the same
// loop, preserving order against player intents.
package room

import (
	"context"
	rand "math/rand/v2"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/okeynet/okeyd/internal/bot"
	"github.com/okeynet/okeyd/internal/fairness"
	"github.com/okeynet/okeyd/internal/leaderboard"
	"github.com/okeynet/okeyd/internal/randutil"
	"github.com/okeynet/okeyd/internal/registry"
	"github.com/okeynet/okeyd/internal/settle"
	"github.com/okeynet/okeyd/internal/store"
	"github.com/okeynet/okeyd/internal/tile"
	"github.com/okeynet/okeyd/internal/timer"
)

// Phase is the game-level lifecycle.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseReady
	PhaseShuffling
	PhaseDealing
	PhasePlaying
	PhaseFinished
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "WaitingForPlayers"
	case PhaseReady:
		return "ReadyToStart"
	case PhaseShuffling:
		return "Shuffling"
	case PhaseDealing:
		return "Dealing"
	case PhasePlaying:
		return "Playing"
	case PhaseFinished:
		return "Finished"
	case PhaseCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

func (p Phase) terminal() bool {
	return p == PhaseFinished || p == PhaseCancelled
}

// TurnPhase is the sub-phase within Playing.
type TurnPhase int

const (
	TurnWaitingForDraw TurnPhase = iota
	TurnWaitingForDiscard
)

func (t TurnPhase) String() string {
	switch t {
	case TurnWaitingForDraw:
		return "WaitingForDraw"
	case TurnWaitingForDiscard:
		return "WaitingForDiscard"
	default:
		return "Unknown"
	}
}

// MaxPlayers is the fixed table size.
const MaxPlayers = 4

// DrainTimeout bounds how long a stopping room keeps processing queued
// commands.
const DrainTimeout = 2 * time.Second

// Player is one seat in the room.
type Player struct {
	ID             string
	DisplayName    string
	Position       int
	Hand           []tile.Tile
	ConnID         string
	Connected      bool
	DisconnectedAt time.Time
	HasDrawn       bool
	IsBot          bool
}

// Sender delivers an outbound event to one connection. Implementations
// must not block the caller; the room loop is latency-sensitive.
type Sender interface {
	Send(connID, msgType string, payload any)
}

// Deps are the external collaborators a room needs.
type Deps struct {
	Registry    *registry.Registry
	Store       *store.Store
	Pipeline    *settle.Pipeline
	Leaderboard *leaderboard.Projection
	Sender      Sender
	Clock       quartz.Clock
	Nonces      *fairness.NonceSource
	Logger      zerolog.Logger
	// BotSeed makes bot identities and think-times reproducible in
	// tests; zero means derive from the clock.
	BotSeed int64
}

// Room is the authoritative state of one table. All fields below cmds are
// owned by the loop goroutine.
type Room struct {
	id        string
	name      string
	stake     int64
	createdAt time.Time

	deps   Deps
	logger zerolog.Logger
	cmds   chan command
	done   chan struct{}

	phase     Phase
	turnPhase TurnPhase
	players   []*Player
	bots      map[string]*bot.Engine
	rng       *rand.Rand

	deck      []tile.Tile // top is the last element
	discard   []tile.Tile // top is the last element
	indicator tile.Tile

	commitment *fairness.Commitment
	clientSeed string

	turnPos    int
	turnNumber int
	timer      *timer.TurnTimer

	gameID     string // set once stakes are collected, before any history row exists
	history    *store.GameHistory
	stakesHeld bool
	botSeq     int
	closing    bool
}

type cmdKind int

const (
	cmdJoin cmdKind = iota
	cmdLeave
	cmdStart
	cmdStartWithBots
	cmdDrawDeck
	cmdDrawDiscard
	cmdDiscard
	cmdDeclareWin
	cmdSetClientSeed
	cmdDisconnect
	cmdReconnect
	cmdBotMove
)

type command struct {
	kind        cmdKind
	playerID    string
	connID      string
	displayName string
	tileID      int
	seed        string
	difficulty  string
	turnNumber  int // guards stale bot moves
}

// New creates a room in WaitingForPlayers with the creator seated at
// South. Call Run to start the loop.
func New(id, name string, stake int64, deps Deps) *Room {
	logger := deps.Logger.With().Str("component", "room").Str("room_id", id).Logger()
	seed := deps.BotSeed
	if seed == 0 {
		seed = deps.Clock.Now().UnixNano()
	}
	return &Room{
		id:        id,
		name:      name,
		stake:     stake,
		createdAt: deps.Clock.Now().UTC(),
		deps:      deps,
		logger:    logger,
		cmds:      make(chan command, 32),
		done:      make(chan struct{}),
		phase:     PhaseWaiting,
		bots:      make(map[string]*bot.Engine),
		rng:       randutil.New(seed),
		timer:     timer.New(deps.Clock, logger),
	}
}

func (r *Room) ID() string            { return r.id }
func (r *Room) Name() string          { return r.name }
func (r *Room) Stake() int64          { return r.stake }
func (r *Room) Done() <-chan struct{} { return r.done }

// Run owns the room until ctx is cancelled or the game reaches a
// terminal phase and all players leave. It must be called exactly once.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	defer r.timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case cmd := <-r.cmds:
			r.handle(cmd)
			if r.closing {
				return
			}
		case ev := <-r.timer.Events():
			r.handleTimerEvent(ev)
		}
	}
}

// drain keeps processing queued commands briefly, then cancels any game
// still in progress so stakes are returned.
func (r *Room) drain() {
	deadline := r.deps.Clock.NewTimer(DrainTimeout)
	defer deadline.Stop()
	for {
		select {
		case cmd := <-r.cmds:
			r.handle(cmd)
		case <-deadline.C:
			r.shutdownGame()
			return
		default:
			r.shutdownGame()
			return
		}
	}
}

func (r *Room) shutdownGame() {
	if !r.phase.terminal() && r.phase >= PhaseShuffling {
		r.cancelGame("server shutting down")
	}
}

// enqueue delivers a command to the loop without ever blocking the
// transport goroutine. A full queue rejects the command.
func (r *Room) enqueue(cmd command) {
	select {
	case r.cmds <- cmd:
	default:
		r.logger.Warn().
			Str("player_id", cmd.playerID).
			Int("kind", int(cmd.kind)).
			Msg("Command queue full, rejecting")
	}
}

// --- public command API, callable from any goroutine ---

func (r *Room) Join(playerID, displayName, connID string) {
	r.enqueue(command{kind: cmdJoin, playerID: playerID, displayName: displayName, connID: connID})
}

func (r *Room) Leave(playerID string) {
	r.enqueue(command{kind: cmdLeave, playerID: playerID})
}

func (r *Room) Start(playerID string) {
	r.enqueue(command{kind: cmdStart, playerID: playerID})
}

func (r *Room) StartWithBots(playerID, difficulty string) {
	r.enqueue(command{kind: cmdStartWithBots, playerID: playerID, difficulty: difficulty})
}

func (r *Room) DrawDeck(playerID string) {
	r.enqueue(command{kind: cmdDrawDeck, playerID: playerID})
}

func (r *Room) DrawDiscard(playerID string) {
	r.enqueue(command{kind: cmdDrawDiscard, playerID: playerID})
}

func (r *Room) Discard(playerID string, tileID int) {
	r.enqueue(command{kind: cmdDiscard, playerID: playerID, tileID: tileID})
}

func (r *Room) DeclareWin(playerID string, discardTileID int) {
	r.enqueue(command{kind: cmdDeclareWin, playerID: playerID, tileID: discardTileID})
}

func (r *Room) SetClientSeed(playerID, seed string) {
	r.enqueue(command{kind: cmdSetClientSeed, playerID: playerID, seed: seed})
}

func (r *Room) Disconnect(playerID string) {
	r.enqueue(command{kind: cmdDisconnect, playerID: playerID})
}

func (r *Room) Reconnect(playerID, connID string) {
	r.enqueue(command{kind: cmdReconnect, playerID: playerID, connID: connID})
}

// --- loop-side dispatch ---

func (r *Room) handle(cmd command) {
	switch cmd.kind {
	case cmdJoin:
		r.handleJoin(cmd)
	case cmdLeave:
		r.handleLeave(cmd)
	case cmdStart:
		r.handleStart(cmd, false)
	case cmdStartWithBots:
		r.handleStart(cmd, true)
	case cmdDrawDeck:
		r.handleDraw(cmd, false)
	case cmdDrawDiscard:
		r.handleDraw(cmd, true)
	case cmdDiscard:
		r.handleDiscard(cmd)
	case cmdDeclareWin:
		r.handleDeclareWin(cmd)
	case cmdSetClientSeed:
		r.handleSetClientSeed(cmd)
	case cmdDisconnect:
		r.handleDisconnect(cmd)
	case cmdReconnect:
		r.handleReconnect(cmd)
	case cmdBotMove:
		r.handleBotMove(cmd)
	}
}

// playerByID returns the seated player, or nil.
func (r *Room) playerByID(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) currentPlayer() *Player {
	for _, p := range r.players {
		if p.Position == r.turnPos {
			return p
		}
	}
	return nil
}

func (r *Room) humanCount() int {
	n := 0
	for _, p := range r.players {
		if !p.IsBot {
			n++
		}
	}
	return n
}

func (r *Room) connectedHumans() []*Player {
	var out []*Player
	for _, p := range r.players {
		if !p.IsBot && p.Connected {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) participants() []settle.Participant {
	out := make([]settle.Participant, len(r.players))
	for i, p := range r.players {
		out[i] = settle.Participant{
			UserID:      p.ID,
			DisplayName: p.DisplayName,
			Seat:        p.Position,
			IsBot:       p.IsBot,
		}
	}
	return out
}
