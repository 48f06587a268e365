package room

import (
	"fmt"
	"time"

	"github.com/okeynet/okeyd/internal/protocol"
	"github.com/okeynet/okeyd/internal/registry"
	"github.com/okeynet/okeyd/internal/timer"
)

// fail reports a user-input error to the caller only. State is never
// mutated on the failure path.
func (r *Room) fail(p *Player, kind, message string) {
	if p == nil || p.IsBot || !p.Connected {
		return
	}
	r.sendTo(p, protocol.TypeOnError, protocol.OnError{
		Kind:      kind,
		Message:   message,
		Timestamp: r.now(),
	})
}

// failConn reports an error to a connection that may not be seated yet.
func (r *Room) failConn(connID, kind, message string) {
	if connID == "" {
		return
	}
	r.deps.Sender.Send(connID, protocol.TypeOnError, protocol.OnError{
		Kind:      kind,
		Message:   message,
		Timestamp: r.now(),
	})
}

func (r *Room) handleJoin(cmd command) {
	if r.phase != PhaseWaiting && r.phase != PhaseReady {
		r.failConn(cmd.connID, protocol.ErrKindInvalidPhase, "game already started")
		return
	}
	if existing := r.playerByID(cmd.playerID); existing != nil {
		r.failConn(cmd.connID, protocol.ErrKindInvalidAction, "already seated in this room")
		return
	}
	if len(r.players) >= MaxPlayers {
		r.failConn(cmd.connID, protocol.ErrKindInvalidAction, "room is full")
		return
	}

	p := &Player{
		ID:          cmd.playerID,
		DisplayName: cmd.displayName,
		Position:    r.freePosition(),
		ConnID:      cmd.connID,
		Connected:   true,
	}
	r.players = append(r.players, p)
	r.deps.Registry.Bind(p.ID, r.id, cmd.connID)

	r.logger.Info().
		Str("player_id", p.ID).
		Int("position", p.Position).
		Msg("Player joined")

	r.sendTo(p, protocol.TypeRoomJoined, protocol.RoomJoined{
		ID:                 r.id,
		Name:               r.name,
		Stake:              r.stake,
		CurrentPlayerCount: len(r.players),
		MaxPlayers:         MaxPlayers,
		IsGameStarted:      r.phase >= PhaseShuffling,
	})
	r.broadcast(protocol.TypeOnPlayerJoined, protocol.OnPlayerJoined{
		PlayerID:     p.ID,
		PlayerName:   p.DisplayName,
		Position:     p.Position,
		TotalPlayers: len(r.players),
	})

	if len(r.players) == MaxPlayers && r.phase == PhaseWaiting {
		r.setPhase(PhaseReady)
	}
}

// freePosition seats South first, then East, North, West.
func (r *Room) freePosition() int {
	taken := [MaxPlayers]bool{}
	for _, p := range r.players {
		taken[p.Position] = true
	}
	for pos := 0; pos < MaxPlayers; pos++ {
		if !taken[pos] {
			return pos
		}
	}
	return len(r.players)
}

func (r *Room) handleLeave(cmd command) {
	p := r.playerByID(cmd.playerID)
	if p == nil {
		return
	}

	if r.phase >= PhaseShuffling && !r.phase.terminal() {
		// Leaving mid-game cancels it for everyone; stakes come back.
		r.logger.Info().Str("player_id", p.ID).Msg("Player left mid-game")
		r.cancelGame(fmt.Sprintf("player %s left the game", p.DisplayName))
		return
	}

	r.removePlayer(p)
	r.sendTo(p, protocol.TypeOnRoomLeft, protocol.OnRoomLeft{RoomID: r.id})
	r.broadcast(protocol.TypeOnPlayerLeft, protocol.OnPlayerLeft{
		PlayerID:  p.ID,
		Timestamp: r.now(),
	})
	if r.phase == PhaseReady && len(r.players) < MaxPlayers {
		r.setPhase(PhaseWaiting)
	}
	if len(r.players) == 0 {
		// Last seat gone; the loop exits and the manager reaps the room.
		r.closing = true
	}
}

func (r *Room) removePlayer(p *Player) {
	for i, q := range r.players {
		if q.ID == p.ID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	delete(r.bots, p.ID)
	r.deps.Registry.Remove(p.ID)
}

func (r *Room) handleSetClientSeed(cmd command) {
	p := r.playerByID(cmd.playerID)
	if p == nil {
		return
	}
	if r.phase >= PhaseShuffling {
		r.fail(p, protocol.ErrKindInvalidPhase, "client seed must be set before the game starts")
		return
	}
	r.clientSeed = cmd.seed
	r.logger.Debug().Str("player_id", p.ID).Msg("Client seed set")
}

func (r *Room) handleDisconnect(cmd command) {
	p := r.playerByID(cmd.playerID)
	if p == nil || !p.Connected {
		return
	}
	p.Connected = false
	p.ConnID = ""
	p.DisconnectedAt = r.now()
	r.deps.Registry.MarkDisconnected(p.ID)

	r.logger.Info().Str("player_id", p.ID).Msg("Player disconnected")

	if r.phase == PhaseWaiting || r.phase == PhaseReady {
		// No game to hold a seat for.
		r.handleLeave(command{playerID: p.ID})
		return
	}

	r.broadcast(protocol.TypeOnPlayerDisconnected, protocol.OnPlayerDisconnected{
		PlayerID:                   p.ID,
		ReconnectionTimeoutSeconds: int(registry.ReconnectWindow.Seconds()),
		Timestamp:                  p.DisconnectedAt,
	})
}

func (r *Room) handleReconnect(cmd command) {
	p := r.playerByID(cmd.playerID)
	if p == nil {
		r.failConn(cmd.connID, protocol.ErrKindNotFound, "no seat held in this room")
		return
	}
	if !p.Connected && r.now().Sub(p.DisconnectedAt) > registry.ReconnectWindow {
		r.deps.Registry.Remove(p.ID)
		r.failConn(cmd.connID, protocol.ErrKindReconnectExpired, "reconnect window expired")
		return
	}

	p.Connected = true
	p.ConnID = cmd.connID
	p.DisconnectedAt = time.Time{}
	r.deps.Registry.Reconnect(p.ID, cmd.connID)

	r.logger.Info().Str("player_id", p.ID).Msg("Player reconnected")

	// Returning to your own turn buys a little extra time.
	if cur := r.currentPlayer(); cur != nil && cur.ID == p.ID && r.phase == PhasePlaying {
		r.timer.Extend(timer.ReconnectExtension)
	}

	r.broadcast(protocol.TypeOnPlayerReconnected, protocol.OnPlayerReconnected{
		PlayerID:  p.ID,
		Timestamp: r.now(),
	})
	r.sendTo(p, protocol.TypeOnReconnected, protocol.OnReconnected{
		RoomID:    r.id,
		GameState: r.projectionFor(p),
		Message:   "reconnected",
	})
}
