// Package server is the websocket front door: it upgrades connections,
// decodes client intents and routes them into room command queues. All
// game decisions happen in the rooms; the server only moves messages.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/okeynet/okeyd/internal/gameid"
	"github.com/okeynet/okeyd/internal/protocol"
	"github.com/okeynet/okeyd/internal/registry"
	"github.com/okeynet/okeyd/internal/room"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	addr     string
	upgrader websocket.Upgrader
	hub      *Hub
	manager  *room.Manager
	registry *registry.Registry
	logger   zerolog.Logger
}

func New(addr string, manager *room.Manager, reg *registry.Registry, hub *Hub, logger zerolog.Logger) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		hub:      hub,
		manager:  manager,
		registry: reg,
		logger:   logger.With().Str("component", "server").Logger(),
	}
}

// Handler exposes the route table, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run serves until ctx is cancelled, then drains connections and rooms.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.hub.CloseAll()
	}()

	s.logger.Info().Str("addr", s.addr).Msg("Listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket runs one client for the lifetime of its socket. The
// player identity comes from the query string; authentication is the
// fronting gateway's job.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "playerId query parameter required", http.StatusBadRequest)
		return
	}
	displayName := r.URL.Query().Get("displayName")
	if displayName == "" {
		displayName = playerID
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Upgrade failed")
		return
	}

	connID := gameid.New()
	c := newConnection(connID, playerID, ws, s.logger)
	s.hub.Add(c)
	go c.writePump()

	// A held seat from a dropped connection reattaches immediately.
	if entry, ok := s.registry.Lookup(playerID); ok {
		if rm, found := s.manager.Get(entry.RoomID); found {
			rm.Reconnect(playerID, connID)
		}
	}

	c.readPump(func(env protocol.Envelope) {
		s.route(c, displayName, env)
	})

	s.hub.Remove(connID)
	if entry, ok := s.registry.Lookup(playerID); ok && entry.ConnID == connID {
		if rm, found := s.manager.Get(entry.RoomID); found {
			rm.Disconnect(playerID)
		}
	}
	c.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// route turns one decoded intent into a room command. Room ids that do
// not resolve produce a NotFound error to the caller only.
func (s *Server) route(c *Connection, displayName string, env protocol.Envelope) {
	intent, err := protocol.DecodeIntent(env)
	if err != nil {
		c.Send(protocol.TypeOnError, protocol.OnError{
			Kind:      protocol.ErrKindInvalidAction,
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	switch m := intent.(type) {
	case *protocol.CreateRoom:
		rm := s.manager.CreateRoom(m.Name, m.Stake)
		rm.Join(c.PlayerID(), displayName, c.ID())

	case *protocol.JoinRoom:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.Join(c.PlayerID(), displayName, c.ID())
		}

	case *protocol.LeaveRoom:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.Leave(c.PlayerID())
		}

	case *protocol.StartGame:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.Start(c.PlayerID())
		}

	case *protocol.StartGameWithBots:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.StartWithBots(c.PlayerID(), m.Difficulty)
		}

	case *protocol.DrawTile:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.DrawDeck(c.PlayerID())
		}

	case *protocol.DrawFromDiscard:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.DrawDiscard(c.PlayerID())
		}

	case *protocol.ThrowTile:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.Discard(c.PlayerID(), m.TileID)
		}

	case *protocol.DeclareWin:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.DeclareWin(c.PlayerID(), m.DiscardTileID)
		}

	case *protocol.SetClientSeed:
		if rm, ok := s.roomOf(c, m.RoomID); ok {
			rm.SetClientSeed(c.PlayerID(), m.Seed)
		}
	}
}

func (s *Server) roomOf(c *Connection, roomID string) (*room.Room, bool) {
	rm, ok := s.manager.Get(roomID)
	if !ok {
		c.Send(protocol.TypeOnError, protocol.OnError{
			Kind:      protocol.ErrKindNotFound,
			Message:   "room not found: " + roomID,
			Timestamp: time.Now().UTC(),
		})
		return nil, false
	}
	return rm, true
}
