package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/okeynet/okeyd/internal/protocol"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long the peer has to answer a ping.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192
	sendBuffer     = 256
)

// Connection wraps one websocket client. Outbound events go through a
// bounded queue drained by the write pump; a client that cannot keep up
// is closed rather than allowed to stall the rooms.
type Connection struct {
	id       string
	playerID string

	conn      *websocket.Conn
	send      chan []byte
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConnection(id, playerID string, ws *websocket.Conn, logger zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:       id,
		playerID: playerID,
		conn:     ws,
		send:     make(chan []byte, sendBuffer),
		logger:   logger.With().Str("component", "connection").Str("conn_id", id).Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Connection) ID() string       { return c.id }
func (c *Connection) PlayerID() string { return c.playerID }

// Send marshals and enqueues one event. A full queue closes the
// connection; the room loop never blocks on a slow client.
func (c *Connection) Send(msgType string, payload any) {
	raw, err := protocol.Marshal(msgType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msgType).Msg("Could not encode event")
		return
	}
	select {
	case c.send <- raw:
	case <-c.ctx.Done():
	default:
		c.logger.Warn().Str("type", msgType).Msg("Send buffer full, closing connection")
		c.Close()
	}
}

// Close is idempotent and unblocks both pumps.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// readPump delivers inbound envelopes to handle until the peer goes away.
// It runs on the HTTP handler goroutine.
func (c *Connection) readPump(handle func(protocol.Envelope)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("Websocket read failed")
			}
			return
		}
		env, err := protocol.Unmarshal(raw)
		if err != nil {
			c.Send(protocol.TypeOnError, protocol.OnError{
				Kind:      protocol.ErrKindInvalidAction,
				Message:   "malformed message envelope",
				Timestamp: time.Now().UTC(),
			})
			continue
		}
		handle(env)
	}
}

// writePump owns all writes to the socket, including keepalive pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case raw := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.logger.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
