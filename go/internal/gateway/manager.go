// Package gateway pushes view-model snapshots and sound cues to display
// windows over WebSocket. Displays are strictly passive: they never send
// anything except pong frames.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/display"
	"github.com/familyhundred/showsync/go/internal/sound"
)

// Frame types pushed to displays.
const (
	FrameState = "state"
	FrameSound = "sound"
)

// Frame is the wire envelope for everything a display receives.
type Frame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
}

// Config holds WebSocket connection settings.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the stock WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512, // displays only ever send control frames
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Manager owns the per-session display connection pools.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]map[*Conn]bool
	upgrader    websocket.Upgrader
	config      Config
	broadcastCh chan broadcastItem
}

type broadcastItem struct {
	sessionID uuid.UUID
	frame     []byte
	frameType string
}

// Conn is one display window's connection.
type Conn struct {
	ID        string
	SessionID uuid.UUID
	ws        *websocket.Conn
	send      chan []byte
	manager   *Manager

	// mu serializes sends on the send channel with its close, so a
	// disconnect racing a broadcast can never send on a closed channel.
	mu     sync.Mutex
	closed bool

	ConnectedAt time.Time
}

// trySend queues a frame for the write pump. sent is false when the buffer
// is full; open is false once the connection has been torn down.
func (c *Conn) trySend(frame []byte) (sent, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- frame:
		return true, true
	default:
		return false, true
	}
}

// closeSend closes the send channel exactly once.
func (c *Conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// NewManager creates a display connection manager.
func NewManager(config Config) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]map[*Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastItem, 256),
	}
}

// Start processes queued broadcasts until the context ends.
func (m *Manager) Start(ctx context.Context) {
	log.Info().Msg("display gateway started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("display gateway shutting down")
			return
		case item := <-m.broadcastCh:
			m.fanOut(item)
		}
	}
}

// Upgrade turns an HTTP request into a managed display connection. The
// initial frame, if any, is sent before the connection joins the pool's
// broadcast flow so a fresh display renders immediately.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, initial *Frame) error {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	conn := &Conn{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		ws:          ws,
		send:        make(chan []byte, 64),
		manager:     m,
		ConnectedAt: time.Now(),
	}

	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			conn.trySend(data)
		}
	}

	m.register(conn)

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("session_id", sessionID.String()).
		Msg("display connected")

	return nil
}

func (m *Manager) register(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[conn.SessionID] == nil {
		m.sessions[conn.SessionID] = make(map[*Conn]bool)
	}
	m.sessions[conn.SessionID][conn] = true
}

func (m *Manager) unregister(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conns, ok := m.sessions[conn.SessionID]; ok {
		if _, ok := conns[conn]; ok {
			delete(conns, conn)
			conn.closeSend()
			if len(conns) == 0 {
				delete(m.sessions, conn.SessionID)
			}
			log.Info().
				Str("connection_id", conn.ID).
				Str("session_id", conn.SessionID.String()).
				Msg("display disconnected")
		}
	}
}

// PushState queues a view model for every display of the session.
func (m *Manager) PushState(sessionID uuid.UUID, vm *display.ViewModel) {
	m.push(sessionID, FrameState, vm)
}

// PushSound queues a sound cue for every display of the session.
func (m *Manager) PushSound(sessionID uuid.UUID, cue sound.Cue) {
	m.push(sessionID, FrameSound, struct {
		Cue sound.Cue `json:"cue"`
	}{Cue: cue})
}

func (m *Manager) push(sessionID uuid.UUID, frameType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("frame", frameType).Msg("failed to marshal display frame")
		return
	}
	frame, err := json.Marshal(Frame{Type: frameType, SessionID: sessionID.String(), Data: data})
	if err != nil {
		log.Error().Err(err).Str("frame", frameType).Msg("failed to marshal display envelope")
		return
	}

	select {
	case m.broadcastCh <- broadcastItem{sessionID: sessionID, frame: frame, frameType: frameType}:
	default:
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("frame", frameType).
			Msg("gateway broadcast queue full, dropping frame")
	}
}

func (m *Manager) fanOut(item broadcastItem) {
	m.mu.RLock()
	targets := make([]*Conn, 0, len(m.sessions[item.sessionID]))
	for conn := range m.sessions[item.sessionID] {
		targets = append(targets, conn)
	}
	m.mu.RUnlock()

	for _, conn := range targets {
		sent, open := conn.trySend(item.frame)
		if sent || !open {
			continue
		}
		// Slow or dead display; close it rather than block the show.
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("display send buffer full, closing connection")
		m.unregister(conn)
		conn.ws.Close()
	}

	log.Debug().
		Str("session_id", item.sessionID.String()).
		Str("frame", item.frameType).
		Int("displays", len(targets)).
		Msg("frame pushed to displays")
}

// Stats returns the number of connected displays per session.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.sessions))
	for id, conns := range m.sessions {
		out[id.String()] = len(conns)
	}
	return out
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write frame to display")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump exists to service pongs and detect disconnects; displays have no
// commands to send.
func (c *Conn) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.manager.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected display close error")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
