// Package broadcast is the in-process fan-out path: the lowest-latency of
// the three snapshot transports, scoped to this process and lost on restart.
package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/game"
)

const subscriberBuffer = 16

// Hub routes snapshots between publishers and subscribers of the same
// session. Delivery is non-blocking: a subscriber that falls behind has the
// snapshot dropped, because a later commit supersedes it anyway.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan *game.GameState]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]map[chan *game.GameState]struct{}),
	}
}

// Publish delivers a snapshot to every subscriber of the session.
func (h *Hub) Publish(sessionID uuid.UUID, state *game.GameState) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[sessionID] {
		select {
		case ch <- state:
		default:
			log.Warn().
				Str("session_id", sessionID.String()).
				Int64("revision", state.Revision).
				Msg("broadcast subscriber full, dropping snapshot")
		}
	}
}

// Subscribe registers a subscriber for a session. The returned cancel
// function removes the subscription and closes the channel.
func (h *Hub) Subscribe(sessionID uuid.UUID) (<-chan *game.GameState, func()) {
	ch := make(chan *game.GameState, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan *game.GameState]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Sink adapts one session's publish side to the controller's fan-out.
func (h *Hub) Sink(sessionID uuid.UUID) *Sink {
	return &Sink{hub: h, sessionID: sessionID}
}

// Source adapts one session's subscribe side for a display reader.
func (h *Hub) Source(sessionID uuid.UUID) *Source {
	return &Source{hub: h, sessionID: sessionID}
}

// Sink publishes committed snapshots onto the hub.
type Sink struct {
	hub       *Hub
	sessionID uuid.UUID
}

func (s *Sink) Name() string { return "broadcast" }

func (s *Sink) Publish(_ context.Context, state *game.GameState) error {
	s.hub.Publish(s.sessionID, state)
	return nil
}

// Source subscribes a reader to the hub for the session's lifetime.
type Source struct {
	hub       *Hub
	sessionID uuid.UUID
}

func (s *Source) Name() string { return "broadcast" }

func (s *Source) Subscribe(ctx context.Context) (<-chan *game.GameState, error) {
	ch, cancel := s.hub.Subscribe(s.sessionID)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, nil
}
