// Package session ties one shared GameState document to its controller,
// reader, and transports. A session is created on demand and lives until the
// service stops; resetting a game replaces the document without touching the
// subscriptions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/controller"
	"github.com/familyhundred/showsync/go/internal/display"
	"github.com/familyhundred/showsync/go/internal/game"
	"github.com/familyhundred/showsync/go/internal/gateway"
	"github.com/familyhundred/showsync/go/internal/sound"
	"github.com/familyhundred/showsync/go/internal/store"
	"github.com/familyhundred/showsync/go/internal/transport/broadcast"
	"github.com/familyhundred/showsync/go/internal/transport/natssync"
)

// ErrUnknownSession is returned when a session id has not been created.
var ErrUnknownSession = errors.New("unknown session")

// Session is one live game.
type Session struct {
	ID         uuid.UUID
	Controller *controller.Controller
	Reader     *display.Reader

	cancel      context.CancelFunc
	unsubscribe func()
}

// Manager creates and looks up sessions.
type Manager struct {
	hub      *broadcast.Hub
	remote   *natssync.Client
	store    *store.Store
	listener *store.Listener
	gateway  *gateway.Manager

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager wires the shared transports into a session factory.
func NewManager(hub *broadcast.Hub, remote *natssync.Client, st *store.Store, listener *store.Listener, gw *gateway.Manager) *Manager {
	return &Manager{
		hub:      hub,
		remote:   remote,
		store:    st,
		listener: listener,
		gateway:  gw,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a brand-new session with a fresh id.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	return m.start(ctx, uuid.New())
}

// Open resumes a session from its stored snapshot, or creates it if it was
// never saved. Used when an operator reconnects to a known session id.
func (m *Manager) Open(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	if s, ok := m.sessions[id]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()
	return m.start(ctx, id)
}

// Get returns an already-running session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrUnknownSession
}

// CurrentView implements gateway.SnapshotProvider: the view model a freshly
// connected display should render.
func (m *Manager) CurrentView(id uuid.UUID) (*display.ViewModel, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	current := s.Reader.Current()
	if current == nil {
		current = s.Controller.State()
	}
	return display.Derive(current), nil
}

func (m *Manager) start(ctx context.Context, id uuid.UUID) (*Session, error) {
	initial, err := m.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNoSnapshot) {
			// Favor liveness: a broken snapshot read starts the session from
			// the default document instead of refusing the show.
			log.Error().
				Err(err).
				Str("session_id", id.String()).
				Msg("snapshot load failed, starting from default state")
		}
		initial = game.DefaultState()
	}

	ctrl := controller.New(id, initial,
		m.store.Sink(id),
		m.hub.Sink(id),
		m.remote.StateSink(id),
	)

	sessionCtx, cancel := context.WithCancel(context.Background())

	notifier := &gatewayNotifier{sessionID: id, gateway: m.gateway, remote: m.remote}
	reader := display.NewReader(id, initial, notifier)

	go reader.Run(sessionCtx,
		m.hub.Source(id),
		m.listener.Source(id),
		m.remote.StateSource(id),
	)

	// Cues travel the remote side-channel and come back through this
	// subscription, so displays served by another instance hear them too.
	unsubscribe, err := m.remote.SubscribeSound(id, func(cmd sound.Command) {
		m.gateway.PushSound(id, cmd.Cue)
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", id.String()).
			Msg("sound side-channel unavailable, cues limited to this instance")
		unsubscribe = func() {}
	}

	s := &Session{
		ID:          id,
		Controller:  ctrl,
		Reader:      reader,
		cancel:      cancel,
		unsubscribe: unsubscribe,
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		// Lost the race to another Open call; keep the winner.
		m.mu.Unlock()
		cancel()
		unsubscribe()
		return existing, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	log.Info().
		Str("session_id", id.String()).
		Int64("revision", initial.Revision).
		Msg("session started")

	return s, nil
}

// Stop tears down every session's subscriptions.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.cancel()
		s.unsubscribe()
		delete(m.sessions, id)
	}
}

// gatewayNotifier forwards reader output to the display gateway. Sound cues
// detour through the remote side-channel; the session's sound subscription
// brings them back for local displays.
type gatewayNotifier struct {
	sessionID uuid.UUID
	gateway   *gateway.Manager
	remote    *natssync.Client
}

func (n *gatewayNotifier) Snapshot(_ *game.GameState, vm *display.ViewModel) {
	n.gateway.PushState(n.sessionID, vm)
}

func (n *gatewayNotifier) Sound(cue sound.Cue) {
	if err := n.remote.PublishSound(n.sessionID, cue); err != nil {
		log.Error().
			Err(err).
			Str("session_id", n.sessionID.String()).
			Str("cue", string(cue)).
			Msg("sound cue publish failed, pushing to local displays only")
		n.gateway.PushSound(n.sessionID, cue)
	}
}

// PlaySound lets the operator fire a named cue at the session's displays.
func (m *Manager) PlaySound(id uuid.UUID, cue sound.Cue) error {
	if _, err := m.Get(id); err != nil {
		return err
	}
	if err := m.remote.PublishSound(id, cue); err != nil {
		return fmt.Errorf("publish sound cue: %w", err)
	}
	return nil
}
