package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/familyhundred/showsync/go/internal/game"
)

// ListenerConfig holds LISTEN/NOTIFY settings for the snapshot listener.
type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	Channel          string        // notification channel to LISTEN on
	FallbackInterval time.Duration // how often to poll for missed writes
	PingInterval     time.Duration
	MinReconnect     time.Duration
	MaxReconnect     time.Duration
}

// DefaultListenerConfig returns the stock listener configuration.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Channel:          NotifyChannel,
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
		MinReconnect:     10 * time.Second,
		MaxReconnect:     time.Minute,
	}
}

// Listener turns Postgres change notifications into snapshot deliveries for
// subscribed sessions. It is the storage-event analog: any process that
// writes the session row wakes every listener on the channel, and a
// clock-driven fallback poll catches notifications lost to a dropped
// connection.
type Listener struct {
	db    *sql.DB
	pql   *pq.Listener
	cfg   ListenerConfig
	clock clockwork.Clock

	mu           sync.Mutex
	subs         map[uuid.UUID]map[chan *game.GameState]struct{}
	lastRevision map[uuid.UUID]int64
}

// NewListener opens the LISTEN connection. db is a database/sql handle on
// the same database, used for the snapshot reads.
func NewListener(db *sql.DB, cfg ListenerConfig, clock clockwork.Clock) (*Listener, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	pql := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnect,
		cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("snapshot listener event")
			}
		},
	)
	if err := pql.Listen(cfg.Channel); err != nil {
		return nil, fmt.Errorf("listen on channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.Channel).
		Msg("listening for snapshot notifications")

	return &Listener{
		db:           db,
		pql:          pql,
		cfg:          cfg,
		clock:        clock,
		subs:         make(map[uuid.UUID]map[chan *game.GameState]struct{}),
		lastRevision: make(map[uuid.UUID]int64),
	}, nil
}

// Start processes notifications until the context ends.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.Channel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("snapshot listener started")

	pingTicker := l.clock.NewTicker(l.cfg.PingInterval)
	fallbackTicker := l.clock.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("snapshot listener shutting down")
			return l.Close()
		case note := <-l.pql.Notify:
			if note == nil {
				// nil notification means the connection was re-established;
				// the fallback poll covers whatever was missed.
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle snapshot notification")
			}
		case <-fallbackTicker.Chan():
			l.pollSubscribed(ctx)
		case <-pingTicker.Chan():
			if err := l.pql.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping snapshot listener")
			}
		}
	}
}

// Close shuts the LISTEN connection down.
func (l *Listener) Close() error {
	return l.pql.Close()
}

// Source adapts one session's subscription side for a display reader.
func (l *Listener) Source(sessionID uuid.UUID) *ListenerSource {
	return &ListenerSource{listener: l, sessionID: sessionID}
}

func (l *Listener) subscribe(sessionID uuid.UUID) (chan *game.GameState, func()) {
	ch := make(chan *game.GameState, 16)

	l.mu.Lock()
	if l.subs[sessionID] == nil {
		l.subs[sessionID] = make(map[chan *game.GameState]struct{})
	}
	l.subs[sessionID][ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			if set, ok := l.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(l.subs, sessionID)
					delete(l.lastRevision, sessionID)
				}
			}
			l.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (l *Listener) handleNotification(ctx context.Context, payload string) error {
	sessionID, err := uuid.Parse(payload)
	if err != nil {
		return fmt.Errorf("invalid session id in notification: %w", err)
	}

	l.mu.Lock()
	_, subscribed := l.subs[sessionID]
	l.mu.Unlock()
	if !subscribed {
		return nil
	}

	return l.deliver(ctx, sessionID, false)
}

// pollSubscribed re-reads every subscribed session's row, delivering only
// rows whose revision moved since the last delivery.
func (l *Listener) pollSubscribed(ctx context.Context) {
	l.mu.Lock()
	ids := make([]uuid.UUID, 0, len(l.subs))
	for id := range l.subs {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	for _, id := range ids {
		if err := l.deliver(ctx, id, true); err != nil {
			log.Error().
				Err(err).
				Str("session_id", id.String()).
				Msg("fallback snapshot poll failed")
		}
	}
}

func (l *Listener) deliver(ctx context.Context, sessionID uuid.UUID, onlyIfChanged bool) error {
	var (
		payload  pqtype.NullRawMessage
		revision int64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT payload, revision FROM game_snapshots WHERE session_id = $1`, sessionID,
	).Scan(&payload, &revision)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("read snapshot row: %w", err)
	}
	if !payload.Valid {
		return nil
	}

	st := game.Normalize(payload.RawMessage)

	// Sends are non-blocking, so holding the lock here is cheap and keeps
	// delivery from racing a concurrent unsubscribe's channel close.
	l.mu.Lock()
	defer l.mu.Unlock()
	if onlyIfChanged && l.lastRevision[sessionID] == revision {
		return nil
	}
	l.lastRevision[sessionID] = revision
	for ch := range l.subs[sessionID] {
		select {
		case ch <- st:
		default:
			log.Warn().
				Str("session_id", sessionID.String()).
				Msg("listener subscriber full, dropping snapshot")
		}
	}
	return nil
}

// ListenerSource subscribes a reader to store change notifications.
type ListenerSource struct {
	listener  *Listener
	sessionID uuid.UUID
}

func (s *ListenerSource) Name() string { return "store" }

func (s *ListenerSource) Subscribe(ctx context.Context) (<-chan *game.GameState, error) {
	ch, cancel := s.listener.subscribe(s.sessionID)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, nil
}
