// Package store is the durable fan-out path: each session's document lives
// in one Postgres row, overwritten wholesale on every commit. A pg_notify on
// each write drives the change-notification side (see listener.go), so a
// separately started process observes commits without polling.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/game"
)

// NotifyChannel is the Postgres notification channel snapshot writes fire
// on. The payload is the session id.
const NotifyChannel = "game_state_changed"

// ErrNoSnapshot is returned by Load when the session has never been saved.
var ErrNoSnapshot = errors.New("no snapshot for session")

// Store persists whole GameState documents keyed by session id.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store over a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Save upserts the session's document and raises the change notification.
// The notify failing is logged but does not fail the save; the fallback
// poll on the listener side covers the gap.
func (s *Store) Save(ctx context.Context, sessionID uuid.UUID, state *game.GameState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	const upsert = `
		INSERT INTO game_snapshots (session_id, payload, revision, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id)
		DO UPDATE SET payload = EXCLUDED.payload,
		              revision = EXCLUDED.revision,
		              updated_at = now()`

	if _, err := s.pool.Exec(ctx, upsert, sessionID, payload, state.Revision); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, sessionID.String()); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("snapshot saved but change notification failed")
	}

	return nil
}

// Load reads the session's document and normalizes it, repairing any legacy
// or damaged shape. Returns ErrNoSnapshot when the row does not exist.
func (s *Store) Load(ctx context.Context, sessionID uuid.UUID) (*game.GameState, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM game_snapshots WHERE session_id = $1`, sessionID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return game.Normalize(payload), nil
}

// Sink adapts the store to the controller's fan-out for one session.
func (s *Store) Sink(sessionID uuid.UUID) *Sink {
	return &Sink{store: s, sessionID: sessionID}
}

// Sink writes committed snapshots through the store.
type Sink struct {
	store     *Store
	sessionID uuid.UUID
}

func (s *Sink) Name() string { return "store" }

func (s *Sink) Publish(ctx context.Context, state *game.GameState) error {
	return s.store.Save(ctx, s.sessionID, state)
}
