// Package display implements the passive consumer side of a session: it
// merges snapshots arriving over every transport, derives the audience view
// model, and turns snapshot diffs into sound cues.
package display

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/game"
	"github.com/familyhundred/showsync/go/internal/sound"
)

// Source is one subscription path delivering full snapshots. The broadcast
// hub, the store listener, and the remote stream all satisfy it.
type Source interface {
	Name() string
	Subscribe(ctx context.Context) (<-chan *game.GameState, error)
}

// Notifier receives the side effects a new snapshot produced.
type Notifier interface {
	// Snapshot is called with the freshly applied state and its view model.
	Snapshot(state *game.GameState, vm *ViewModel)
	// Sound is called once per cue the diff produced.
	Sound(cue sound.Cue)
}

// Reader consumes snapshots for one session. Whichever transport delivers
// last determines the visible state; there is no merging and no conflict
// resolution. Transports racing can briefly show a stale snapshot, which is
// tolerated because the next commit supersedes it.
type Reader struct {
	sessionID uuid.UUID
	notifier  Notifier

	mu      sync.RWMutex
	current *game.GameState
}

// NewReader creates a reader. initial may be nil; the first applied snapshot
// then produces no sound cues.
func NewReader(sessionID uuid.UUID, initial *game.GameState, notifier Notifier) *Reader {
	return &Reader{
		sessionID: sessionID,
		notifier:  notifier,
		current:   initial,
	}
}

// Current returns the last applied snapshot, or nil before the first one.
func (r *Reader) Current() *game.GameState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Run subscribes to every source and applies snapshots until the context
// ends. A source that fails to subscribe is logged and skipped; the
// remaining transports keep the reader alive.
func (r *Reader) Run(ctx context.Context, sources ...Source) {
	merged := make(chan *game.GameState, 16)
	var wg sync.WaitGroup

	for _, src := range sources {
		ch, err := src.Subscribe(ctx)
		if err != nil {
			log.Error().
				Err(err).
				Str("session_id", r.sessionID.String()).
				Str("source", src.Name()).
				Msg("snapshot source unavailable, continuing without it")
			continue
		}
		wg.Add(1)
		go func(name string, ch <-chan *game.GameState) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case st, ok := <-ch:
					if !ok {
						log.Debug().
							Str("session_id", r.sessionID.String()).
							Str("source", name).
							Msg("snapshot source closed")
						return
					}
					select {
					case merged <- st:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src.Name(), ch)
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-merged:
			if !ok {
				return
			}
			r.Apply(st)
		}
	}
}

// Apply installs a snapshot as the visible state, emits the cues its diff
// against the previous snapshot produced, and notifies with the derived
// view model. Exported so transports that deliver synchronously (and tests)
// can push snapshots directly.
func (r *Reader) Apply(next *game.GameState) {
	if next == nil {
		return
	}

	r.mu.Lock()
	prev := r.current
	r.current = next
	r.mu.Unlock()

	if prev != nil && next.Revision < prev.Revision {
		log.Debug().
			Str("session_id", r.sessionID.String()).
			Int64("previous", prev.Revision).
			Int64("received", next.Revision).
			Msg("applying out-of-order snapshot, last received wins")
	}

	cues := diffCues(prev, next)
	vm := Derive(next)

	if r.notifier != nil {
		r.notifier.Snapshot(next, vm)
		for _, cue := range cues {
			r.notifier.Sound(cue)
		}
	}
}

// diffCues compares two snapshots and returns the sounds the transition
// triggers: a reveal cue per newly-revealed answer in the live round (the
// "highest" variant when the answer ties the round's top point value), and
// one wrong-answer cue when either team's live-round strikes grew.
func diffCues(prev, next *game.GameState) []sound.Cue {
	if prev == nil {
		return nil
	}

	var cues []sound.Cue
	round := next.Round
	slots := next.Answers[round]
	prevSlots := prev.Answers[round]
	top := game.MaxPoints(slots)

	for i, a := range slots {
		if a == nil || !a.Revealed {
			continue
		}
		if before := game.SlotAt(prevSlots, i); before != nil && before.Revealed {
			continue
		}
		if a.Points == top && a.Points > 0 {
			cues = append(cues, sound.CueRevealHighest)
		} else {
			cues = append(cues, sound.CueRevealRegular)
		}
	}

	if next.TeamLeft.Strikes[round] > prev.TeamLeft.Strikes[round] ||
		next.TeamRight.Strikes[round] > prev.TeamRight.Strikes[round] {
		cues = append(cues, sound.CueWrongAnswer)
	}

	return cues
}
