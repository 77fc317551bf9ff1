// Package controller implements the single mutation surface for a session's
// GameState. Every operation computes a full next document from the current
// one and commits it wholesale; transports never see partial patches.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/game"
)

// Validation failures. These are reported to the operator and leave the
// document untouched.
var (
	ErrMissingAnswerText = errors.New("answer text is required")
	ErrInvalidRound      = errors.New("round out of range")
	ErrInvalidQuestion   = errors.New("question number out of range")
	ErrInvalidSide       = errors.New("unknown team side")
	ErrRoundFull         = errors.New("round has no free answer slots")
	ErrSlotOutOfRange    = errors.New("answer index out of range")
)

// Sink is one fan-out path for committed snapshots. Writes are best-effort:
// a failing sink is logged and skipped, the others still receive the commit.
type Sink interface {
	Name() string
	Publish(ctx context.Context, state *game.GameState) error
}

// Controller owns the in-memory document for one session. It assumes a
// single logical writer; the mutex only serializes the HTTP handlers that
// deliver that writer's operations.
type Controller struct {
	sessionID uuid.UUID

	mu    sync.Mutex
	state *game.GameState
	sinks []Sink

	// onStrikeLimit is the advisory turn-over notification raised when a
	// team reaches the strike ceiling. No state transition is forced; the
	// operator decides what happens next.
	onStrikeLimit func(side game.TeamSide)
}

// New creates a controller seeded with initial (normally the stored snapshot
// or the default state).
func New(sessionID uuid.UUID, initial *game.GameState, sinks ...Sink) *Controller {
	if initial == nil {
		initial = game.DefaultState()
	}
	return &Controller{
		sessionID: sessionID,
		state:     initial,
		sinks:     sinks,
	}
}

// OnStrikeLimit registers the advisory callback fired when strikes reach the
// ceiling.
func (c *Controller) OnStrikeLimit(fn func(side game.TeamSide)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStrikeLimit = fn
}

// State returns a snapshot of the current document.
func (c *Controller) State() *game.GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// SetQuestion sets the text for a question slot (1-9).
func (c *Controller) SetQuestion(ctx context.Context, q int, text string) error {
	if !game.ValidQuestion(q) {
		return ErrInvalidQuestion
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.Questions[q] = text
		return nil
	})
}

// SetShowQuestion sets whether a question is visible on the display.
func (c *Controller) SetShowQuestion(ctx context.Context, q int, show bool) error {
	if !game.ValidQuestion(q) {
		return ErrInvalidQuestion
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.ShowQuestion[q] = show
		return nil
	})
}

// ToggleShowQuestion flips a question's visibility.
func (c *Controller) ToggleShowQuestion(ctx context.Context, q int) error {
	if !game.ValidQuestion(q) {
		return ErrInvalidQuestion
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.ShowQuestion[q] = !st.ShowQuestion[q]
		return nil
	})
}

// AddAnswer places a new answer in a round. With targetIndex >= 0 the answer
// lands at that slot, padding the sequence with empty slots as needed and
// overwriting any existing entry; otherwise the first empty slot is filled,
// or the answer is appended. Filled slots are then re-sorted by points
// descending with empties trailing.
func (c *Controller) AddAnswer(ctx context.Context, round int, text string, points, targetIndex int) error {
	if !game.ValidRound(round) {
		return ErrInvalidRound
	}
	if strings.TrimSpace(text) == "" {
		return ErrMissingAnswerText
	}
	if points < 0 {
		points = 0
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		slots := st.Answers[round]
		entry := &game.Answer{Text: text, Points: points}

		switch {
		case targetIndex >= 0:
			if targetIndex >= game.SlotCapacity(round) {
				return ErrSlotOutOfRange
			}
			for len(slots) <= targetIndex {
				slots = append(slots, nil)
			}
			slots[targetIndex] = entry
		default:
			placed := false
			for i, a := range slots {
				if a == nil {
					slots[i] = entry
					placed = true
					break
				}
			}
			if !placed {
				if len(slots) >= game.SlotCapacity(round) {
					return ErrRoundFull
				}
				slots = append(slots, entry)
			}
		}

		st.Answers[round] = game.SortSlots(slots)
		// Overwriting a revealed slot removes its points from the total.
		st.RecomputeTotal()
		return nil
	})
}

// UpdateAnswerText changes the text of a filled slot. Empty slots are left
// alone without error.
func (c *Controller) UpdateAnswerText(ctx context.Context, round, index int, text string) error {
	if !game.ValidRound(round) {
		return ErrInvalidRound
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		a := game.SlotAt(st.Answers[round], index)
		if a == nil {
			return errNoop
		}
		a.Text = text
		return nil
	})
}

// UpdateAnswerPoints changes a filled slot's point value and re-sorts the
// round by points descending. The reorder is a documented post-condition of
// every points edit, not an incidental side effect.
func (c *Controller) UpdateAnswerPoints(ctx context.Context, round, index, points int) error {
	if !game.ValidRound(round) {
		return ErrInvalidRound
	}
	if points < 0 {
		points = 0
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		a := game.SlotAt(st.Answers[round], index)
		if a == nil {
			return errNoop
		}
		a.Points = points
		st.Answers[round] = game.SortSlots(st.Answers[round])
		st.RecomputeTotal()
		return nil
	})
}

// DeleteAnswer clears a slot back to empty. Positions to the right keep
// their indexes; the sequence is never compacted.
func (c *Controller) DeleteAnswer(ctx context.Context, round, index int) error {
	if !game.ValidRound(round) {
		return ErrInvalidRound
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		slots := st.Answers[round]
		if index < 0 || index >= len(slots) || slots[index] == nil {
			return errNoop
		}
		slots[index] = nil
		st.RecomputeTotal()
		return nil
	})
}

// RevealAnswer flips a slot to revealed and recomputes the round total.
func (c *Controller) RevealAnswer(ctx context.Context, round, index int) error {
	return c.setRevealed(ctx, round, index, true)
}

// HideAnswer flips a slot back to hidden and recomputes the round total.
func (c *Controller) HideAnswer(ctx context.Context, round, index int) error {
	return c.setRevealed(ctx, round, index, false)
}

func (c *Controller) setRevealed(ctx context.Context, round, index int, revealed bool) error {
	if !game.ValidRound(round) {
		return ErrInvalidRound
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		a := game.SlotAt(st.Answers[round], index)
		if a == nil {
			return errNoop
		}
		a.Revealed = revealed
		st.RecomputeTotal()
		return nil
	})
}

// SetPlayingTeam records which team holds the turn; game.TeamNone clears it.
func (c *Controller) SetPlayingTeam(ctx context.Context, side game.TeamSide) error {
	if side != game.TeamNone && !side.Valid() {
		return ErrInvalidSide
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.CurrentPlayingTeam = side
		return nil
	})
}

// AddStrike records a miss for a team in the live round. At the ceiling of
// three the call is a no-op; reaching three raises the advisory turn-over
// notification.
func (c *Controller) AddStrike(ctx context.Context, side game.TeamSide) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	limitHit := false
	err := c.mutate(ctx, func(st *game.GameState) error {
		team := st.Team(side)
		if team.Strikes[st.Round] >= game.MaxStrikes {
			return errNoop
		}
		team.Strikes[st.Round]++
		limitHit = team.Strikes[st.Round] == game.MaxStrikes
		return nil
	})
	if err != nil {
		return err
	}
	if limitHit {
		log.Info().
			Str("session_id", c.sessionID.String()).
			Str("side", string(side)).
			Msg("strike limit reached, turn-over advised")
		c.mu.Lock()
		notify := c.onStrikeLimit
		c.mu.Unlock()
		if notify != nil {
			notify(side)
		}
	}
	return nil
}

// ResetStrikes clears a team's strikes for the live round only. Clearing
// every round for both teams is the scoring transition's job; see
// GiveRoundPointsToTeam.
func (c *Controller) ResetStrikes(ctx context.Context, side game.TeamSide) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.Team(side).Strikes[st.Round] = 0
		return nil
	})
}

// GiveRoundPointsToTeam is the end-of-round scoring transition: the round
// total is added to the winning team's score, both teams' strike maps are
// wiped for every round, the total resets to zero, and the turn is cleared.
// The round itself does not advance; ChangeRound is a separate operation.
func (c *Controller) GiveRoundPointsToTeam(ctx context.Context, side game.TeamSide) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.Team(side).Score += st.TotalScore
		for r := game.FirstRound; r <= game.BonusRound; r++ {
			st.TeamLeft.Strikes[r] = 0
			st.TeamRight.Strikes[r] = 0
		}
		st.TotalScore = 0
		st.CurrentPlayingTeam = game.TeamNone
		return nil
	})
}

// ChangeRound selects the live round and recomputes the total from that
// round's already-revealed answers. Reveals and strikes are left as they
// are, so returning to an earlier round restores its board.
func (c *Controller) ChangeRound(ctx context.Context, round int) error {
	if !game.ValidRound(round) {
		return ErrInvalidRound
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.Round = round
		st.RecomputeTotal()
		return nil
	})
}

// SetTeamName renames a team.
func (c *Controller) SetTeamName(ctx context.Context, side game.TeamSide, name string) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	if strings.TrimSpace(name) == "" {
		return ErrMissingAnswerText
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.Team(side).Name = name
		return nil
	})
}

// SetTeamScore overwrites a team's score directly. Operator correction
// path; normal scoring goes through GiveRoundPointsToTeam.
func (c *Controller) SetTeamScore(ctx context.Context, side game.TeamSide, score int) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	if score < 0 {
		score = 0
	}
	return c.mutate(ctx, func(st *game.GameState) error {
		st.Team(side).Score = score
		return nil
	})
}

// ResetGame replaces the whole document with the default empty state. The
// revision keeps counting so readers can tell the reset apart from a stale
// snapshot in logs.
func (c *Controller) ResetGame(ctx context.Context) error {
	return c.mutate(ctx, func(st *game.GameState) error {
		fresh := game.DefaultState()
		fresh.Revision = st.Revision
		*st = *fresh
		return nil
	})
}

// errNoop signals that an operation matched a documented no-op condition
// (for example revealing an empty slot). Nothing is committed and the caller
// sees success.
var errNoop = errors.New("no-op")

// mutate runs fn against a clone of the current document and, when it
// changed something, swaps the clone in and fans it out.
func (c *Controller) mutate(ctx context.Context, fn func(*game.GameState) error) error {
	c.mu.Lock()
	next := c.state.Clone()
	if err := fn(next); err != nil {
		c.mu.Unlock()
		if errors.Is(err, errNoop) {
			return nil
		}
		return err
	}
	next.Revision++
	c.state = next
	sinks := c.sinks
	c.mu.Unlock()

	c.commit(ctx, next, sinks)
	return nil
}

// commit replicates a snapshot to every sink. Writes are not transactional:
// a failed sink is logged and the others keep the commit, so observers may
// transiently disagree until the next commit lands.
func (c *Controller) commit(ctx context.Context, state *game.GameState, sinks []Sink) {
	for _, sink := range sinks {
		if err := sink.Publish(ctx, state); err != nil {
			log.Error().
				Err(err).
				Str("session_id", c.sessionID.String()).
				Str("sink", sink.Name()).
				Int64("revision", state.Revision).
				Msg("snapshot publish failed, continuing with remaining sinks")
		}
	}
}
