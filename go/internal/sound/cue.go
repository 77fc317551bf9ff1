// Package sound defines the cue commands carried on the audio side-channel.
// Cues are fire-and-forget: they ride a non-persisted transport so a display
// that reconnects can never replay an old command.
package sound

import (
	"time"

	"github.com/google/uuid"
)

// Cue names a sound a display should play.
type Cue string

const (
	// CueRevealRegular plays when an ordinary answer is revealed.
	CueRevealRegular Cue = "reveal_regular"
	// CueRevealHighest plays when the revealed answer carries the round's
	// top point value.
	CueRevealHighest Cue = "reveal_highest"
	// CueWrongAnswer plays when a team earns a strike.
	CueWrongAnswer Cue = "wrong_answer"
)

// Command is one cue addressed to the displays of a session.
type Command struct {
	SessionID uuid.UUID `json:"session_id"`
	Cue       Cue       `json:"cue"`
	IssuedAt  time.Time `json:"issued_at"`
}
