package game

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"
)

// rawState decodes a persisted document loosely so that every field can be
// repaired independently. Older documents carried a single question string
// and a flat numeric strike count per team; both shapes still load.
type rawState struct {
	Question     *string                    `json:"question"`
	Questions    map[string]string          `json:"questions"`
	Answers      map[string]json.RawMessage `json:"answers"`
	TeamLeft     *rawTeam                   `json:"teamLeft"`
	TeamRight    *rawTeam                   `json:"teamRight"`
	TotalScore   *int                       `json:"totalScore"`
	Round        *int                       `json:"round"`
	PlayingTeam  json.RawMessage            `json:"currentPlayingTeam"`
	ShowQuestion map[string]bool            `json:"showQuestion"`
	Revision     int64                      `json:"revision"`
}

type rawTeam struct {
	Name    string          `json:"name"`
	Score   int             `json:"score"`
	Strikes json.RawMessage `json:"strikes"`
}

// Normalize reconstructs a well-formed GameState from a persisted document
// of unknown vintage. Every field falls back to its default when missing or
// malformed; if the document cannot be decoded at all, the default empty
// state is returned. Normalize never fails.
func Normalize(data []byte) *GameState {
	st := DefaultState()
	if len(data) == 0 {
		return st
	}

	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Msg("discarding undecodable game state, using defaults")
		return st
	}

	for key, text := range raw.Questions {
		if q, err := strconv.Atoi(key); err == nil && ValidQuestion(q) {
			st.Questions[q] = text
		}
	}
	// Legacy documents stored one question string for the whole game; it
	// becomes the round-1 question. The questions map wins when both exist.
	if raw.Question != nil && st.Questions[1] == "" {
		st.Questions[1] = *raw.Question
	}

	for key, msg := range raw.Answers {
		r, err := strconv.Atoi(key)
		if err != nil || !ValidRound(r) {
			continue
		}
		var slots []*Answer
		if err := json.Unmarshal(msg, &slots); err != nil {
			log.Warn().Int("round", r).Err(err).Msg("dropping malformed answer sequence")
			continue
		}
		if limit := SlotCapacity(r); len(slots) > limit {
			slots = slots[:limit]
		}
		for _, a := range slots {
			if a != nil && a.Points < 0 {
				a.Points = 0
			}
		}
		st.Answers[r] = slots
	}

	st.TeamLeft = normalizeTeam(raw.TeamLeft, st.TeamLeft)
	st.TeamRight = normalizeTeam(raw.TeamRight, st.TeamRight)

	if raw.Round != nil && ValidRound(*raw.Round) {
		st.Round = *raw.Round
	}

	if len(raw.PlayingTeam) > 0 {
		var side TeamSide
		if err := json.Unmarshal(raw.PlayingTeam, &side); err == nil {
			if side.Valid() {
				st.CurrentPlayingTeam = side
			}
		}
	}

	for key, show := range raw.ShowQuestion {
		if q, err := strconv.Atoi(key); err == nil && ValidQuestion(q) {
			st.ShowQuestion[q] = show
		}
	}

	st.Revision = raw.Revision

	// totalScore is derived state; recompute rather than trust the document.
	st.RecomputeTotal()
	return st
}

func normalizeTeam(raw *rawTeam, fallback Team) Team {
	if raw == nil {
		return fallback
	}
	t := Team{Name: raw.Name, Score: raw.Score, Strikes: emptyStrikes()}
	if t.Name == "" {
		t.Name = fallback.Name
	}
	if t.Score < 0 {
		t.Score = 0
	}

	if len(raw.Strikes) > 0 {
		// Current shape: per-round map. Legacy shape: a single number that
		// counted strikes for whichever round was live; it migrates to
		// round 1 and the remaining rounds start clean.
		var perRound map[string]int
		if err := json.Unmarshal(raw.Strikes, &perRound); err == nil {
			for key, n := range perRound {
				if r, err := strconv.Atoi(key); err == nil && ValidRound(r) {
					t.Strikes[r] = clampStrikes(n)
				}
			}
		} else {
			var flat int
			if err := json.Unmarshal(raw.Strikes, &flat); err == nil {
				t.Strikes[FirstRound] = clampStrikes(flat)
			}
		}
	}
	return t
}

func clampStrikes(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxStrikes {
		return MaxStrikes
	}
	return n
}
