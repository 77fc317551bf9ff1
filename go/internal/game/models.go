package game

import "encoding/json"

// Round layout constants. Standard play uses rounds 1-4; round 5 is the
// bonus round, which is made up of five sub-questions with five answers
// each. Question and visibility maps are keyed 1-9 so that keys 5-9 can
// address the individual bonus sub-questions.
const (
	FirstRound    = 1
	BonusRound    = 5
	MaxQuestion   = 9
	MaxStrikes    = 3
	BonusSubCount = 5
	BonusSubSize  = 5
	BonusSlots    = BonusSubCount * BonusSubSize
)

// TeamSide identifies which side of the board a team plays on.
type TeamSide string

const (
	TeamLeft  TeamSide = "left"
	TeamRight TeamSide = "right"

	// TeamNone means no team currently holds the turn.
	TeamNone TeamSide = ""
)

// MarshalJSON writes TeamNone as JSON null to match the persisted document
// layout, where currentPlayingTeam is "left" | "right" | null.
func (s TeamSide) MarshalJSON() ([]byte, error) {
	if s == TeamNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *TeamSide) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = TeamNone
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = TeamSide(v)
	return nil
}

// Valid reports whether the side names an actual team.
func (s TeamSide) Valid() bool {
	return s == TeamLeft || s == TeamRight
}

// Answer is one filled slot on the board. Identity is positional: a slot is
// addressed by its index within a round's answer sequence.
type Answer struct {
	Text     string `json:"text"`
	Points   int    `json:"points"`
	Revealed bool   `json:"revealed"`
}

// Team holds one team's name, running score, and per-round strike counts.
type Team struct {
	Name    string      `json:"name"`
	Score   int         `json:"score"`
	Strikes map[int]int `json:"strikes"`
}

// GameState is the shared document for one game session. It is mutated only
// by the controller and replicated wholesale to every reader; a nil entry in
// an answer sequence is an empty slot.
type GameState struct {
	Questions          map[int]string    `json:"questions"`
	Answers            map[int][]*Answer `json:"answers"`
	TeamLeft           Team              `json:"teamLeft"`
	TeamRight          Team              `json:"teamRight"`
	TotalScore         int               `json:"totalScore"`
	Round              int               `json:"round"`
	CurrentPlayingTeam TeamSide          `json:"currentPlayingTeam"`
	ShowQuestion       map[int]bool      `json:"showQuestion"`

	// Revision counts commits for logging and debugging. Readers still apply
	// whichever snapshot arrives last regardless of revision.
	Revision int64 `json:"revision"`
}

// DefaultState returns the all-empty document a new session starts from.
func DefaultState() *GameState {
	return &GameState{
		Questions:          emptyQuestions(),
		Answers:            emptyAnswers(),
		TeamLeft:           Team{Name: "TEAM A", Strikes: emptyStrikes()},
		TeamRight:          Team{Name: "TEAM B", Strikes: emptyStrikes()},
		TotalScore:         0,
		Round:              FirstRound,
		CurrentPlayingTeam: TeamNone,
		ShowQuestion:       emptyShowQuestion(),
	}
}

func emptyQuestions() map[int]string {
	m := make(map[int]string, MaxQuestion)
	for q := 1; q <= MaxQuestion; q++ {
		m[q] = ""
	}
	return m
}

func emptyAnswers() map[int][]*Answer {
	m := make(map[int][]*Answer, BonusRound)
	for r := FirstRound; r <= BonusRound; r++ {
		m[r] = nil
	}
	return m
}

func emptyStrikes() map[int]int {
	m := make(map[int]int, BonusRound)
	for r := FirstRound; r <= BonusRound; r++ {
		m[r] = 0
	}
	return m
}

func emptyShowQuestion() map[int]bool {
	m := make(map[int]bool, MaxQuestion)
	for q := 1; q <= MaxQuestion; q++ {
		m[q] = false
	}
	return m
}

// Clone returns a deep copy. The controller mutates a clone and swaps it in,
// so snapshots already handed to readers are never written to.
func (g *GameState) Clone() *GameState {
	next := &GameState{
		Questions:          make(map[int]string, len(g.Questions)),
		Answers:            make(map[int][]*Answer, len(g.Answers)),
		TeamLeft:           g.TeamLeft.clone(),
		TeamRight:          g.TeamRight.clone(),
		TotalScore:         g.TotalScore,
		Round:              g.Round,
		CurrentPlayingTeam: g.CurrentPlayingTeam,
		ShowQuestion:       make(map[int]bool, len(g.ShowQuestion)),
		Revision:           g.Revision,
	}
	for q, text := range g.Questions {
		next.Questions[q] = text
	}
	for r, slots := range g.Answers {
		cp := make([]*Answer, len(slots))
		for i, a := range slots {
			if a != nil {
				dup := *a
				cp[i] = &dup
			}
		}
		next.Answers[r] = cp
	}
	for q, show := range g.ShowQuestion {
		next.ShowQuestion[q] = show
	}
	return next
}

func (t Team) clone() Team {
	strikes := make(map[int]int, len(t.Strikes))
	for r, n := range t.Strikes {
		strikes[r] = n
	}
	return Team{Name: t.Name, Score: t.Score, Strikes: strikes}
}

// Team returns the team record for a side.
func (g *GameState) Team(side TeamSide) *Team {
	if side == TeamLeft {
		return &g.TeamLeft
	}
	return &g.TeamRight
}
