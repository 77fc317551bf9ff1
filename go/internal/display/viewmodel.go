package display

import "github.com/familyhundred/showsync/go/internal/game"

// BoardSlot is one row on the audience board. Hidden answers are masked by
// omission: Text and Points stay zero until the slot is revealed, so a
// display client never holds answer content it should not show.
type BoardSlot struct {
	Index    int    `json:"index"`
	Filled   bool   `json:"filled"`
	Revealed bool   `json:"revealed"`
	Text     string `json:"text,omitempty"`
	Points   int    `json:"points,omitempty"`
}

// TeamView is the audience-facing slice of one team.
type TeamView struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Strikes int    `json:"strikes"`
	Playing bool   `json:"playing"`
}

// BonusGroup is one bonus sub-question with its five slots.
type BonusGroup struct {
	Number       int         `json:"number"`
	Question     string      `json:"question,omitempty"`
	ShowQuestion bool        `json:"show_question"`
	Slots        []BoardSlot `json:"slots"`
}

// ViewModel is everything a display window renders for one snapshot.
type ViewModel struct {
	Round        int          `json:"round"`
	BonusRound   bool         `json:"bonus_round"`
	Question     string       `json:"question,omitempty"`
	ShowQuestion bool         `json:"show_question"`
	Slots        []BoardSlot  `json:"slots"`
	Bonus        []BonusGroup `json:"bonus,omitempty"`
	TotalScore   int          `json:"total_score"`
	TeamLeft     TeamView     `json:"team_left"`
	TeamRight    TeamView     `json:"team_right"`
	Revision     int64        `json:"revision"`
}

// Derive builds the view model for a snapshot. The board always carries the
// round's full slot capacity so empty positions render as placeholders; the
// bonus round additionally groups its 25 slots five per sub-question for the
// two-column layout.
func Derive(st *game.GameState) *ViewModel {
	round := st.Round
	vm := &ViewModel{
		Round:        round,
		BonusRound:   round == game.BonusRound,
		ShowQuestion: st.ShowQuestion[round],
		Slots:        deriveSlots(st.Answers[round], game.SlotCapacity(round)),
		TotalScore:   st.TotalScore,
		TeamLeft:     deriveTeam(st.TeamLeft, round, st.CurrentPlayingTeam == game.TeamLeft),
		TeamRight:    deriveTeam(st.TeamRight, round, st.CurrentPlayingTeam == game.TeamRight),
		Revision:     st.Revision,
	}

	if vm.ShowQuestion {
		vm.Question = st.Questions[round]
	}

	if vm.BonusRound {
		vm.Bonus = deriveBonus(st, vm.Slots)
	}

	return vm
}

func deriveSlots(slots []*game.Answer, capacity int) []BoardSlot {
	out := make([]BoardSlot, capacity)
	for i := range out {
		out[i] = BoardSlot{Index: i}
		a := game.SlotAt(slots, i)
		if a == nil {
			continue
		}
		out[i].Filled = true
		if a.Revealed {
			out[i].Revealed = true
			out[i].Text = a.Text
			out[i].Points = a.Points
		}
	}
	return out
}

func deriveTeam(t game.Team, round int, playing bool) TeamView {
	return TeamView{
		Name:    t.Name,
		Score:   t.Score,
		Strikes: t.Strikes[round],
		Playing: playing,
	}
}

func deriveBonus(st *game.GameState, slots []BoardSlot) []BonusGroup {
	groups := make([]BonusGroup, game.BonusSubCount)
	for i := range groups {
		sub := i + 1
		q := game.BonusRound + i // sub-questions live at question keys 5-9
		lo := i * game.BonusSubSize
		groups[i] = BonusGroup{
			Number:       sub,
			ShowQuestion: st.ShowQuestion[q],
			Slots:        slots[lo : lo+game.BonusSubSize],
		}
		if groups[i].ShowQuestion {
			groups[i].Question = st.Questions[q]
		}
	}
	return groups
}
