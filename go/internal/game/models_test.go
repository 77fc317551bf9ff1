package game

import (
	"encoding/json"
	"testing"
)

func TestTeamSideJSON(t *testing.T) {
	tests := []struct {
		name string
		side TeamSide
		want string
	}{
		{name: "left", side: TeamLeft, want: `"left"`},
		{name: "right", side: TeamRight, want: `"right"`},
		{name: "none marshals as null", side: TeamNone, want: `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.side)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("marshal = %s, want %s", data, tt.want)
			}

			var back TeamSide
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != tt.side {
				t.Errorf("round trip = %q, want %q", back, tt.side)
			}
		})
	}
}

func TestStateSurvivesPersistence(t *testing.T) {
	st := DefaultState()
	st.Questions[1] = "name a fruit"
	st.Answers[1] = []*Answer{{Text: "apple", Points: 40, Revealed: true}, nil, {Text: "pear", Points: 10}}
	st.TeamLeft.Score = 120
	st.TeamLeft.Strikes[1] = 2
	st.CurrentPlayingTeam = TeamLeft
	st.ShowQuestion[1] = true
	st.Round = 1
	st.RecomputeTotal()
	st.Revision = 7

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	back := Normalize(data)
	if back.Questions[1] != "name a fruit" {
		t.Errorf("question lost: %q", back.Questions[1])
	}
	if len(back.Answers[1]) != 3 || back.Answers[1][1] != nil {
		t.Errorf("answer layout changed: %v", back.Answers[1])
	}
	if back.Answers[1][0].Text != "apple" || !back.Answers[1][0].Revealed {
		t.Errorf("answer content lost: %+v", back.Answers[1][0])
	}
	if back.TeamLeft.Score != 120 || back.TeamLeft.Strikes[1] != 2 {
		t.Errorf("team state lost: %+v", back.TeamLeft)
	}
	if back.CurrentPlayingTeam != TeamLeft {
		t.Errorf("playing team lost: %q", back.CurrentPlayingTeam)
	}
	if !back.ShowQuestion[1] {
		t.Error("show question flag lost")
	}
	if back.TotalScore != 40 {
		t.Errorf("TotalScore = %d, want 40", back.TotalScore)
	}
	if back.Revision != 7 {
		t.Errorf("Revision = %d, want 7", back.Revision)
	}
}
