package game

import "testing"

func TestSlotCapacity(t *testing.T) {
	tests := []struct {
		round int
		want  int
	}{
		{round: 1, want: 7},
		{round: 2, want: 6},
		{round: 3, want: 5},
		{round: 4, want: 4},
		{round: 5, want: 25},
	}
	for _, tt := range tests {
		if got := SlotCapacity(tt.round); got != tt.want {
			t.Errorf("SlotCapacity(%d) = %d, want %d", tt.round, got, tt.want)
		}
	}
}

func TestSortSlots(t *testing.T) {
	tests := []struct {
		name  string
		slots []*Answer
		want  []string
	}{
		{
			name:  "higher points move up",
			slots: []*Answer{{Text: "A", Points: 10}, {Text: "B", Points: 40}},
			want:  []string{"B", "A"},
		},
		{
			name:  "stable for equal points",
			slots: []*Answer{{Text: "A", Points: 20}, {Text: "B", Points: 20}, {Text: "C", Points: 30}},
			want:  []string{"C", "A", "B"},
		},
		{
			name:  "empty slots trail",
			slots: []*Answer{nil, {Text: "A", Points: 5}, nil, {Text: "B", Points: 15}},
			want:  []string{"B", "A", "", ""},
		},
		{
			name:  "all empty",
			slots: []*Answer{nil, nil},
			want:  []string{"", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SortSlots(tt.slots)
			if len(got) != len(tt.slots) {
				t.Fatalf("length changed: got %d, want %d", len(got), len(tt.slots))
			}
			for i, want := range tt.want {
				text := ""
				if got[i] != nil {
					text = got[i].Text
				}
				if text != want {
					t.Errorf("slot %d = %q, want %q", i, text, want)
				}
			}
		})
	}
}

func TestRevealedPoints(t *testing.T) {
	slots := []*Answer{
		{Text: "A", Points: 40, Revealed: true},
		{Text: "B", Points: 30},
		nil,
		{Text: "C", Points: 10, Revealed: true},
	}
	if got := RevealedPoints(slots); got != 50 {
		t.Errorf("RevealedPoints = %d, want 50", got)
	}
}

func TestMaxPoints(t *testing.T) {
	tests := []struct {
		name  string
		slots []*Answer
		want  int
	}{
		{name: "empty round", slots: nil, want: 0},
		{name: "only empty slots", slots: []*Answer{nil, nil}, want: 0},
		{
			name:  "picks highest regardless of reveal",
			slots: []*Answer{{Points: 10, Revealed: true}, {Points: 40}},
			want:  40,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxPoints(tt.slots); got != tt.want {
				t.Errorf("MaxPoints = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBonusSubQuestion(t *testing.T) {
	tests := []struct {
		index int
		want  int
	}{
		{index: 0, want: 1},
		{index: 4, want: 1},
		{index: 5, want: 2},
		{index: 12, want: 3},
		{index: 24, want: 5},
	}
	for _, tt := range tests {
		if got := BonusSubQuestion(tt.index); got != tt.want {
			t.Errorf("BonusSubQuestion(%d) = %d, want %d", tt.index, got, tt.want)
		}
	}
}

func TestRecomputeTotalUsesLiveRoundOnly(t *testing.T) {
	st := DefaultState()
	st.Answers[1] = []*Answer{{Text: "A", Points: 40, Revealed: true}}
	st.Answers[2] = []*Answer{{Text: "B", Points: 30, Revealed: true}}

	st.Round = 2
	st.RecomputeTotal()
	if st.TotalScore != 30 {
		t.Errorf("TotalScore = %d, want 30", st.TotalScore)
	}

	st.Round = 1
	st.RecomputeTotal()
	if st.TotalScore != 40 {
		t.Errorf("TotalScore after round change = %d, want 40", st.TotalScore)
	}
}

func TestCloneIsDeep(t *testing.T) {
	st := DefaultState()
	st.Answers[1] = []*Answer{{Text: "A", Points: 10}}
	st.TeamLeft.Strikes[1] = 2

	cp := st.Clone()
	cp.Answers[1][0].Text = "changed"
	cp.TeamLeft.Strikes[1] = 3
	cp.Questions[1] = "changed"

	if st.Answers[1][0].Text != "A" {
		t.Error("answer mutation leaked into the original")
	}
	if st.TeamLeft.Strikes[1] != 2 {
		t.Error("strike mutation leaked into the original")
	}
	if st.Questions[1] != "" {
		t.Error("question mutation leaked into the original")
	}
}
