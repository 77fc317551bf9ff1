package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/familyhundred/showsync/go/internal/game"
)

type recordingSink struct {
	name      string
	published []*game.GameState
	fail      bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, state *game.GameState) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.published = append(s.published, state)
	return nil
}

func newTestController(sinks ...Sink) *Controller {
	return New(uuid.New(), game.DefaultState(), sinks...)
}

func TestAddAnswerSortsByPoints(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	if err := c.AddAnswer(ctx, 1, "low", 10, -1); err != nil {
		t.Fatalf("AddAnswer: %v", err)
	}
	if err := c.AddAnswer(ctx, 1, "high", 40, -1); err != nil {
		t.Fatalf("AddAnswer: %v", err)
	}

	slots := c.State().Answers[1]
	if slots[0].Text != "high" || slots[1].Text != "low" {
		t.Errorf("order = [%s %s], want [high low]", slots[0].Text, slots[1].Text)
	}
}

func TestAddAnswerValidation(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	tests := []struct {
		name    string
		round   int
		text    string
		target  int
		wantErr error
	}{
		{name: "blank text", round: 1, text: "   ", target: -1, wantErr: ErrMissingAnswerText},
		{name: "round too low", round: 0, text: "x", target: -1, wantErr: ErrInvalidRound},
		{name: "round too high", round: 6, text: "x", target: -1, wantErr: ErrInvalidRound},
		{name: "target past capacity", round: 4, text: "x", target: 4, wantErr: ErrSlotOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.AddAnswer(ctx, tt.round, tt.text, 10, tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddAnswerCapacity(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	// Round 4 holds 4 answers.
	for i := 0; i < 4; i++ {
		if err := c.AddAnswer(ctx, 4, "a", 10, -1); err != nil {
			t.Fatalf("AddAnswer %d: %v", i, err)
		}
	}
	if err := c.AddAnswer(ctx, 4, "overflow", 10, -1); !errors.Is(err, ErrRoundFull) {
		t.Errorf("err = %v, want ErrRoundFull", err)
	}
}

func TestAddAnswerFillsEmptySlotFirst(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	if err := c.AddAnswer(ctx, 1, "a", 40, -1); err != nil {
		t.Fatalf("AddAnswer: %v", err)
	}
	if err := c.AddAnswer(ctx, 1, "b", 20, -1); err != nil {
		t.Fatalf("AddAnswer: %v", err)
	}
	if err := c.DeleteAnswer(ctx, 1, 0); err != nil {
		t.Fatalf("DeleteAnswer: %v", err)
	}

	// The freed slot is reused, then the round re-sorts.
	if err := c.AddAnswer(ctx, 1, "c", 30, -1); err != nil {
		t.Fatalf("AddAnswer: %v", err)
	}
	slots := c.State().Answers[1]
	if slots[0].Text != "c" || slots[1].Text != "b" {
		t.Errorf("order = [%s %s], want [c b]", slots[0].Text, slots[1].Text)
	}
}

func TestAddAnswerAtTargetIndexPads(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	if err := c.AddAnswer(ctx, 5, "bonus", 15, 7); err != nil {
		t.Fatalf("AddAnswer: %v", err)
	}
	slots := c.State().Answers[5]
	if game.FilledCount(slots) != 1 {
		t.Errorf("filled = %d, want 1", game.FilledCount(slots))
	}
	if slots[0] == nil || slots[0].Text != "bonus" {
		t.Errorf("slot 0 = %v, want the sorted answer", slots[0])
	}
}

func TestAddAnswerOverwritingRevealedSlotUpdatesTotal(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	c.AddAnswer(ctx, 1, "a", 40, -1)
	c.RevealAnswer(ctx, 1, 0)
	if got := c.State().TotalScore; got != 40 {
		t.Fatalf("TotalScore = %d, want 40 before the overwrite", got)
	}

	// The replacement starts hidden, so its points leave the total.
	if err := c.AddAnswer(ctx, 1, "b", 30, 0); err != nil {
		t.Fatalf("AddAnswer: %v", err)
	}
	st := c.State()
	if st.TotalScore != 0 {
		t.Errorf("TotalScore = %d, want 0 after overwriting the revealed slot", st.TotalScore)
	}
	if st.Answers[1][0].Text != "b" || st.Answers[1][0].Revealed {
		t.Errorf("slot 0 = %+v, want the hidden replacement", st.Answers[1][0])
	}
}

func TestDeleteAnswerKeepsPositions(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	c.AddAnswer(ctx, 1, "a", 40, -1)
	c.AddAnswer(ctx, 1, "b", 30, -1)
	c.AddAnswer(ctx, 1, "c", 20, -1)

	if err := c.DeleteAnswer(ctx, 1, 1); err != nil {
		t.Fatalf("DeleteAnswer: %v", err)
	}
	slots := c.State().Answers[1]
	if slots[1] != nil {
		t.Error("deleted slot should be empty")
	}
	if slots[2] == nil || slots[2].Text != "c" {
		t.Error("slot after the deleted one must keep its index")
	}
}

func TestRevealUpdatesTotal(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	c.AddAnswer(ctx, 1, "a", 40, -1)
	c.AddAnswer(ctx, 1, "b", 30, -1)

	if err := c.RevealAnswer(ctx, 1, 0); err != nil {
		t.Fatalf("RevealAnswer: %v", err)
	}
	if got := c.State().TotalScore; got != 40 {
		t.Errorf("TotalScore = %d, want 40", got)
	}

	if err := c.RevealAnswer(ctx, 1, 1); err != nil {
		t.Fatalf("RevealAnswer: %v", err)
	}
	if got := c.State().TotalScore; got != 70 {
		t.Errorf("TotalScore = %d, want 70", got)
	}

	if err := c.HideAnswer(ctx, 1, 0); err != nil {
		t.Fatalf("HideAnswer: %v", err)
	}
	if got := c.State().TotalScore; got != 30 {
		t.Errorf("TotalScore = %d, want 30", got)
	}
}

func TestRevealEmptySlotIsNoop(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	c := newTestController(sink)
	ctx := context.Background()

	if err := c.RevealAnswer(ctx, 1, 3); err != nil {
		t.Fatalf("RevealAnswer: %v", err)
	}
	if len(sink.published) != 0 {
		t.Errorf("no-op reveal committed %d snapshots", len(sink.published))
	}
}

func TestAddStrikeCeiling(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	var advised game.TeamSide
	c.OnStrikeLimit(func(side game.TeamSide) { advised = side })

	for i := 0; i < 5; i++ {
		if err := c.AddStrike(ctx, game.TeamLeft); err != nil {
			t.Fatalf("AddStrike %d: %v", i, err)
		}
	}
	st := c.State()
	if got := st.TeamLeft.Strikes[st.Round]; got != game.MaxStrikes {
		t.Errorf("strikes = %d, want ceiling %d", got, game.MaxStrikes)
	}
	if advised != game.TeamLeft {
		t.Errorf("advisory fired for %q, want left", advised)
	}
}

func TestResetStrikesOnlyLiveRound(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	c.AddStrike(ctx, game.TeamLeft)
	c.ChangeRound(ctx, 2)
	c.AddStrike(ctx, game.TeamLeft)
	c.AddStrike(ctx, game.TeamLeft)

	if err := c.ResetStrikes(ctx, game.TeamLeft); err != nil {
		t.Fatalf("ResetStrikes: %v", err)
	}
	st := c.State()
	if st.TeamLeft.Strikes[2] != 0 {
		t.Errorf("live round strikes = %d, want 0", st.TeamLeft.Strikes[2])
	}
	if st.TeamLeft.Strikes[1] != 1 {
		t.Errorf("round 1 strikes = %d, want untouched 1", st.TeamLeft.Strikes[1])
	}
}

func TestGiveRoundPointsToTeam(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	c.SetTeamScore(ctx, game.TeamLeft, 30)
	c.AddAnswer(ctx, 1, "a", 70, -1)
	c.AddAnswer(ctx, 1, "b", 50, -1)
	c.RevealAnswer(ctx, 1, 0)
	c.RevealAnswer(ctx, 1, 1)
	c.AddStrike(ctx, game.TeamRight)
	c.SetPlayingTeam(ctx, game.TeamLeft)

	if err := c.GiveRoundPointsToTeam(ctx, game.TeamLeft); err != nil {
		t.Fatalf("GiveRoundPointsToTeam: %v", err)
	}

	st := c.State()
	if st.TeamLeft.Score != 150 {
		t.Errorf("score = %d, want 150", st.TeamLeft.Score)
	}
	if st.TotalScore != 0 {
		t.Errorf("TotalScore = %d, want 0", st.TotalScore)
	}
	if st.CurrentPlayingTeam != game.TeamNone {
		t.Errorf("playing team = %q, want cleared", st.CurrentPlayingTeam)
	}
	for r := game.FirstRound; r <= game.BonusRound; r++ {
		if st.TeamLeft.Strikes[r] != 0 || st.TeamRight.Strikes[r] != 0 {
			t.Errorf("round %d strikes not cleared: %d/%d", r, st.TeamLeft.Strikes[r], st.TeamRight.Strikes[r])
		}
	}
	if st.Round != 1 {
		t.Errorf("round advanced to %d, scoring must not change the round", st.Round)
	}
	// The revealed answers stay on the board.
	if !st.Answers[1][0].Revealed {
		t.Error("reveals must survive the scoring transition")
	}
}

func TestChangeRoundRestoresTotal(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	c.AddAnswer(ctx, 1, "a", 40, -1)
	c.RevealAnswer(ctx, 1, 0)
	c.ChangeRound(ctx, 2)

	if got := c.State().TotalScore; got != 0 {
		t.Errorf("TotalScore in empty round = %d, want 0", got)
	}

	c.ChangeRound(ctx, 1)
	if got := c.State().TotalScore; got != 40 {
		t.Errorf("TotalScore back in round 1 = %d, want 40", got)
	}
}

func TestResetGame(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	c.SetQuestion(ctx, 1, "q")
	c.AddAnswer(ctx, 1, "a", 40, -1)
	c.RevealAnswer(ctx, 1, 0)
	c.SetTeamScore(ctx, game.TeamRight, 80)
	c.AddStrike(ctx, game.TeamLeft)

	before := c.State().Revision
	if err := c.ResetGame(ctx); err != nil {
		t.Fatalf("ResetGame: %v", err)
	}

	st := c.State()
	fresh := game.DefaultState()
	if st.Questions[1] != "" || len(st.Answers[1]) != 0 {
		t.Error("board not cleared")
	}
	if st.TeamRight.Score != 0 || st.TeamLeft.Strikes[1] != 0 {
		t.Error("team state not cleared")
	}
	if st.Round != fresh.Round || st.TotalScore != 0 {
		t.Error("round state not cleared")
	}
	if st.Revision != before+1 {
		t.Errorf("Revision = %d, want %d", st.Revision, before+1)
	}
}

func TestCommitContinuesPastFailingSink(t *testing.T) {
	bad := &recordingSink{name: "bad", fail: true}
	good := &recordingSink{name: "good"}
	c := newTestController(bad, good)
	ctx := context.Background()

	if err := c.SetQuestion(ctx, 1, "q"); err != nil {
		t.Fatalf("SetQuestion: %v", err)
	}
	if len(good.published) != 1 {
		t.Fatalf("healthy sink got %d snapshots, want 1", len(good.published))
	}
	if good.published[0].Questions[1] != "q" {
		t.Error("snapshot missing the committed change")
	}
}

func TestValidationLeavesStateUntouched(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	c := newTestController(sink)
	ctx := context.Background()

	c.AddAnswer(ctx, 1, "", 10, -1)
	c.AddStrike(ctx, game.TeamSide("middle"))
	c.ChangeRound(ctx, 99)

	if len(sink.published) != 0 {
		t.Errorf("rejected operations committed %d snapshots", len(sink.published))
	}
	if got := c.State().Revision; got != 0 {
		t.Errorf("Revision = %d, want 0", got)
	}
}

func TestToggleShowQuestion(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	if err := c.ToggleShowQuestion(ctx, 3); err != nil {
		t.Fatalf("ToggleShowQuestion: %v", err)
	}
	if !c.State().ShowQuestion[3] {
		t.Error("first toggle should show the question")
	}
	if err := c.ToggleShowQuestion(ctx, 3); err != nil {
		t.Fatalf("ToggleShowQuestion: %v", err)
	}
	if c.State().ShowQuestion[3] {
		t.Error("second toggle should hide it again")
	}
}
