package game

import "sort"

// SlotCapacity returns how many non-empty answer slots a round may hold:
// 7, 6, 5, 4 for rounds 1-4, and 25 for the bonus round (five slots for
// each of the five sub-questions).
func SlotCapacity(round int) int {
	if round == BonusRound {
		return BonusSlots
	}
	return 8 - round
}

// ValidRound reports whether round addresses a playable round (1-5).
func ValidRound(round int) bool {
	return round >= FirstRound && round <= BonusRound
}

// ValidQuestion reports whether q addresses a question slot (1-9; 5-9 are
// the bonus sub-questions).
func ValidQuestion(q int) bool {
	return q >= 1 && q <= MaxQuestion
}

// SortSlots reorders the filled slots of a round by points descending,
// keeping the sort stable for equal points and pushing empty slots to the
// tail. Sequence length is preserved. Revealing or hiding an answer never
// calls this; only insertion and point edits do.
func SortSlots(slots []*Answer) []*Answer {
	filled := make([]*Answer, 0, len(slots))
	for _, a := range slots {
		if a != nil {
			filled = append(filled, a)
		}
	}
	sort.SliceStable(filled, func(i, j int) bool {
		return filled[i].Points > filled[j].Points
	})
	out := make([]*Answer, len(slots))
	copy(out, filled)
	return out
}

// FilledCount returns the number of non-empty slots.
func FilledCount(slots []*Answer) int {
	n := 0
	for _, a := range slots {
		if a != nil {
			n++
		}
	}
	return n
}

// RevealedPoints sums the points of every revealed slot.
func RevealedPoints(slots []*Answer) int {
	total := 0
	for _, a := range slots {
		if a != nil && a.Revealed {
			total += a.Points
		}
	}
	return total
}

// MaxPoints returns the highest point value among the filled slots, or 0
// when the round has no answers. Drives the reveal-sound variant choice.
func MaxPoints(slots []*Answer) int {
	max := 0
	for _, a := range slots {
		if a != nil && a.Points > max {
			max = a.Points
		}
	}
	return max
}

// SlotAt returns the answer at index, or nil when the index is out of range
// or the slot is empty.
func SlotAt(slots []*Answer, index int) *Answer {
	if index < 0 || index >= len(slots) {
		return nil
	}
	return slots[index]
}

// BonusSubQuestion maps a bonus-round slot index (0-24) to its sub-question
// number (1-5). Slots are grouped five per sub-question.
func BonusSubQuestion(index int) int {
	return index/BonusSubSize + 1
}

// RecomputeTotal re-establishes the totalScore invariant: the sum of points
// over revealed slots of the live round.
func (g *GameState) RecomputeTotal() {
	g.TotalScore = RevealedPoints(g.Answers[g.Round])
}
