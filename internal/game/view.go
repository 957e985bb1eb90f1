package game

import (
	"fmt"
	"slices"
	"time"

	"inotherwords/internal/types"
)

// Viewer describes who is looking at the page.
type Viewer struct {
	Authenticated bool
	Subscribed    bool
}

type HintSlot struct {
	Index    int
	Number   int
	Revealed bool
	Text     string
}

type GuessView struct {
	ID          string
	Text        string
	IsCorrect   bool
	Timestamp   time.Time
	Hints       []HintSlot
	NextHint    int
	HasNextHint bool
}

// View is a consistent snapshot of a session for rendering.
type View struct {
	State     State
	Puzzle    *types.PuzzleQuestion
	LoadError string

	CategoryRevealed bool
	CategoryName     string
	CategoryIcon     string

	StatusKnown      bool
	AttemptCount     int
	RemainingGuesses int
	MaxGuesses       int
	RemainingLabel   string

	Guesses       []GuessView
	HintsUnlocked bool
	Hints         []HintSlot

	Result            *Result
	Input             string
	Submitting        bool
	GivingUp          bool
	CanSubmit         bool
	CanGiveUp         bool
	CompletionMessage string

	ShowSubscriptionCTA bool
	ShowSignInCTA       bool
}

func (v View) Terminal() bool {
	return v.State == StateSolved || v.State == StateGaveUp || v.State == StateOutOfGuesses
}

func (s *Session) View(viewer Viewer) View {
	guesses := s.history.Guesses()
	revealed := s.history.RevealedHints()
	hasIncorrect := s.history.HasIncorrectGuess()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()

	v := View{
		State:            s.state,
		Input:            s.input,
		Submitting:       s.submitting,
		GivingUp:         s.givingUp,
		CategoryRevealed: s.categoryRevealed,
		HintsUnlocked:    HintsUnlocked(hasIncorrect),
	}
	if s.loadErr != nil {
		v.LoadError = "Failed to load today's puzzle. Please try again."
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	if s.puzzle == nil {
		return v
	}

	p := *s.puzzle
	v.Puzzle = &p
	v.CategoryName = CategoryDisplayName(p.Category)
	v.CategoryIcon = CategoryIcon(p.Category)

	if s.status != nil {
		v.StatusKnown = true
		v.AttemptCount = s.status.AttemptCount
		v.RemainingGuesses = s.status.RemainingGuesses
		v.MaxGuesses = s.status.MaxGuesses
		if v.RemainingGuesses <= 0 {
			v.RemainingLabel = MessageNoAttempts
		} else {
			v.RemainingLabel = fmt.Sprintf("%d remaining", v.RemainingGuesses)
		}
	}

	for i := 0; i < p.NumHints; i++ {
		v.Hints = append(v.Hints, s.hintSlotLocked(i, revealed[i]))
	}

	next, hasNext := NextHint(p.NumHints, revealed)
	for _, g := range guesses {
		gv := GuessView{
			ID:        g.ID,
			Text:      g.Text,
			IsCorrect: g.IsCorrect,
			Timestamp: g.Timestamp,
		}
		idx := slices.Clone(g.RevealedHintIndices)
		slices.Sort(idx)
		for _, i := range idx {
			gv.Hints = append(gv.Hints, s.hintSlotLocked(i, true))
		}
		if !g.IsCorrect && v.HintsUnlocked && v.State == StateReady {
			gv.NextHint, gv.HasNextHint = next, hasNext
		}
		v.Guesses = append(v.Guesses, gv)
	}

	v.CanSubmit = v.State == StateReady && !s.submitting
	v.CanGiveUp = viewer.Authenticated && (v.State == StateReady || v.State == StateOutOfGuesses) && !s.givingUp

	if v.State == StateSolved {
		if v.StatusKnown && s.statusFromAttempts {
			v.CompletionMessage = fmt.Sprintf("Puzzle completed in %d %s!", v.AttemptCount, plural(v.AttemptCount, "attempt"))
		} else {
			v.CompletionMessage = "Puzzle completed!"
		}
	}

	out := v.State == StateOutOfGuesses
	v.ShowSubscriptionCTA = out && viewer.Authenticated && !viewer.Subscribed
	v.ShowSignInCTA = out && !viewer.Authenticated
	return v
}

func (s *Session) hintSlotLocked(index int, revealed bool) HintSlot {
	slot := HintSlot{Index: index, Number: index + 1, Revealed: revealed}
	if revealed {
		slot.Text = s.hintText[index]
	}
	return slot
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
