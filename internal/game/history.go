package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"inotherwords/internal/history"
)

var (
	ErrGuessNotFound  = errors.New("guess not found")
	ErrPuzzleMismatch = errors.New("history belongs to another puzzle")
)

// History is the guess list for the current puzzle of one device. It is
// persisted through a history.Store under the device key, and only ever holds
// guesses for a single puzzle id.
type History struct {
	store history.Store
	key   string
	now   func() time.Time

	mu  sync.Mutex
	rec history.Record
}

func NewHistory(store history.Store, key string) *History {
	return &History{store: store, key: key, now: time.Now}
}

// Load switches the history to puzzleID. Stored data for any other puzzle is
// discarded.
func (h *History) Load(ctx context.Context, puzzleID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, err := h.store.Load(ctx, h.key)
	switch {
	case errors.Is(err, history.ErrNotFound):
		h.rec = history.Record{PuzzleID: puzzleID}
		return nil
	case err != nil:
		h.rec = history.Record{PuzzleID: puzzleID}
		return fmt.Errorf("load history: %w", err)
	}

	if rec.PuzzleID != puzzleID {
		h.rec = history.Record{PuzzleID: puzzleID}
		if err := h.store.Delete(ctx, h.key); err != nil {
			return fmt.Errorf("discard history for %s: %w", rec.PuzzleID, err)
		}
		return nil
	}
	h.rec = rec
	return nil
}

func (h *History) PuzzleID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rec.PuzzleID
}

// AddGuess appends a guess made against puzzleID. It is refused when the
// history has since been switched to another puzzle.
func (h *History) AddGuess(ctx context.Context, puzzleID, text string, isCorrect bool) (history.Guess, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rec.PuzzleID != puzzleID {
		return history.Guess{}, ErrPuzzleMismatch
	}

	g := history.Guess{
		ID:                  uuid.NewString(),
		Text:                text,
		IsCorrect:           isCorrect,
		Timestamp:           h.now().UTC(),
		RevealedHintIndices: []int{},
	}
	h.rec.Guesses = append(h.rec.Guesses, g)
	return g, h.saveLocked(ctx)
}

// RevealHintForGuess attaches a hint index to a guess. Revealing an index
// already shown on any guess is a no-op, so each hint is attached once.
func (h *History) RevealHintForGuess(ctx context.Context, guessID string, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := slices.IndexFunc(h.rec.Guesses, func(g history.Guess) bool { return g.ID == guessID })
	if i < 0 {
		return ErrGuessNotFound
	}
	if lo.SomeBy(h.rec.Guesses, func(g history.Guess) bool {
		return slices.Contains(g.RevealedHintIndices, index)
	}) {
		return nil
	}
	h.rec.Guesses[i].RevealedHintIndices = append(h.rec.Guesses[i].RevealedHintIndices, index)
	return h.saveLocked(ctx)
}

func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rec = history.Record{PuzzleID: h.rec.PuzzleID}
	return h.store.Delete(ctx, h.key)
}

// MarkGaveUp records that the puzzle was forfeited so a reload keeps the
// session locked.
func (h *History) MarkGaveUp(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rec.GaveUp = true
	return h.saveLocked(ctx)
}

func (h *History) GaveUp() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rec.GaveUp
}

// Guesses returns a copy ordered by timestamp, oldest first.
func (h *History) Guesses() []history.Guess {
	h.mu.Lock()
	out := lo.Map(h.rec.Guesses, func(g history.Guess, _ int) history.Guess {
		g.RevealedHintIndices = slices.Clone(g.RevealedHintIndices)
		return g
	})
	h.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (h *History) Find(guessID string) (history.Guess, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Find(h.rec.Guesses, func(g history.Guess) bool { return g.ID == guessID })
}

func (h *History) HasIncorrectGuess() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.SomeBy(h.rec.Guesses, func(g history.Guess) bool { return !g.IsCorrect })
}

func (h *History) HasCorrectGuess() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.SomeBy(h.rec.Guesses, func(g history.Guess) bool { return g.IsCorrect })
}

// RevealedHints is the union of hint indices revealed on any guess.
func (h *History) RevealedHints() map[int]bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[int]bool)
	for _, g := range h.rec.Guesses {
		for _, idx := range g.RevealedHintIndices {
			out[idx] = true
		}
	}
	return out
}

func (h *History) saveLocked(ctx context.Context) error {
	if h.rec.PuzzleID == "" {
		return nil
	}
	if err := h.store.Save(ctx, h.key, h.rec); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
