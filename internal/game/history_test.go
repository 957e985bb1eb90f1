package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inotherwords/internal/history"
)

func TestHistory_OrdersByTimestamp(t *testing.T) {
	h := NewHistory(history.NewMemoryStore(), "history-key-01")
	require.NoError(t, h.Load(context.Background(), "p1"))

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base.Add(2 * time.Minute), base, base.Add(time.Minute)}
	i := 0
	h.now = func() time.Time { ts := times[i]; i++; return ts }

	for _, text := range []string{"third", "first", "second"} {
		_, err := h.AddGuess(context.Background(), "p1", text, false)
		require.NoError(t, err)
	}

	got := h.Guesses()
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
	assert.Equal(t, "third", got[2].Text)
}

func TestHistory_DiscardsOtherPuzzle(t *testing.T) {
	store := history.NewMemoryStore()
	h := NewHistory(store, "history-key-01")
	require.NoError(t, h.Load(context.Background(), "p1"))
	_, err := h.AddGuess(context.Background(), "p1", "dog", false)
	require.NoError(t, err)

	again := NewHistory(store, "history-key-01")
	require.NoError(t, again.Load(context.Background(), "p1"))
	assert.Len(t, again.Guesses(), 1)

	require.NoError(t, again.Load(context.Background(), "p2"))
	assert.Empty(t, again.Guesses())
	assert.Equal(t, "p2", again.PuzzleID())
	_, err = store.Load(context.Background(), "history-key-01")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestHistory_RevealIsIdempotent(t *testing.T) {
	h := NewHistory(history.NewMemoryStore(), "history-key-01")
	require.NoError(t, h.Load(context.Background(), "p1"))
	g, err := h.AddGuess(context.Background(), "p1", "dog", false)
	require.NoError(t, err)

	require.NoError(t, h.RevealHintForGuess(context.Background(), g.ID, 1))
	require.NoError(t, h.RevealHintForGuess(context.Background(), g.ID, 1))
	assert.ErrorIs(t, h.RevealHintForGuess(context.Background(), "nope", 0), ErrGuessNotFound)

	found, ok := h.Find(g.ID)
	require.True(t, ok)
	assert.Equal(t, []int{1}, found.RevealedHintIndices)
	assert.Equal(t, map[int]bool{1: true}, h.RevealedHints())
}

func TestHistory_GuessesReturnsCopy(t *testing.T) {
	h := NewHistory(history.NewMemoryStore(), "history-key-01")
	require.NoError(t, h.Load(context.Background(), "p1"))
	g, err := h.AddGuess(context.Background(), "p1", "dog", false)
	require.NoError(t, err)
	require.NoError(t, h.RevealHintForGuess(context.Background(), g.ID, 0))

	got := h.Guesses()
	got[0].RevealedHintIndices[0] = 9
	got[0].Text = "changed"

	again := h.Guesses()
	assert.Equal(t, "dog", again[0].Text)
	assert.Equal(t, []int{0}, again[0].RevealedHintIndices)
}

func TestHistory_ClearAndGaveUp(t *testing.T) {
	store := history.NewMemoryStore()
	h := NewHistory(store, "history-key-01")
	require.NoError(t, h.Load(context.Background(), "p1"))
	_, err := h.AddGuess(context.Background(), "p1", "cat", true)
	require.NoError(t, err)
	assert.True(t, h.HasCorrectGuess())
	assert.False(t, h.HasIncorrectGuess())

	require.NoError(t, h.Clear(context.Background()))
	assert.Empty(t, h.Guesses())
	assert.Equal(t, "p1", h.PuzzleID())

	require.NoError(t, h.MarkGaveUp(context.Background()))
	assert.True(t, h.GaveUp())
	rec, err := store.Load(context.Background(), "history-key-01")
	require.NoError(t, err)
	assert.True(t, rec.GaveUp)
}

func TestHistory_AddGuessRefusesOtherPuzzle(t *testing.T) {
	store := history.NewMemoryStore()
	h := NewHistory(store, "history-key-01")
	require.NoError(t, h.Load(context.Background(), "p2"))

	_, err := h.AddGuess(context.Background(), "p1", "dog", false)
	assert.ErrorIs(t, err, ErrPuzzleMismatch)
	assert.Empty(t, h.Guesses())
	_, err = store.Load(context.Background(), "history-key-01")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestHistory_HintAttachedToOneGuessOnly(t *testing.T) {
	h := NewHistory(history.NewMemoryStore(), "history-key-01")
	require.NoError(t, h.Load(context.Background(), "p1"))
	first, err := h.AddGuess(context.Background(), "p1", "dog", false)
	require.NoError(t, err)
	second, err := h.AddGuess(context.Background(), "p1", "cow", false)
	require.NoError(t, err)

	require.NoError(t, h.RevealHintForGuess(context.Background(), first.ID, 0))
	require.NoError(t, h.RevealHintForGuess(context.Background(), second.ID, 0))

	got, ok := h.Find(second.ID)
	require.True(t, ok)
	assert.Empty(t, got.RevealedHintIndices)
	got, ok = h.Find(first.ID)
	require.True(t, ok)
	assert.Equal(t, []int{0}, got.RevealedHintIndices)
}
