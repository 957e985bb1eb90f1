package history

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("history: not found")

// Guess is one submitted answer for a puzzle.
type Guess struct {
	ID                  string    `json:"id"`
	Text                string    `json:"guessText"`
	IsCorrect           bool      `json:"isCorrect"`
	Timestamp           time.Time `json:"timestamp"`
	RevealedHintIndices []int     `json:"revealedHintIndices"`
}

// Record is everything kept for one device: the puzzle it belongs to and
// the guesses made against it.
type Record struct {
	PuzzleID  string    `json:"puzzleId"`
	Guesses   []Guess   `json:"guesses"`
	GaveUp    bool      `json:"gaveUp,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists one Record per key. Keys are browser session ids.
type Store interface {
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, key string, rec Record) error
	Delete(ctx context.Context, key string) error
}

// Cleaner is implemented by stores that need periodic expiry.
type Cleaner interface {
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}

type MemoryStore struct {
	mu sync.Mutex
	m  map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]Record)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Save(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = time.Now()
	s.m[key] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *MemoryStore) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for k, rec := range s.m {
		if rec.UpdatedAt.Before(cutoff) {
			delete(s.m, k)
			removed++
		}
	}
	return removed, nil
}

func cloneRecord(rec Record) Record {
	out := rec
	out.Guesses = make([]Guess, len(rec.Guesses))
	for i, g := range rec.Guesses {
		g.RevealedHintIndices = append([]int(nil), g.RevealedHintIndices...)
		out.Guesses[i] = g
	}
	return out
}
