package history

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const minKeyLength = 10

// FileStore keeps one JSON file per key under Dir. Files older than MaxAge
// are treated as missing and removed.
type FileStore struct {
	Dir    string
	MaxAge time.Duration
}

func NewFileStore(dir string, maxAge time.Duration) *FileStore {
	return &FileStore{Dir: dir, MaxAge: maxAge}
}

func validKey(key string) bool {
	if len(key) < minKeyLength {
		return false
	}
	return !strings.ContainsAny(key, `/\.`)
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

func (s *FileStore) Save(_ context.Context, key string, rec Record) error {
	if !validKey(key) {
		log.Printf("[WARN] Skipping history save for invalid key: %q", key)
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}

	rec.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	// Readers only ever see a complete file.
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileStore) Load(_ context.Context, key string) (Record, error) {
	if !validKey(key) {
		return Record{}, ErrNotFound
	}
	file := s.path(key)

	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}

	if s.MaxAge > 0 && time.Since(info.ModTime()) > s.MaxAge {
		log.Printf("[INFO] History file is too old (%v, max: %v), removing: %s", time.Since(info.ModTime()), s.MaxAge, file)
		_ = os.Remove(file)
		return Record{}, ErrNotFound
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("[WARN] History file %s is corrupted, removing: %v", file, err)
		_ = os.Remove(file)
		return Record{}, ErrNotFound
	}
	if rec.PuzzleID == "" {
		log.Printf("[WARN] History file %s has no puzzle id, removing", file)
		_ = os.Remove(file)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return nil
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Cleanup removes files not written within maxAge.
func (s *FileStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed, failed := 0, 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			failed++
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.Dir, entry.Name())); err != nil {
				failed++
				continue
			}
			removed++
		}
	}
	if failed > 0 {
		log.Printf("[WARN] History cleanup: %d files could not be removed", failed)
	}
	return removed, nil
}
