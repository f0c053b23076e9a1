package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"DubFlow/logger"
)

// jsonStore persists one record kind as a single JSON object mapping id -> record.
// The whole document is rewritten on every mutation. An in-process mutex and a
// lock file serialise read-modify-write cycles, and writes go through a temp file
// plus rename so readers never observe a partial document.
type jsonStore[T any] struct {
	path string
	mu   sync.Mutex // serialises use of lock within the process
	lock *flock.Flock
}

func newJSONStore[T any](path string) (*jsonStore[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory for %s: %w", path, err)
	}
	return &jsonStore[T]{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// load reads the document. A missing or corrupt file reads as an empty map.
func (s *jsonStore[T]) load() map[string]T {
	records := make(map[string]T)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read store file, treating as empty",
				logger.String("path", s.path), logger.ErrorField(err))
		}
		return records
	}
	if len(data) == 0 {
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn("Corrupt store file, treating as empty",
			logger.String("path", s.path), logger.ErrorField(err))
		return make(map[string]T)
	}
	return records
}

func (s *jsonStore[T]) write(records map[string]T) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", s.path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// view runs fn against a snapshot of the document under a shared file lock.
func (s *jsonStore[T]) view(fn func(map[string]T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.path, err)
	}
	defer s.lock.Unlock()

	fn(s.load())
	return nil
}

// update runs a read-modify-write cycle under an exclusive lock. The document is
// only rewritten when fn reports a change.
func (s *jsonStore[T]) update(fn func(map[string]T) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.path, err)
	}
	defer s.lock.Unlock()

	records := s.load()
	changed, err := fn(records)
	if err != nil || !changed {
		return err
	}
	return s.write(records)
}

func (s *jsonStore[T]) get(id string) (T, bool, error) {
	var (
		rec T
		ok  bool
	)
	err := s.view(func(m map[string]T) {
		rec, ok = m[id]
	})
	return rec, ok, err
}

func (s *jsonStore[T]) put(id string, rec T) error {
	return s.update(func(m map[string]T) (bool, error) {
		m[id] = rec
		return true, nil
	})
}

func (s *jsonStore[T]) remove(id string) (bool, error) {
	var found bool
	err := s.update(func(m map[string]T) (bool, error) {
		if _, found = m[id]; !found {
			return false, nil
		}
		delete(m, id)
		return true, nil
	})
	return found, err
}

func (s *jsonStore[T]) all() ([]T, error) {
	var out []T
	err := s.view(func(m map[string]T) {
		out = make([]T, 0, len(m))
		for _, rec := range m {
			out = append(out, rec)
		}
	})
	return out, err
}

// Path is the backing JSON document.
func (s *jsonStore[T]) Path() string {
	return s.path
}
