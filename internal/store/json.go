package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"
)

// JSONStore keeps the State in a single JSON document.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewJSONStore creates a store backed by the file at path.
func NewJSONStore(path string, logger *zap.Logger) *JSONStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string { return s.path }

// LoadLatest reads the state document. A syntactically broken document gets
// one repair attempt before falling back to an empty State.
func (s *JSONStore) LoadLatest(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return Empty(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no persisted state yet", zap.String("path", s.path))
		return Empty(), nil
	}
	if err != nil {
		s.logger.Error("read state", zap.String("path", s.path), zap.Error(err))
		return Empty(), nil
	}

	st, err := decodeState(data)
	if err == nil {
		return st, nil
	}

	repaired, rerr := jsonrepair.JSONRepair(string(data))
	if rerr == nil {
		if st, err2 := decodeState([]byte(repaired)); err2 == nil {
			s.logger.Warn("state document repaired",
				zap.String("path", s.path),
				zap.Error(fmt.Errorf("%w: %v", ErrStorageCorrupt, err)))
			return st, nil
		}
	}

	s.logger.Error("discarding unreadable state",
		zap.String("path", s.path),
		zap.Error(fmt.Errorf("%w: %v", ErrStorageCorrupt, err)))
	return Empty(), nil
}

// Persist writes the State to a temp file in the same directory, syncs it
// and renames it over the target.
func (s *JSONStore) Persist(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st.normalized(), "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("store: replace state: %w", err)
	}

	s.logger.Debug("state persisted",
		zap.String("path", s.path),
		zap.Int("tickers", st.Snapshots.Len()),
		zap.Int("news", len(st.News)))
	return nil
}

// Close is a no-op for the file backend.
func (s *JSONStore) Close() error { return nil }

func decodeState(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return Empty(), err
	}
	return st.normalized(), nil
}
