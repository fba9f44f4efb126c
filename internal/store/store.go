// Package store persists the latest snapshot set and the news buffer.
//
// Both logical collections are written together: a Persist call either
// replaces the whole State or leaves the previous State intact.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

// ErrStorageCorrupt marks persisted state that could not be read back.
// LoadLatest logs it and degrades to an empty State.
var ErrStorageCorrupt = errors.New("store: persisted state is corrupt")

// Driver names accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// State is everything a cycle reads and writes.
type State struct {
	Snapshots models.SnapshotSet `json:"snapshots"`
	News      []models.NewsItem  `json:"news"`
}

// Empty returns a State with initialised collections.
func Empty() State {
	return State{Snapshots: models.NewSnapshotSet("", ""), News: []models.NewsItem{}}
}

// normalized fills nil collections so callers never see nil maps.
func (s State) normalized() State {
	if s.Snapshots.Tickers == nil {
		s.Snapshots.Tickers = make(map[string]models.TickerSnapshot)
	}
	if s.News == nil {
		s.News = []models.NewsItem{}
	}
	return s
}

// Store is the persistence contract used by the pipeline.
type Store interface {
	// LoadLatest returns the last persisted State. Missing or unreadable
	// storage yields an empty State and a nil error.
	LoadLatest(ctx context.Context) (State, error)
	// Persist atomically replaces the stored State.
	Persist(ctx context.Context, s State) error
	Close() error
}

// Options selects and locates a backend.
type Options struct {
	Driver string
	Dir    string
}

// Open returns the backend named by opts.Driver.
func Open(opts Options, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch opts.Driver {
	case "", DriverJSON:
		return NewJSONStore(filepath.Join(opts.Dir, "state.json"), logger), nil
	case DriverSQLite:
		return OpenSQLite(filepath.Join(opts.Dir, "stockwatcher.db"), logger)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
}

// Export returns the latest State of any backend as a JSON document in
// the json driver's on-disk layout.
func Export(ctx context.Context, s Store) ([]byte, error) {
	st, err := s.LoadLatest(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(st.normalized())
}
