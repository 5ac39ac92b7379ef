// Package store implements the persistence layer: one pretty-printed JSON
// document per logical table, with per-document exclusive locks and atomic
// temp-file + rename writes. It owns all canonical state; engine-held copies
// are caches rewritten on every mutating operation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/metrics"
	"github.com/ayushsreejith06/sectorflow/internal/model"
)

// Document names. All hold JSON arrays of entities.
const (
	DocAgents        = "agents"
	DocSectors       = "sectors"
	DocDiscussions   = "discussions"
	DocDebates       = "debates" // legacy, same shape minus decision fields
	DocComms         = "comms"
	DocPriceHistory  = "priceHistory"
	DocExecutionLogs = "executionLogs"
)

// Store is a concurrency-safe JSON document store rooted at a directory.
type Store struct {
	dir     string
	log     zerolog.Logger
	metrics *metrics.Set

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-document
}

// New creates (or reuses) a storage directory.
func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &model.StorageError{Op: "mkdir", Doc: dir, Err: err}
	}
	return &Store{
		dir:     dir,
		log:     log.With().Str("component", "store").Logger(),
		metrics: metrics.Default(),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// lockFor returns the exclusive lock for a document, creating it on first
// use. Distinct documents proceed in parallel.
func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Read unmarshals the current document into v. A missing file yields
// model.ErrNotFound; the caller may initialize with a default.
func (s *Store) Read(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("document %q: %w", name, model.ErrNotFound)
		}
		return &model.StorageError{Op: "read", Doc: name, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &model.StorageError{Op: "decode", Doc: name, Err: err}
	}
	return nil
}

// Write unconditionally replaces the document atomically. Readers never
// observe a partial file: content lands in a temp file first and is moved
// into place with rename. On failure the prior state remains visible.
func (s *Store) Write(name string, v any) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()
	return s.writeLocked(name, v)
}

func (s *Store) writeLocked(name string, v any) error {
	start := time.Now()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &model.StorageError{Op: "encode", Doc: name, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, name+"-*.tmp")
	if err != nil {
		return &model.StorageError{Op: "write", Doc: name, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &model.StorageError{Op: "write", Doc: name, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &model.StorageError{Op: "sync", Doc: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &model.StorageError{Op: "write", Doc: name, Err: err}
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return &model.StorageError{Op: "rename", Doc: name, Err: err}
	}

	s.metrics.StoreWrites.Inc()
	s.metrics.StoreWriteSeconds.Observe(time.Since(start).Seconds())

	s.log.Debug().
		Str("document", name).
		Int("bytes", len(data)).
		Msg("Document written")

	return nil
}

// Update performs an atomic read-modify-write on a typed document. The
// per-document lock is held for the duration of transform, which must be
// pure with respect to the provided state: no I/O, no side effects. A
// missing document starts from the zero value (an empty array once written).
func Update[T any](s *Store, name string, transform func(cur T) (T, error)) (T, error) {
	var zero T

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	var cur T
	if err := s.Read(name, &cur); err != nil && !errors.Is(err, model.ErrNotFound) {
		return zero, err
	}

	next, err := transform(cur)
	if err != nil {
		return zero, err
	}

	if err := s.writeLocked(name, next); err != nil {
		return zero, err
	}
	return next, nil
}

// Load reads a typed document, returning the zero value when it does not
// exist yet.
func Load[T any](s *Store, name string) (T, error) {
	var cur T
	if err := s.Read(name, &cur); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return cur, nil
		}
		return cur, err
	}
	return cur, nil
}
