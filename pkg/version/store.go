// ABOUTME: Append-only version store for proposal snapshots
// ABOUTME: Best-effort durability through a pluggable backend

package version

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Store. The zero value is an in-memory store.
type Options struct {
	Backend  Backend
	Logger   *zerolog.Logger
	Observer Observer
	Clock    func() time.Time
}

// Store keeps an ordered, append-only history of proposal versions.
// Persistence and load failures are logged and never returned to callers.
type Store struct {
	mu      sync.RWMutex
	entries []Entry

	backend  Backend
	log      zerolog.Logger
	observer Observer
	now      func() time.Time

	loadErr    error
	persistErr error
}

// NewStore creates a store, hydrating it from the backend if one is set
func NewStore(opts Options) *Store {
	s := &Store{
		backend:  opts.Backend,
		log:      zerolog.Nop(),
		observer: opts.Observer,
		now:      opts.Clock,
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "version_store").Logger()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	if s.backend != nil {
		entries, err := s.backend.Load()
		if err != nil {
			s.loadErr = err
			s.observer.LoadFailed()
			s.log.Error().Err(err).Msg("failed to load version history, starting empty")
		} else {
			s.entries = entries
			s.log.Debug().Int("versions", len(entries)).Msg("version history loaded")
		}
	}

	return s
}

// Open creates a store mirrored to a JSON file at path
func Open(path string, opts Options) *Store {
	opts.Backend = NewJSONFile(path)
	return NewStore(opts)
}

// Save records a deep copy of proposal and returns its 1-indexed version number
func (s *Store) Save(proposal Snapshot, rationale string) int {
	n, _ := s.Record(proposal, rationale)
	return n
}

// Record is Save that also reports the persist error of this particular save.
// The version is recorded in memory either way.
func (s *Store) Record(proposal Snapshot, rationale string) (int, error) {
	snapshot := Clone(proposal)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stamped under the lock so timestamps follow version order
	now := s.now()
	stamp := now.Format(TimeLayout)
	entry := Entry{
		Proposal:  snapshot,
		Rationale: rationale,
		Timestamp: float64(now.UnixNano()) / 1e9,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}

	s.entries = append(s.entries, entry)
	number := len(s.entries)
	s.observer.Saved()

	var persistErr error
	if s.backend != nil {
		persistErr = s.backend.Persist(s.entries)
		s.persistErr = persistErr
		if persistErr != nil {
			s.observer.PersistFailed()
			s.log.Warn().Err(persistErr).Int("version", number).Msg("failed to persist version history")
		}
	}

	s.log.Debug().Int("version", number).Str("rationale", rationale).Msg("version saved")
	return number, persistErr
}

// Get returns version n (1-indexed). ok is false when n is out of range.
func (s *Store) Get(n int) (entry Entry, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(n)
}

func (s *Store) getLocked(n int) (Entry, bool) {
	if n <= 0 || n > len(s.entries) {
		s.observer.Lookup(false)
		return Entry{}, false
	}
	s.observer.Lookup(true)
	return cloneEntry(s.entries[n-1]), true
}

// GetAll returns a copy of the full history, oldest first
func (s *Store) GetAll() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// GetLatest returns the most recent version
func (s *Store) GetLatest() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(len(s.entries))
}

// Compare returns the metadata of versions a and b. ok is false if either is missing.
func (s *Store) Compare(a, b int) (Comparison, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v1, ok := s.getLocked(a)
	if !ok {
		return Comparison{}, false
	}
	v2, ok := s.getLocked(b)
	if !ok {
		return Comparison{}, false
	}

	return Comparison{
		Version1:   a,
		Version2:   b,
		Timestamp1: v1.Timestamp,
		Timestamp2: v2.Timestamp,
		Rationale1: v1.Rationale,
		Rationale2: v2.Rationale,
	}, true
}

// Len returns the number of recorded versions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// LoadError returns the error that prevented hydration, if any
func (s *Store) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// LastPersistError returns the error of the most recent persist, nil if it succeeded
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistErr
}

// Close releases the backend
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

type nopObserver struct{}

func (nopObserver) Saved()          {}
func (nopObserver) PersistFailed()  {}
func (nopObserver) LoadFailed()     {}
func (nopObserver) Lookup(hit bool) {}
