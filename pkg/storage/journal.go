// ABOUTME: Version history backends beyond the JSON file
// ABOUTME: Journal appends each new version to the write-ahead log

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nainya/grantdraft/pkg/version"
	"github.com/nainya/grantdraft/pkg/wal"
)

// ErrNotLoaded is returned by Persist when history was never loaded successfully,
// since the backend cannot tell which versions are already stored
var ErrNotLoaded = errors.New("storage: history not loaded")

// Journal stores one WAL entry per version, so a save costs one append
// instead of a whole-history rewrite
type Journal struct {
	mu        sync.Mutex
	wal       *wal.WAL
	journaled int
	loaded    bool
}

// OpenJournal opens (or creates) the journal at path
func OpenJournal(path string) (*Journal, error) {
	w := &wal.WAL{Path: path}
	if err := w.Open(); err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{wal: w}, nil
}

// Load replays the journal
func (j *Journal) Load() ([]version.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	files, err := j.wal.Segments()
	if err != nil {
		return nil, fmt.Errorf("list journal segments: %w", err)
	}
	records, err := wal.ReadAll(files)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	entries := make([]version.Entry, 0, len(records))
	for _, rec := range records {
		if rec.OpType != wal.OpAppend {
			continue
		}
		var e version.Entry
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return nil, fmt.Errorf("decode journal entry %d: %w", rec.LSN, err)
		}
		entries = append(entries, e)
	}

	j.journaled = len(entries)
	j.loaded = true
	return entries, nil
}

// Persist appends every version not yet journaled, then syncs.
// Versions that failed to append earlier are retried here.
func (j *Journal) Persist(history []version.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.loaded {
		return ErrNotLoaded
	}

	for j.journaled < len(history) {
		payload, err := json.Marshal(history[j.journaled])
		if err != nil {
			return fmt.Errorf("encode version %d: %w", j.journaled+1, err)
		}
		if _, err := j.wal.Append(wal.OpAppend, payload); err != nil {
			return fmt.Errorf("append version %d: %w", j.journaled+1, err)
		}
		j.journaled++
	}

	if err := j.wal.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Close closes the underlying log
func (j *Journal) Close() error {
	return j.wal.Close()
}
