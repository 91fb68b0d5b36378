// ABOUTME: Version history data model
// ABOUTME: Snapshots, entries and metadata comparisons

package version

import "time"

// TimeLayout is the human-readable layout of CreatedAt / UpdatedAt
const TimeLayout = "2006-01-02 15:04:05"

// Snapshot is an opaque proposal record. The store never inspects its fields.
type Snapshot map[string]any

// Entry is one recorded version: a snapshot plus why it was recorded
type Entry struct {
	Proposal  Snapshot `json:"proposal"`
	Rationale string   `json:"rationale"`
	Timestamp float64  `json:"timestamp"`  // epoch seconds
	CreatedAt string   `json:"created_at"` // TimeLayout, local time
	UpdatedAt string   `json:"updated_at"` // always equal to CreatedAt
}

// Time returns the save time encoded in Timestamp
func (e Entry) Time() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Comparison is a metadata-only diff of two versions
type Comparison struct {
	Version1   int     `json:"version1"`
	Version2   int     `json:"version2"`
	Timestamp1 float64 `json:"timestamp1"`
	Timestamp2 float64 `json:"timestamp2"`
	Rationale1 string  `json:"rationale1"`
	Rationale2 string  `json:"rationale2"`
}

// Backend persists the version history
type Backend interface {
	// Load returns the persisted history. Missing storage is an empty history, not an error.
	Load() ([]Entry, error)

	// Persist is called after every append with the complete history, oldest first.
	Persist(history []Entry) error

	Close() error
}

// Observer receives store events, typically for metrics
type Observer interface {
	Saved()
	PersistFailed()
	LoadFailed()
	Lookup(hit bool)
}
