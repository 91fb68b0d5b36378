package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultSegmentSize is the size at which a new segment file is started (64MB)
	DefaultSegmentSize = 64 << 20
)

// WAL is an append-only log. Segments are never deleted: every entry ever
// appended stays readable.
type WAL struct {
	// Path is the base path for segment files (e.g., "/data/versions.wal")
	Path string

	// SegmentSize overrides DefaultSegmentSize when positive
	SegmentSize int64

	// fd is the current segment file descriptor
	fd *os.File

	// mu protects concurrent access to WAL
	mu sync.Mutex

	// lsn is the current Log Sequence Number (atomic)
	lsn uint64

	// fileSize is the current segment size
	fileSize int64

	// fileIndex is the current segment index (0, 1, 2, ...)
	fileIndex int

	closed bool

	// broken is set when a torn write could not be cut off; the segment
	// no longer ends on an entry boundary, so every later write fails
	broken error

	// writeFn writes to the current segment; nil means fd.Write
	writeFn func(fd *os.File, p []byte) (int, error)
}

// Open opens or creates the WAL. A torn entry at the end of the newest
// segment is cut off so later appends start on an entry boundary.
func (w *WAL) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.Path), 0755); err != nil {
		return fmt.Errorf("wal: create dir: %w", err)
	}

	files, err := w.segmentsNoLock()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fd, err := os.OpenFile(w.segmentPath(0), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		w.fd = fd
		w.fileSize = 0
		w.fileIndex = 0
		atomic.StoreUint64(&w.lsn, 0)
		w.closed = false
		w.broken = nil
		return nil
	}

	var maxLSN uint64
	var validEnd int64
	for i, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		entries, end, err := parseSegment(data)
		last := i == len(files)-1
		if err != nil && !(last && err == ErrTruncated) {
			return fmt.Errorf("wal: %s: %w", filepath.Base(file), err)
		}
		for _, e := range entries {
			if e.LSN > maxLSN {
				maxLSN = e.LSN
			}
		}
		if last {
			validEnd = int64(end)
		}
	}

	latest := files[len(files)-1]
	fd, err := os.OpenFile(latest, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	stat, err := fd.Stat()
	if err != nil {
		fd.Close()
		return err
	}
	if stat.Size() > validEnd {
		if err := fd.Truncate(validEnd); err != nil {
			fd.Close()
			return fmt.Errorf("wal: truncate torn tail: %w", err)
		}
	}

	w.fd = fd
	w.fileSize = validEnd
	w.fileIndex = w.indexOf(latest)
	atomic.StoreUint64(&w.lsn, maxLSN)
	w.closed = false
	w.broken = nil
	return nil
}

// NextLSN returns the next Log Sequence Number
func (w *WAL) NextLSN() uint64 {
	return atomic.AddUint64(&w.lsn, 1)
}

// LastLSN returns the most recently issued Log Sequence Number
func (w *WAL) LastLSN() uint64 {
	return atomic.LoadUint64(&w.lsn)
}

// Append assigns the next LSN to a payload and writes it
func (w *WAL) Append(op OpType, payload []byte) (uint64, error) {
	entry := Entry{
		LSN:       w.NextLSN(),
		OpType:    op,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if err := w.Write(entry); err != nil {
		return 0, err
	}
	return entry.LSN, nil
}

// Write writes an entry to the WAL
func (w *WAL) Write(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrLogClosed
	}
	if w.broken != nil {
		return w.broken
	}

	data, err := entry.Encode()
	if err != nil {
		return err
	}

	// Rotate only between entries; an entry larger than a segment gets its own
	if w.fileSize > 0 && w.fileSize+int64(len(data)) > w.segmentSize() {
		if err := w.rotateNoLock(); err != nil {
			return err
		}
	}

	n, err := w.write(data)
	if err != nil {
		if n > 0 {
			// Cut the partial entry so a retry starts on an entry boundary
			if terr := w.fd.Truncate(w.fileSize); terr != nil {
				w.broken = fmt.Errorf("wal: torn entry at offset %d left in place: %w", w.fileSize, terr)
				return w.broken
			}
		}
		return fmt.Errorf("wal: write entry %d: %w", entry.LSN, err)
	}
	w.fileSize += int64(n)
	return nil
}

func (w *WAL) write(data []byte) (int, error) {
	if w.writeFn != nil {
		return w.writeFn(w.fd, data)
	}
	return w.fd.Write(data)
}

// Sync ensures all written data is persisted to disk
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrLogClosed
	}

	return w.fd.Sync()
}

// Close closes the WAL
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.fd == nil {
		return nil
	}

	err := w.fd.Close()
	w.closed = true
	return err
}

// Segments returns all segment files sorted by index
func (w *WAL) Segments() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.segmentsNoLock()
}

func (w *WAL) segmentSize() int64 {
	if w.SegmentSize > 0 {
		return w.SegmentSize
	}
	return DefaultSegmentSize
}

// rotateNoLock moves to a new segment file (caller must hold mu)
func (w *WAL) rotateNoLock() error {
	if err := w.fd.Sync(); err != nil {
		return err
	}
	if err := w.fd.Close(); err != nil {
		return err
	}

	w.fileIndex++
	fd, err := os.OpenFile(w.segmentPath(w.fileIndex), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.fd = fd
	w.fileSize = 0
	return nil
}

// baseName returns the base filename for segments (e.g., "versions.wal" from "/data/versions.wal")
func (w *WAL) baseName() string {
	return filepath.Base(w.Path)
}

// segmentPath returns the path for a segment with the given index
func (w *WAL) segmentPath(index int) string {
	dir := filepath.Dir(w.Path)
	name := fmt.Sprintf("%s.%03d", w.baseName(), index)
	return filepath.Join(dir, name)
}

func (w *WAL) indexOf(path string) int {
	var index int
	if _, err := fmt.Sscanf(filepath.Base(path), w.baseName()+".%d", &index); err != nil {
		return 0
	}
	return index
}

func (w *WAL) segmentsNoLock() ([]string, error) {
	dir := filepath.Dir(w.Path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && w.isSegment(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return w.indexOf(files[i]) < w.indexOf(files[j])
	})

	return files, nil
}

// isSegment reports whether name is "<base>.<digits>"
func (w *WAL) isSegment(name string) bool {
	prefix := w.baseName() + "."
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return false
	}
	for _, c := range name[len(prefix):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
