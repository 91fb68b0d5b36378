// Package wal implements an append-only, checksummed log split into segment files
package wal

import "errors"

var (
	// ErrCorrupted indicates a corrupted WAL entry (CRC mismatch)
	ErrCorrupted = errors.New("wal: corrupted entry")

	// ErrLogClosed indicates an operation on a closed WAL
	ErrLogClosed = errors.New("wal: log closed")

	// ErrTruncated indicates a truncated WAL entry
	ErrTruncated = errors.New("wal: truncated entry")

	// ErrEntryTooLarge indicates a payload that does not fit the length field
	ErrEntryTooLarge = errors.New("wal: entry too large")
)
