package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// parseSegment decodes entries until the data runs out. It returns the
// entries read and the offset just past the last complete entry.
func parseSegment(data []byte) ([]*Entry, int, error) {
	var entries []*Entry
	offset := 0

	for offset < len(data) {
		rest := data[offset:]
		if len(rest) < EntryHeaderSize+crcSize {
			return entries, offset, ErrTruncated
		}

		payloadLen := int(binary.LittleEndian.Uint32(rest[12:16]))
		size := EntryHeaderSize + payloadLen + crcSize
		if len(rest) < size {
			return entries, offset, ErrTruncated
		}

		entry, err := DecodeEntry(rest[:size])
		if err != nil {
			return entries, offset, err
		}

		entries = append(entries, entry)
		offset += size
	}

	return entries, offset, nil
}

// ReadAll reads every entry from the given segments in order. A torn entry
// at the end of the final segment ends the log; anything else that fails to
// decode is an error.
func ReadAll(files []string) ([]*Entry, error) {
	var all []*Entry

	for i, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		entries, _, err := parseSegment(data)
		all = append(all, entries...)
		if err == nil {
			continue
		}
		if err == ErrTruncated && i == len(files)-1 {
			break
		}
		return nil, fmt.Errorf("wal: %s: %w", filepath.Base(file), err)
	}

	return all, nil
}
