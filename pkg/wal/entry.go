package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"time"
)

// OpType represents the type of WAL operation
type OpType byte

const (
	// OpAppend records one appended history item
	OpAppend OpType = 1
)

const (
	// EntryHeaderSize is the fixed size of the entry header
	// Layout: LSN(8) + OpType(1) + Reserved(3) + PayloadLen(4) + Timestamp(8)
	EntryHeaderSize = 24

	crcSize = 4
)

// Entry represents a single WAL entry
type Entry struct {
	LSN       uint64    // Log Sequence Number (monotonically increasing)
	OpType    OpType    // Operation type
	Payload   []byte    // Opaque record bytes
	Timestamp time.Time // Entry timestamp, nanosecond precision
}

// Encode serializes the entry to bytes with CRC32 checksum
// Format: [Header(24)] [Payload] [CRC32(4)]
func (e *Entry) Encode() ([]byte, error) {
	if uint64(len(e.Payload)) > math.MaxUint32 {
		return nil, ErrEntryTooLarge
	}
	buf := make([]byte, e.Size())

	binary.LittleEndian.PutUint64(buf[0:8], e.LSN)
	buf[8] = byte(e.OpType)
	// bytes 9-11 are reserved
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(e.Payload)))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(e.Timestamp.UnixNano()))

	offset := EntryHeaderSize
	copy(buf[offset:], e.Payload)
	offset += len(e.Payload)

	// CRC covers header and payload
	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:], crc)

	return buf, nil
}

// DecodeEntry deserializes a WAL entry from bytes
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize+crcSize {
		return nil, ErrTruncated
	}

	payloadLen := int(binary.LittleEndian.Uint32(data[12:16]))
	expectedSize := EntryHeaderSize + payloadLen + crcSize
	if len(data) < expectedSize {
		return nil, ErrTruncated
	}
	data = data[:expectedSize]

	storedCRC := binary.LittleEndian.Uint32(data[expectedSize-crcSize:])
	if storedCRC != crc32.ChecksumIEEE(data[:expectedSize-crcSize]) {
		return nil, ErrCorrupted
	}

	entry := &Entry{
		LSN:       binary.LittleEndian.Uint64(data[0:8]),
		OpType:    OpType(data[8]),
		Timestamp: time.Unix(0, int64(binary.LittleEndian.Uint64(data[16:24]))),
	}
	if payloadLen > 0 {
		entry.Payload = make([]byte, payloadLen)
		copy(entry.Payload, data[EntryHeaderSize:EntryHeaderSize+payloadLen])
	}

	return entry, nil
}

// Size returns the encoded size of the entry
func (e *Entry) Size() int {
	return EntryHeaderSize + len(e.Payload) + crcSize
}

// String returns a human-readable representation of the entry
func (e *Entry) String() string {
	opName := "UNKNOWN"
	if e.OpType == OpAppend {
		opName = "APPEND"
	}
	return fmt.Sprintf("WAL[LSN=%d Op=%s PayloadLen=%d]", e.LSN, opName, len(e.Payload))
}
