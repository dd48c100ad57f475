// Package journal implements the record harvester: it enumerates a volume's
// NTFS change journal by file id and decodes the raw variable-length records
// into an in-memory table. On filesystems without a journal the concurrent
// directory walker in walker.go provides the slow-path equivalent.
package journal

import (
	"encoding/binary"
	"unicode/utf16"
)

const (
	// RootFileID is the well-known file reference number of a volume root.
	RootFileID uint64 = 5

	// frnMask keeps the 48-bit file number and drops the sequence bits.
	frnMask uint64 = (1 << 48) - 1

	// fileAttributeDirectory is the directory bit in the record's
	// FileAttributes field.
	fileAttributeDirectory uint32 = 0x10

	// usnRecordHeaderSize is the minimal size of a USN_RECORD_V2 up to and
	// including the filename offset field. Buffers with fewer remaining
	// bytes cannot hold another record.
	usnRecordHeaderSize = 60
)

// Record is one decoded journal entry. FileID and ParentID are masked to
// their 48-bit file numbers so they are stable across sequence bumps.
type Record struct {
	FileID     uint64
	ParentID   uint64
	Name       string
	IsDir      bool
	Attributes uint32
}

// DecodeEnumBuffer decodes one output buffer of an enumerate-by-file-id
// device-control call. The buffer starts with the next starting file id
// (u64, little-endian) followed by concatenated USN_RECORD_V2 structures.
//
// Decoding is fail-soft: a zero or overrunning record length discards the
// remainder of the buffer and returns what was decoded so far. Names
// beginning with '$' or '.' are dropped here as an early filter for
// filesystem-internal objects.
func DecodeEnumBuffer(buf []byte) (next uint64, records []Record) {
	if len(buf) < 8 {
		return 0, nil
	}
	next = binary.LittleEndian.Uint64(buf[:8])
	rest := buf[8:]

	for len(rest) >= usnRecordHeaderSize {
		recLen := int(binary.LittleEndian.Uint32(rest[0:4]))
		if recLen < usnRecordHeaderSize || recLen > len(rest) {
			break
		}
		rec := rest[:recLen]
		rest = rest[recLen:]

		nameLen := int(binary.LittleEndian.Uint16(rec[56:58]))
		nameOff := int(binary.LittleEndian.Uint16(rec[58:60]))
		if nameOff+nameLen > recLen || nameLen%2 != 0 {
			continue
		}
		name := decodeUTF16(rec[nameOff : nameOff+nameLen])
		if name == "" || name[0] == '$' || name[0] == '.' {
			continue
		}

		attrs := binary.LittleEndian.Uint32(rec[52:56])
		records = append(records, Record{
			FileID:     binary.LittleEndian.Uint64(rec[8:16]) & frnMask,
			ParentID:   binary.LittleEndian.Uint64(rec[16:24]) & frnMask,
			Name:       name,
			IsDir:      attrs&fileAttributeDirectory != 0,
			Attributes: attrs,
		})
	}
	return next, records
}

func decodeUTF16(b []byte) string {
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(u))
}
