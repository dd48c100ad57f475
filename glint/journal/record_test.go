package journal

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeRecord builds one USN_RECORD_V2 with the fixed offsets the decoder
// relies on.
func encodeRecord(fileID, parentID uint64, name string, isDir bool) []byte {
	encoded := utf16.Encode([]rune(name))
	nameBytes := len(encoded) * 2
	recLen := usnRecordHeaderSize + nameBytes
	// Records are 8-byte aligned on the wire.
	if pad := recLen % 8; pad != 0 {
		recLen += 8 - pad
	}

	rec := make([]byte, recLen)
	le := binary.LittleEndian
	le.PutUint32(rec[0:4], uint32(recLen))
	le.PutUint16(rec[4:6], 2) // major version
	le.PutUint64(rec[8:16], fileID)
	le.PutUint64(rec[16:24], parentID)
	var attrs uint32 = 0x80 // FILE_ATTRIBUTE_NORMAL
	if isDir {
		attrs = fileAttributeDirectory
	}
	le.PutUint32(rec[52:56], attrs)
	le.PutUint16(rec[56:58], uint16(nameBytes))
	le.PutUint16(rec[58:60], uint16(usnRecordHeaderSize))
	for i, u := range encoded {
		le.PutUint16(rec[usnRecordHeaderSize+i*2:], u)
	}
	return rec
}

func encodeEnumBuffer(next uint64, recs ...[]byte) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, next)
	for _, r := range recs {
		buf = append(buf, r...)
	}
	return buf
}

func TestDecodeEnumBuffer(t *testing.T) {
	buf := encodeEnumBuffer(42,
		encodeRecord(100, RootFileID, "docs", true),
		encodeRecord(101, 100, "report.pdf", false),
	)

	next, records := DecodeEnumBuffer(buf)
	assert.Equal(t, uint64(42), next)
	require.Len(t, records, 2)

	assert.Equal(t, uint64(100), records[0].FileID)
	assert.Equal(t, RootFileID, records[0].ParentID)
	assert.Equal(t, "docs", records[0].Name)
	assert.True(t, records[0].IsDir)

	assert.Equal(t, uint64(101), records[1].FileID)
	assert.Equal(t, "report.pdf", records[1].Name)
	assert.False(t, records[1].IsDir)
}

func TestDecodeEnumBufferMasksTo48Bits(t *testing.T) {
	// Sequence number in the high 16 bits must not leak into the id.
	withSeq := uint64(0xABCD)<<48 | 7
	buf := encodeEnumBuffer(0, encodeRecord(withSeq, withSeq, "file.txt", false))

	_, records := DecodeEnumBuffer(buf)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(7), records[0].FileID)
	assert.Equal(t, uint64(7), records[0].ParentID)
}

func TestDecodeEnumBufferDropsReservedNames(t *testing.T) {
	buf := encodeEnumBuffer(0,
		encodeRecord(10, RootFileID, "$MFT", false),
		encodeRecord(11, RootFileID, ".hidden", false),
		encodeRecord(12, RootFileID, "visible.txt", false),
	)

	_, records := DecodeEnumBuffer(buf)
	require.Len(t, records, 1)
	assert.Equal(t, "visible.txt", records[0].Name)
}

func TestDecodeEnumBufferTruncated(t *testing.T) {
	full := encodeEnumBuffer(9,
		encodeRecord(10, RootFileID, "kept.txt", false),
		encodeRecord(11, RootFileID, "lost.txt", false),
	)
	// Cut into the middle of the second record: its remaining bytes must be
	// discarded while the first record survives.
	cut := full[:len(full)-10]

	next, records := DecodeEnumBuffer(cut)
	assert.Equal(t, uint64(9), next)
	require.Len(t, records, 1)
	assert.Equal(t, "kept.txt", records[0].Name)
}

func TestDecodeEnumBufferZeroLengthRecord(t *testing.T) {
	buf := encodeEnumBuffer(3, encodeRecord(10, RootFileID, "a.txt", false))
	// Append a bogus zero-length record header followed by garbage.
	garbage := make([]byte, usnRecordHeaderSize+16)
	buf = append(buf, garbage...)

	_, records := DecodeEnumBuffer(buf)
	require.Len(t, records, 1)
	assert.Equal(t, "a.txt", records[0].Name)
}

func TestDecodeEnumBufferEmpty(t *testing.T) {
	next, records := DecodeEnumBuffer(nil)
	assert.Zero(t, next)
	assert.Empty(t, records)

	next, records = DecodeEnumBuffer(encodeEnumBuffer(5))
	assert.Equal(t, uint64(5), next)
	assert.Empty(t, records)
}
