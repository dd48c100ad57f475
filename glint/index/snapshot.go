package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot format (versioned, little-endian):
// [magic 'GSNP'] [u32 version] [u64 count] [i64 buildUnix]
// then per entry: [u32 pathLen] [path bytes] [u64 size] [u64 mtimeBits] [u8 isDir]
// The name multimap is not persisted; it is rebuilt from the path records on
// load, which also guarantees the loaded structure satisfies the name/path
// invariant or fails validation outright.

var snapshotMagic = [4]byte{'G', 'S', 'N', 'P'}

const snapshotVersion uint32 = 1

// ErrSnapshotInvalid is returned when a snapshot file is truncated,
// corrupt, or from an unknown version. Callers must treat the index as
// not ready rather than partially trusting the data.
var ErrSnapshotInvalid = errors.New("snapshot file is invalid")

// SaveSnapshot serializes the index to path, writing a temp file in the
// same directory and renaming it over the target so readers never observe a
// half-written snapshot.
func (ix *Index) SaveSnapshot(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snap-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriterSize(tmp, 1<<16)
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		tmp.Close()
		return err
	}
	le := binary.LittleEndian
	binary.Write(w, le, snapshotVersion)
	binary.Write(w, le, uint64(len(ix.paths)))
	binary.Write(w, le, ix.builtAt.Unix())

	for p, m := range ix.paths {
		binary.Write(w, le, uint32(len(p)))
		w.WriteString(p)
		binary.Write(w, le, m.Size)
		binary.Write(w, le, math.Float64bits(m.MTime))
		if m.IsDir {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot replaces the index contents from a snapshot file and marks
// the index ready. On any decode or validation error the index is left
// empty and not ready.
func (ix *Index) LoadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, builtAt, err := decodeSnapshot(bufio.NewReaderSize(f, 1<<16))
	if err != nil {
		ix.reset()
		return err
	}

	ix.mu.Lock()
	ix.paths = make(map[string]Meta, len(entries))
	ix.names = make(map[string]map[string]struct{}, len(entries))
	ix.tree.DeletePrefix("")
	ix.ext = newExtBitmaps()
	for _, e := range entries {
		ix.insertLocked(e)
	}
	ix.ready = true
	ix.builtAt = builtAt
	ix.mu.Unlock()

	if err := ix.CheckConsistency(); err != nil {
		ix.reset()
		return fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	return nil
}

func (ix *Index) reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.paths = make(map[string]Meta)
	ix.names = make(map[string]map[string]struct{})
	ix.tree.DeletePrefix("")
	ix.ext = newExtBitmaps()
	ix.ready = false
	ix.builtAt = time.Time{}
}

func decodeSnapshot(r io.Reader) ([]Entry, time.Time, error) {
	le := binary.LittleEndian

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: short header", ErrSnapshotInvalid)
	}
	if magic != snapshotMagic {
		return nil, time.Time{}, fmt.Errorf("%w: bad magic", ErrSnapshotInvalid)
	}
	var version uint32
	if err := binary.Read(r, le, &version); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: short header", ErrSnapshotInvalid)
	}
	if version != snapshotVersion {
		return nil, time.Time{}, fmt.Errorf("%w: unsupported version %d", ErrSnapshotInvalid, version)
	}
	var count uint64
	var buildUnix int64
	if err := binary.Read(r, le, &count); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: short header", ErrSnapshotInvalid)
	}
	if err := binary.Read(r, le, &buildUnix); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: short header", ErrSnapshotInvalid)
	}

	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		var pathLen uint32
		if err := binary.Read(r, le, &pathLen); err != nil {
			return nil, time.Time{}, fmt.Errorf("%w: truncated at entry %d", ErrSnapshotInvalid, i)
		}
		if pathLen == 0 || pathLen > 1<<16 {
			return nil, time.Time{}, fmt.Errorf("%w: implausible path length %d", ErrSnapshotInvalid, pathLen)
		}
		raw := make([]byte, pathLen)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, time.Time{}, fmt.Errorf("%w: truncated at entry %d", ErrSnapshotInvalid, i)
		}
		var size, mtimeBits uint64
		var isDir [1]byte
		if err := binary.Read(r, le, &size); err != nil {
			return nil, time.Time{}, fmt.Errorf("%w: truncated at entry %d", ErrSnapshotInvalid, i)
		}
		if err := binary.Read(r, le, &mtimeBits); err != nil {
			return nil, time.Time{}, fmt.Errorf("%w: truncated at entry %d", ErrSnapshotInvalid, i)
		}
		if _, err := io.ReadFull(r, isDir[:]); err != nil {
			return nil, time.Time{}, fmt.Errorf("%w: truncated at entry %d", ErrSnapshotInvalid, i)
		}

		p := string(raw)
		name := Basename(p)
		parent := ""
		if i := strings.LastIndexAny(p, "/\\"); i > 0 {
			parent = p[:i]
		}
		entries = append(entries, MakeEntry(p, parent, name, size, math.Float64frombits(mtimeBits), isDir[0] == 1))
	}
	return entries, time.Unix(buildUnix, 0), nil
}
