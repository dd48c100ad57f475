// Package db implements the relational mirror: a libsql/SQLite store
// holding the same five-tuple shape as the in-memory index, with an FTS5
// name index when the extension is available. It serves search queries only
// while the in-memory index is cold.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glint-search/glint/glint/index"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

// MirrorProvider is the libsql-backed MirrorStore.
type MirrorProvider struct {
	db     *sql.DB
	hasFTS bool
}

// ConnectToDB opens (or creates) the database file at dbPath.
func ConnectToDB(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}
	conn, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	return conn, nil
}

// NewMirrorProvider opens the mirror database and ensures its schema.
func NewMirrorProvider(dbPath string) (*MirrorProvider, error) {
	conn, err := ConnectToDB(dbPath)
	if err != nil {
		return nil, err
	}
	m := &MirrorProvider{db: conn}
	if err := m.InitSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

// InitSchema creates the entries table, the builds table and, when the
// FTS5 extension is present, the full-text name index.
func (m *MirrorProvider) InitSchema() error {
	_, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		path TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mtime REAL NOT NULL DEFAULT 0,
		is_dir INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return fmt.Errorf("failed to create entries table: %w", err)
	}

	_, err = m.db.Exec(`CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY UNIQUE,
		built_at TEXT NOT NULL,
		entry_count INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create builds table: %w", err)
	}

	_, err = m.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(name, path UNINDEXED)`)
	if err != nil {
		// FTS5 missing from the build; LIKE matching still works.
		slog.Warn("FTS5 unavailable, mirror search falls back to LIKE", "error", err)
		m.hasFTS = false
		return nil
	}
	m.hasFTS = true
	return nil
}

// ReplaceAll swaps the mirror contents for a new build in one transaction.
func (m *MirrorProvider) ReplaceAll(buildID uuid.UUID, entries []index.Entry) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be a no-op if transaction is committed

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if m.hasFTS {
		if _, err := tx.Exec("DELETE FROM entries_fts"); err != nil {
			return fmt.Errorf("failed to clear name index: %w", err)
		}
	}

	ins, err := tx.Prepare("INSERT INTO entries (path, name, size, mtime, is_dir) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer ins.Close()

	var insFTS *sql.Stmt
	if m.hasFTS {
		insFTS, err = tx.Prepare("INSERT INTO entries_fts (name, path) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare fts insert: %w", err)
		}
		defer insFTS.Close()
	}

	for _, e := range entries {
		if _, err := ins.Exec(e.Path, e.Name, int64(e.Size), e.MTime, boolInt(e.IsDir)); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.Path, err)
		}
		if insFTS != nil {
			if _, err := insFTS.Exec(e.Name, e.Path); err != nil {
				return fmt.Errorf("failed to index name for %s: %w", e.Path, err)
			}
		}
	}

	_, err = tx.Exec("INSERT INTO builds (id, built_at, entry_count) VALUES (?, ?, ?)",
		buildID.String(), time.Now().Format(time.RFC3339), len(entries))
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mirror build: %w", err)
	}
	slog.Debug("Mirror rebuilt", "build_id", buildID, "entries", len(entries))
	return nil
}

// Upsert inserts or refreshes a single entry.
func (m *MirrorProvider) Upsert(e index.Entry) error {
	_, err := m.db.Exec(`INSERT INTO entries (path, name, size, mtime, is_dir) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET size = excluded.size, mtime = excluded.mtime, is_dir = excluded.is_dir`,
		e.Path, e.Name, int64(e.Size), e.MTime, boolInt(e.IsDir))
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	if m.hasFTS {
		if _, err := m.db.Exec("DELETE FROM entries_fts WHERE path = ?", e.Path); err != nil {
			return fmt.Errorf("failed to refresh name index: %w", err)
		}
		if _, err := m.db.Exec("INSERT INTO entries_fts (name, path) VALUES (?, ?)", e.Name, e.Path); err != nil {
			return fmt.Errorf("failed to refresh name index: %w", err)
		}
	}
	return nil
}

// Delete removes the exact path.
func (m *MirrorProvider) Delete(path string) error {
	if _, err := m.db.Exec("DELETE FROM entries WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if m.hasFTS {
		if _, err := m.db.Exec("DELETE FROM entries_fts WHERE path = ?", path); err != nil {
			return fmt.Errorf("failed to delete from name index: %w", err)
		}
	}
	return nil
}

// DeleteTree removes the path and everything beneath it, matching both
// separator styles.
func (m *MirrorProvider) DeleteTree(prefix string) error {
	for _, table := range m.tables() {
		_, err := m.db.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE path = ? OR path LIKE ? ESCAPE '\' OR path LIKE ? ESCAPE '\'`, table),
			prefix, likeEscape(prefix)+"/%", likeEscape(prefix)+`\\%`)
		if err != nil {
			return fmt.Errorf("failed to delete subtree from %s: %w", table, err)
		}
	}
	return nil
}

// SearchNames matches every keyword against entry names, via FTS5 prefix
// terms when available and case-insensitive LIKE otherwise.
func (m *MirrorProvider) SearchNames(keywords []string, limit int) ([]index.Entry, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 1000
	}

	var rows *sql.Rows
	var err error
	if m.hasFTS {
		terms := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			terms = append(terms, `"`+strings.ReplaceAll(kw, `"`, `""`)+`"*`)
		}
		rows, err = m.db.Query(`SELECT e.path, e.name, e.size, e.mtime, e.is_dir
			FROM entries_fts f JOIN entries e ON e.path = f.path
			WHERE entries_fts MATCH ? LIMIT ?`,
			strings.Join(terms, " "), limit)
	} else {
		conds := make([]string, 0, len(keywords))
		args := make([]any, 0, len(keywords)+1)
		for _, kw := range keywords {
			conds = append(conds, `lower(name) LIKE ? ESCAPE '\'`)
			args = append(args, "%"+strings.ToLower(likeEscape(kw))+"%")
		}
		args = append(args, limit)
		rows, err = m.db.Query(
			"SELECT path, name, size, mtime, is_dir FROM entries WHERE "+
				strings.Join(conds, " AND ")+" LIMIT ?", args...)
	}
	if err != nil {
		return nil, fmt.Errorf("mirror search failed: %w", err)
	}
	defer rows.Close()

	var out []index.Entry
	for rows.Next() {
		var (
			path, name string
			size       int64
			mtime      float64
			isDir      int
		)
		if err := rows.Scan(&path, &name, &size, &mtime, &isDir); err != nil {
			return nil, fmt.Errorf("error scanning mirror row: %w", err)
		}
		parent := ""
		if i := strings.LastIndexAny(path, "/\\"); i > 0 {
			parent = path[:i]
		}
		out = append(out, index.MakeEntry(path, parent, name, uint64(size), mtime, isDir == 1))
	}
	return out, rows.Err()
}

// Count returns the number of mirrored entries.
func (m *MirrorProvider) Count() (int64, error) {
	var n int64
	if err := m.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (m *MirrorProvider) Close() error {
	return m.db.Close()
}

func (m *MirrorProvider) tables() []string {
	if m.hasFTS {
		return []string{"entries", "entries_fts"}
	}
	return []string{"entries"}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
