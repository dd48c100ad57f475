package db

import (
	"strings"
	"sync"

	"github.com/glint-search/glint/glint/index"

	"github.com/google/uuid"
)

// MockMirror is an in-memory MirrorStore for tests.
type MockMirror struct {
	mu      sync.Mutex
	entries map[string]index.Entry
	builds  []uuid.UUID
}

func NewMockMirror() *MockMirror {
	return &MockMirror{entries: make(map[string]index.Entry)}
}

func (m *MockMirror) InitSchema() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]index.Entry)
	return nil
}

func (m *MockMirror) ReplaceAll(buildID uuid.UUID, entries []index.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]index.Entry, len(entries))
	for _, e := range entries {
		m.entries[e.Path] = e
	}
	m.builds = append(m.builds, buildID)
	return nil
}

func (m *MockMirror) Upsert(e index.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Path] = e
	return nil
}

func (m *MockMirror) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, path)
	return nil
}

func (m *MockMirror) DeleteTree(prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := range m.entries {
		if p == prefix || strings.HasPrefix(p, prefix+"/") || strings.HasPrefix(p, prefix+"\\") {
			delete(m.entries, p)
		}
	}
	return nil
}

func (m *MockMirror) SearchNames(keywords []string, limit int) ([]index.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []index.Entry
	for _, e := range m.entries {
		match := true
		for _, kw := range keywords {
			if !strings.Contains(e.NameLower, strings.ToLower(kw)) {
				match = false
				break
			}
		}
		if match {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockMirror) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *MockMirror) Close() error { return nil }

// Builds returns the build ids recorded by ReplaceAll, for assertions.
func (m *MockMirror) Builds() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.builds...)
}
