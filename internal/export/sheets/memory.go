package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps snapshots in process. Used when no spreadsheet is configured.
type Memory struct {
	mu    sync.Mutex
	items []Snapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

// Append stores the snapshot and returns a synthetic row reference.
func (m *Memory) Append(_ context.Context, s Snapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, s)
	return fmt.Sprintf("mem:%d", len(m.items)), nil
}

// Snapshots returns a copy of everything appended so far.
func (m *Memory) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.items...)
}
