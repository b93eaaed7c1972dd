// Package memory is an in-memory Store implementation. Data does not
// survive process restarts.
package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rakunlabs/flowgraph/internal/auth"
)

type graphRecord struct {
	owner      string
	serialized string
	hasGraph   bool
}

// Memory is an in-memory implementation of store.Store.
type Memory struct {
	mu          sync.RWMutex
	graphs      map[string]*graphRecord         // graph id -> record
	userGraphs  map[string]map[string]bool      // username -> set of graph ids
	permissions map[string]map[string]auth.Bits // graph id -> username -> bits
}

func New() *Memory {
	slog.Info("using in-memory store (data will not persist across restarts)")

	return &Memory{
		graphs:      make(map[string]*graphRecord),
		userGraphs:  make(map[string]map[string]bool),
		permissions: make(map[string]map[string]auth.Bits),
	}
}

func (m *Memory) Close() {}

func (m *Memory) CreateGraph(_ context.Context, owner string) (string, error) {
	id := ulid.Make().String()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.graphs[id] = &graphRecord{owner: owner}

	if m.userGraphs[owner] == nil {
		m.userGraphs[owner] = make(map[string]bool)
	}
	m.userGraphs[owner][id] = true

	m.permissions[id] = map[string]auth.Bits{
		owner: auth.NewBits(true, true, true),
	}

	return id, nil
}

func (m *Memory) GetSerializedGraph(_ context.Context, graphID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.graphs[graphID]
	if !ok || !rec.hasGraph {
		return "", false, nil
	}

	return rec.serialized, true, nil
}

func (m *Memory) StoreSerializedGraph(_ context.Context, graphID, serialized string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.graphs[graphID]
	if !ok {
		return false, nil
	}

	rec.serialized = serialized
	rec.hasGraph = true

	return true, nil
}

func (m *Memory) DeleteGraph(_ context.Context, graphID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.graphs[graphID]
	if !ok {
		return false, nil
	}

	delete(m.userGraphs[rec.owner], graphID)
	delete(m.graphs, graphID)
	delete(m.permissions, graphID)

	return true, nil
}

func (m *Memory) ListGraphs(_ context.Context, username string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owned := m.userGraphs[username]
	result := make([]string, 0, len(owned))
	for id := range owned {
		result = append(result, id)
	}
	slices.Sort(result)

	return result, nil
}

func (m *Memory) ShareGraph(_ context.Context, graphID, targetUser string, bits auth.Bits) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.graphs[graphID]; !ok {
		return false, nil
	}

	if m.permissions[graphID] == nil {
		m.permissions[graphID] = make(map[string]auth.Bits)
	}
	m.permissions[graphID][targetUser] = bits

	return true, nil
}

func (m *Memory) GraphOwner(_ context.Context, graphID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.graphs[graphID]
	if !ok {
		return "", false, nil
	}

	return rec.owner, true, nil
}

func (m *Memory) UserPermission(_ context.Context, graphID, username string) (auth.Bits, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	perms, ok := m.permissions[graphID]
	if !ok {
		return 0, false, nil
	}

	bits, ok := perms[username]
	return bits, ok, nil
}
