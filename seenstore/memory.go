/*
LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package seenstore

import (
	"context"
	"sync"
)

// MemoryStore implements Store entirely in memory; nothing survives
// process restart. Used for manual mode, where the orchestrator is
// otherwise wired identically to the persistent case.
type MemoryStore struct {
	mu       sync.Mutex
	seen     map[int64]map[string]bool
	notified map[int64]map[string]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:     map[int64]map[string]bool{},
		notified: map[int64]map[string]int64{},
	}
}

func (m *MemoryStore) LoadSeen(ctx context.Context, channel int64) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBoolMap(m.seen[channel]), nil
}

func (m *MemoryStore) LoadNotified(ctx context.Context, channel int64) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneInt64Map(m.notified[channel]), nil
}

func (m *MemoryStore) AddSeen(ctx context.Context, channel int64, ids map[string]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[channel] == nil {
		m.seen[channel] = map[string]bool{}
	}
	for id := range ids {
		m.seen[channel][id] = true
	}
	return nil
}

func (m *MemoryStore) AddNotified(ctx context.Context, channel int64, notified map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notified[channel] == nil {
		m.notified[channel] = map[string]int64{}
	}
	for id, ts := range notified {
		m.notified[channel][id] = ts
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, channel int64) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Seen:     cloneBoolMap(m.seen[channel]),
		Notified: cloneInt64Map(m.notified[channel]),
	}, nil
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneInt64Map(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
