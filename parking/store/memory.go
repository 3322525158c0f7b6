// Package store provides the in-memory SlotStore/HistoryStore
// implementation. This is the default backing store and mirrors the
// mocked real-time layer the original deployment ran against; the SQLite
// implementation in store/sqlite is the durable alternative.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/parking-engine/parking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation
// =============================================================================

// Memory holds slots and history behind one RWMutex. A single lock is
// enough: mutations are per-slot critical sections and the slot count is
// small, so contention stays light.
type Memory struct {
	mu      sync.RWMutex
	slots   map[parking.SlotID]parking.Slot
	order   []parking.SlotID // ascending by slot number
	history []parking.HistoryRecord
}

// NewMemory creates an empty store. Call Initialize before use.
func NewMemory() *Memory {
	return &Memory{slots: make(map[parking.SlotID]parking.Slot)}
}

// Initialize creates count slots numbered 1..count. Idempotent: a second
// call, with any count, is a no-op.
func (m *Memory) Initialize(_ context.Context, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.slots) > 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := 1; i <= count; i++ {
		id := parking.SlotIDForNumber(i)
		m.slots[id] = parking.Slot{
			ID:        id,
			Number:    i,
			CreatedAt: now,
		}
		m.order = append(m.order, id)
	}
	return nil
}

// Get returns a copy of the slot.
func (m *Memory) Get(_ context.Context, id parking.SlotID) (parking.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.slots[id]
	if !ok {
		return parking.Slot{}, &parking.SlotNotFoundError{SlotID: id}
	}
	return slot, nil
}

// List returns copies of all slots ascending by number.
func (m *Memory) List(_ context.Context) ([]parking.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]parking.Slot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.slots[id])
	}
	return out, nil
}

// ApplyOccupy marks the slot occupied. The read-validate-write sequence
// runs under the write lock, so a concurrent occupy of the same slot
// loses cleanly instead of corrupting occupant fields.
func (m *Memory) ApplyOccupy(_ context.Context, id parking.SlotID, who parking.Identity, at time.Time) (parking.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[id]
	if !ok {
		return parking.Slot{}, &parking.SlotNotFoundError{SlotID: id}
	}
	if slot.IsOccupied && slot.UserID != who.UserID {
		return parking.Slot{}, &parking.OccupiedByOtherError{
			SlotNumber:    slot.Number,
			OccupiedBy:    slot.OccupiedBy,
			VehicleNumber: slot.VehicleNumber,
		}
	}

	occupiedAt := at
	slot.IsOccupied = true
	slot.OccupiedBy = who.Username
	slot.VehicleNumber = who.VehicleNumber
	slot.UserID = who.UserID
	slot.OccupiedAt = &occupiedAt
	slot.ReleasedAt = nil
	m.slots[id] = slot
	return slot, nil
}

// ApplyRelease clears the slot. Only the current occupant may release.
func (m *Memory) ApplyRelease(_ context.Context, id parking.SlotID, who parking.Identity, at time.Time) (parking.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[id]
	if !ok {
		return parking.Slot{}, &parking.SlotNotFoundError{SlotID: id}
	}
	if !slot.IsOccupied || slot.UserID != who.UserID {
		return parking.Slot{}, &parking.NotOccupantError{SlotNumber: slot.Number, UserID: who.UserID}
	}

	releasedAt := at
	slot.IsOccupied = false
	slot.OccupiedBy = ""
	slot.VehicleNumber = ""
	slot.UserID = ""
	slot.OccupiedAt = nil
	slot.ReleasedAt = &releasedAt
	m.slots[id] = slot
	return slot, nil
}

// =============================================================================
// HISTORY - Append-only, newest-first
// =============================================================================

// Append inserts one record. Records arrive in causal order per slot;
// timestamps tie-break on insertion order, so the record lands at the
// newest position among equal timestamps.
func (m *Memory) Append(_ context.Context, rec parking.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// history is kept newest-first. Binary search for the first entry the
	// new record should precede.
	i := sort.Search(len(m.history), func(i int) bool {
		return m.history[i].Timestamp.Before(rec.Timestamp) ||
			m.history[i].Timestamp.Equal(rec.Timestamp)
	})
	m.history = append(m.history, parking.HistoryRecord{})
	copy(m.history[i+1:], m.history[i:])
	m.history[i] = rec
	return nil
}

// ListNewestFirst returns records newest-first. limit <= 0 means all.
func (m *Memory) ListNewestFirst(_ context.Context, limit int) ([]parking.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]parking.HistoryRecord, n)
	copy(out, m.history[:n])
	return out, nil
}

// DistinctUsers counts unique user ids across the whole history.
func (m *Memory) DistinctUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make(map[string]struct{}, len(m.history))
	for _, rec := range m.history {
		users[rec.UserID] = struct{}{}
	}
	return len(users), nil
}

// Count returns the total number of history records.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history), nil
}
