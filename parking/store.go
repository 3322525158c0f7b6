/*
store.go - Persistence interfaces for slots and booking history

PURPOSE:
  Defines the interface between the domain logic and the backing store.
  Different implementations can use SQLite or in-memory storage; the
  engine does not care which.

KEY INTERFACES:
  SlotStore:    The fixed slot collection with atomic occupy/release
  HistoryStore: Append-only booking history

ATOMICITY CONTRACT:
  ApplyOccupy and ApplyRelease each run as one critical section for the
  affected slot: they re-validate current state and mutate under the same
  lock (or database transaction). Two concurrent calls can never leave a
  slot with occupied=true and occupant fields unset, or the reverse.

APPEND-ONLY CONTRACT:
  HistoryStore has no Update and no Delete. Every record is immutable
  once written.

IMPLEMENTATIONS:
  - parking/store/memory.go: In-memory (default, matches the mocked
    real-time layer of the original deployment)
  - store/sqlite/sqlite.go: Durable SQLite

SEE ALSO:
  - ledger.go: Higher-level history interface using HistoryStore
  - engine.go: The only component allowed to call the mutating methods
*/
package parking

import (
	"context"
	"time"
)

// =============================================================================
// SLOT STORE - Fixed collection with atomic per-slot mutations
// =============================================================================

// SlotStore owns the slot records. Only the Engine may call the mutating
// methods; everything else reads.
type SlotStore interface {
	// Initialize creates count slots numbered 1..count, all available.
	// Idempotent: if any slots already exist it does nothing.
	Initialize(ctx context.Context, count int) error

	// Get returns the slot by id, or an error wrapping ErrSlotNotFound.
	Get(ctx context.Context, id SlotID) (Slot, error)

	// List returns all slots ascending by number.
	List(ctx context.Context) ([]Slot, error)

	// ApplyOccupy marks the slot occupied by the identity at the given
	// time. Fails with ErrSlotNotFound for unknown ids, and with
	// *OccupiedByOtherError when the slot is already held by a different
	// user id (the losing side of a race).
	ApplyOccupy(ctx context.Context, id SlotID, who Identity, at time.Time) (Slot, error)

	// ApplyRelease clears the slot. Fails with ErrSlotNotFound for
	// unknown ids, and with *NotOccupantError when the slot is available
	// or held by a different user id.
	ApplyRelease(ctx context.Context, id SlotID, who Identity, at time.Time) (Slot, error)
}

// =============================================================================
// HISTORY STORE - Append-only audit log
// =============================================================================

// HistoryStore persists booking history. Append-only: no Update, no
// Delete. Ever.
type HistoryStore interface {
	// Append persists one record. This is the ONLY write operation.
	Append(ctx context.Context, rec HistoryRecord) error

	// ListNewestFirst returns records newest-first (timestamp descending,
	// insertion order as tiebreak). limit <= 0 means unlimited.
	ListNewestFirst(ctx context.Context, limit int) ([]HistoryRecord, error)

	// DistinctUsers returns the number of unique user ids across all
	// records.
	DistinctUsers(ctx context.Context) (int, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)
}
