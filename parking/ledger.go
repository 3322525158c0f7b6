/*
ledger.go - Append-only booking history

PURPOSE:
  The Ledger is the immutable audit trail of every booking and release.
  It assigns record ids and timestamps, and answers the newest-first and
  distinct-user queries the dashboard needs. Persistence is delegated to
  a HistoryStore.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, records cannot be modified.
  3. ORDERED: Newest-first by timestamp, insertion order breaks ties.
  4. CAUSAL: A release record for a slot never precedes, in timestamp
     order, the occupy record it releases. The Engine guarantees this by
     serializing per slot; the Ledger preserves whatever order it is
     handed within that discipline.

SEE ALSO:
  - store.go: HistoryStore interface
  - engine.go: The only writer
*/
package parking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER - History over a HistoryStore
// =============================================================================

// Ledger records transitions and serves history queries.
type Ledger struct {
	store HistoryStore
	now   func() time.Time
}

// NewLedger creates a ledger over the given store.
func NewLedger(store HistoryStore) *Ledger {
	return &Ledger{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends one entry for a completed transition. The slot number
// and actor fields are denormalized from the inputs at call time.
func (l *Ledger) Record(ctx context.Context, slot Slot, who Identity, action Action) (HistoryRecord, error) {
	rec := HistoryRecord{
		ID:            uuid.NewString(),
		SlotID:        slot.ID,
		SlotNumber:    slot.Number,
		Username:      who.Username,
		VehicleNumber: who.VehicleNumber,
		UserID:        who.UserID,
		Action:        action,
		Timestamp:     l.now(),
	}
	if err := l.store.Append(ctx, rec); err != nil {
		return HistoryRecord{}, err
	}
	return rec, nil
}

// ListNewestFirst returns records ordered newest-first. limit <= 0 means
// unlimited; the dashboard's recent-activity view passes a small cap.
func (l *Ledger) ListNewestFirst(ctx context.Context, limit int) ([]HistoryRecord, error) {
	return l.store.ListNewestFirst(ctx, limit)
}

// CountDistinctUsers returns the cardinality of the set of user ids that
// appear anywhere in the history.
func (l *Ledger) CountDistinctUsers(ctx context.Context) (int, error) {
	return l.store.DistinctUsers(ctx)
}

// CountRecords returns the total number of history records.
func (l *Ledger) CountRecords(ctx context.Context) (int, error) {
	return l.store.Count(ctx)
}
