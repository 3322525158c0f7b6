/*
engine.go - Validated slot transitions

PURPOSE:
  The Engine is the single validated entry point for mutating slots. It
  derives the transition direction from current state (available -> book,
  occupied -> release), checks eligibility, applies the mutation, records
  history, and notifies subscribers. No other component writes to the
  stores.

ALGORITHM (ToggleBooking):
  1. Reject a zero identity immediately - no store access.
  2. Honour the simulated round-trip latency; the caller can cancel here
     via context. Once the mutation section is entered it runs to
     completion or fails cleanly, never partially.
  3. Fetch the slot; unknown id -> SlotNotFound.
  4. A slot held by someone else -> OccupiedByOther, naming the occupant
     and vehicle. The caller never silently releases another user's slot.
  5. Apply occupy or release through the store, append the matching
     history record, publish fresh snapshots.

CONCURRENCY:
  One mutex per slot id serializes toggles on the same slot, so the
  net effect of concurrent calls is some sequential interleaving: only
  one occupy can win, the loser observes OccupiedByOther. The per-slot
  lock also covers the history append, which keeps a release record from
  ever preceding its occupy record in timestamp order. Contention is
  light; slots number in the tens.

SEE ALSO:
  - store.go: The atomicity contract the stores uphold underneath
  - bus.go: Snapshot delivery after successful transitions
*/
package parking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// ENGINE - The only writer
// =============================================================================

// Engine executes toggle transitions against a SlotStore and records them
// in a Ledger. A nil Bus disables notifications.
type Engine struct {
	slots   SlotStore
	ledger  *Ledger
	bus     *Bus
	latency time.Duration
	now     func() time.Time

	mu    sync.Mutex
	locks map[SlotID]*sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLatency sets a simulated network round trip applied before the
// mutation section. Zero disables it.
func WithLatency(d time.Duration) EngineOption {
	return func(e *Engine) { e.latency = d }
}

// WithClock overrides the engine clock. Tests use this for deterministic
// timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
		if e.ledger != nil {
			e.ledger.now = now
		}
	}
}

// NewEngine wires an engine over its collaborators.
func NewEngine(slots SlotStore, ledger *Ledger, bus *Bus, opts ...EngineOption) *Engine {
	e := &Engine{
		slots:  slots,
		ledger: ledger,
		bus:    bus,
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[SlotID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ToggleBooking books an available slot or releases the caller's own
// occupied slot. Validation failures come back as errors from errors.go;
// they carry user-facing messages and cause no mutation, no history
// record, and no notification.
func (e *Engine) ToggleBooking(ctx context.Context, id SlotID, who Identity) (*TransitionResult, error) {
	if who.IsZero() {
		return nil, ErrUnauthenticated
	}

	// Simulated round trip. This is the one suspension point a caller may
	// cancel; past it the transition runs to completion.
	if err := e.simulateLatency(ctx); err != nil {
		return nil, err
	}

	lock := e.slotLock(id)
	lock.Lock()
	defer lock.Unlock()

	slot, err := e.slots.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if slot.IsOccupied && slot.UserID != who.UserID {
		return nil, &OccupiedByOtherError{
			SlotNumber:    slot.Number,
			OccupiedBy:    slot.OccupiedBy,
			VehicleNumber: slot.VehicleNumber,
		}
	}

	at := e.now()
	var (
		updated Slot
		action  Action
	)
	if slot.IsOccupied {
		updated, err = e.slots.ApplyRelease(ctx, id, who, at)
		action = ActionReleased
	} else {
		updated, err = e.slots.ApplyOccupy(ctx, id, who, at)
		action = ActionBooked
	}
	if err != nil {
		// The store re-validated under its own lock and lost a race we
		// could not see. Report it the same way the pre-check would have.
		var noc *NotOccupantError
		if errors.As(err, &noc) && slot.IsOccupied {
			return nil, &OccupiedByOtherError{
				SlotNumber:    slot.Number,
				OccupiedBy:    slot.OccupiedBy,
				VehicleNumber: slot.VehicleNumber,
			}
		}
		return nil, err
	}

	if _, err := e.ledger.Record(ctx, updated, who, action); err != nil {
		return nil, err
	}

	if e.bus != nil {
		e.bus.Publish(ctx)
	}

	return &TransitionResult{
		Action:  action,
		Message: fmt.Sprintf("Slot %d %s successfully", updated.Number, action),
		Slot:    updated,
	}, nil
}

// Slot returns a single slot by id.
func (e *Engine) Slot(ctx context.Context, id SlotID) (Slot, error) {
	return e.slots.Get(ctx, id)
}

// Slots returns all slots ascending by number.
func (e *Engine) Slots(ctx context.Context) ([]Slot, error) {
	return e.slots.List(ctx)
}

// History returns history records newest-first, capped at limit when
// limit > 0.
func (e *Engine) History(ctx context.Context, limit int) ([]HistoryRecord, error) {
	return e.ledger.ListNewestFirst(ctx, limit)
}

func (e *Engine) simulateLatency(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(e.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) slotLock(id SlotID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}
