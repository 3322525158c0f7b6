package parking_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/warp/parking-engine/parking"
	"github.com/warp/parking-engine/parking/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// flakyStore wraps Memory and fails reads on demand, standing in for an
// unreachable backend.
type flakyStore struct {
	*store.Memory
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyStore) List(ctx context.Context) ([]parking.Slot, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("%w: connection refused", parking.ErrStoreUnavailable)
	}
	return f.Memory.List(ctx)
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

// =============================================================================
// SNAPSHOT DELIVERY
// =============================================================================

func TestSubscribeSlots_DeliversInitialSnapshot(t *testing.T) {
	// GIVEN: A bus over an initialized store
	// WHEN: A subscriber registers
	// THEN: It receives the current snapshot without any Publish call

	mem := store.NewMemory()
	if err := mem.Initialize(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	bus := parking.NewBus(mem, parking.NewLedger(mem))

	got := make(chan []parking.Slot, 4)
	unsub := bus.SubscribeSlots(func(slots []parking.Slot) { got <- slots })
	defer unsub()

	snapshot := waitFor(t, got, "initial slot snapshot")
	if len(snapshot) != 3 {
		t.Errorf("expected 3 slots in snapshot, got %d", len(snapshot))
	}
}

func TestPublish_FansOutAfterToggle(t *testing.T) {
	// GIVEN: Slot and history subscribers
	// WHEN: A toggle succeeds
	// THEN: Both receive fresh snapshots reflecting the transition

	mem := store.NewMemory()
	if err := mem.Initialize(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	ledger := parking.NewLedger(mem)
	bus := parking.NewBus(mem, ledger)
	engine := parking.NewEngine(mem, ledger, bus)

	slotCh := make(chan []parking.Slot, 8)
	histCh := make(chan []parking.HistoryRecord, 8)
	defer bus.SubscribeSlots(func(s []parking.Slot) { slotCh <- s })()
	defer bus.SubscribeHistory(func(h []parking.HistoryRecord) { histCh <- h })()

	mustToggle(t, engine, parking.SlotIDForNumber(2), alice())

	// Coalescing may skip intermediate snapshots; wait for one that
	// reflects the booking.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case slots := <-slotCh:
			if len(slots) == 3 && slots[1].IsOccupied && slots[1].OccupiedBy == "alice" {
				goto history
			}
		case <-deadline:
			t.Fatal("never observed the booked slot in a snapshot")
		}
	}

history:
	for {
		select {
		case history := <-histCh:
			if len(history) == 1 && history[0].Action == parking.ActionBooked {
				return
			}
		case <-deadline:
			t.Fatal("never observed the booking in a history snapshot")
		}
	}
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	mem := store.NewMemory()
	if err := mem.Initialize(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	ledger := parking.NewLedger(mem)
	bus := parking.NewBus(mem, ledger)
	engine := parking.NewEngine(mem, ledger, bus)

	got := make(chan []parking.Slot, 8)
	unsub := bus.SubscribeSlots(func(s []parking.Slot) { got <- s })
	waitFor(t, got, "initial snapshot")

	unsub()
	unsub() // second call must be a no-op

	mustToggle(t, engine, parking.SlotIDForNumber(1), alice())

	select {
	case <-got:
		t.Error("received a snapshot after unsubscribing")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPanickingSubscriber_DoesNotAffectOthers(t *testing.T) {
	// GIVEN: One subscriber that panics and one that behaves
	// WHEN: Snapshots are published
	// THEN: The healthy subscriber keeps receiving them

	mem := store.NewMemory()
	if err := mem.Initialize(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	ledger := parking.NewLedger(mem)
	bus := parking.NewBus(mem, ledger)
	engine := parking.NewEngine(mem, ledger, bus)

	defer bus.SubscribeSlots(func([]parking.Slot) { panic("bad subscriber") })()

	got := make(chan []parking.Slot, 8)
	defer bus.SubscribeSlots(func(s []parking.Slot) { got <- s })()
	waitFor(t, got, "initial snapshot")

	mustToggle(t, engine, parking.SlotIDForNumber(1), alice())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case slots := <-got:
			if slots[0].IsOccupied {
				return
			}
		case <-deadline:
			t.Fatal("healthy subscriber stopped receiving snapshots")
		}
	}
}

// =============================================================================
// CONNECTION STATUS
// =============================================================================

func TestStatus_TracksStoreAvailability(t *testing.T) {
	// GIVEN: A status subscriber and a store that can be made unreachable
	// WHEN: Publishes succeed, fail, then succeed again
	// THEN: The subscriber sees connecting, offline, connected transitions

	mem := store.NewMemory()
	if err := mem.Initialize(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	flaky := &flakyStore{Memory: mem}
	ledger := parking.NewLedger(mem)
	bus := parking.NewBus(flaky, ledger)

	states := make(chan parking.ConnectionState, 8)
	defer bus.SubscribeStatus(func(s parking.ConnectionState) { states <- s })()

	if s := waitFor(t, states, "initial state"); s != parking.StateConnecting {
		t.Errorf("expected connecting, got %s", s)
	}

	flaky.setFail(true)
	bus.Publish(context.Background())
	if s := waitFor(t, states, "offline state"); s != parking.StateOffline {
		t.Errorf("expected offline, got %s", s)
	}

	flaky.setFail(false)
	bus.Publish(context.Background())
	if s := waitFor(t, states, "connected state"); s != parking.StateConnected {
		t.Errorf("expected connected, got %s", s)
	}
}
