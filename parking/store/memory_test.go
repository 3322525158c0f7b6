package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/warp/parking-engine/parking"
)

func initialized(t *testing.T, count int) *Memory {
	t.Helper()
	m := NewMemory()
	if err := m.Initialize(context.Background(), count); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return m
}

func TestInitialize_CreatesNumberedSlots(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Initialized with 20 slots
	// THEN: Slots slot-1..slot-20 exist, available, ascending by number

	m := initialized(t, 20)

	slots, err := m.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	for i, s := range slots {
		if s.Number != i+1 {
			t.Errorf("slot %d: wrong number %d", i, s.Number)
		}
		if s.ID != parking.SlotIDForNumber(i+1) {
			t.Errorf("slot %d: wrong id %s", i, s.ID)
		}
		if s.IsOccupied || s.OccupiedBy != "" || s.OccupiedAt != nil {
			t.Errorf("slot %d: not initialized available: %+v", i, s)
		}
		if s.CreatedAt.IsZero() {
			t.Errorf("slot %d: zero createdAt", i)
		}
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	// A second Initialize, even with a different count, must not reset
	// existing state.

	m := initialized(t, 5)
	ctx := context.Background()

	who := parking.Identity{UserID: "u1", Username: "alice", VehicleNumber: "XYZ-1"}
	if _, err := m.ApplyOccupy(ctx, parking.SlotIDForNumber(3), who, time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := m.Initialize(ctx, 50); err != nil {
		t.Fatal(err)
	}

	slots, _ := m.List(ctx)
	if len(slots) != 5 {
		t.Fatalf("re-initialize changed slot count: %d", len(slots))
	}
	slot, _ := m.Get(ctx, parking.SlotIDForNumber(3))
	if !slot.IsOccupied || slot.UserID != "u1" {
		t.Errorf("re-initialize cleared occupancy: %+v", slot)
	}
}

func TestGet_UnknownSlot(t *testing.T) {
	m := initialized(t, 3)

	_, err := m.Get(context.Background(), "slot-7")
	if !errors.Is(err, parking.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
	var nf *parking.SlotNotFoundError
	if !errors.As(err, &nf) || nf.SlotID != "slot-7" {
		t.Errorf("error does not carry the slot id: %v", err)
	}
}

func TestApplyOccupy_SetsAllOccupantFields(t *testing.T) {
	m := initialized(t, 3)
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	who := parking.Identity{UserID: "u1", Username: "alice", VehicleNumber: "XYZ-1"}

	slot, err := m.ApplyOccupy(context.Background(), parking.SlotIDForNumber(1), who, at)
	if err != nil {
		t.Fatal(err)
	}
	if !slot.IsOccupied || slot.OccupiedBy != "alice" || slot.VehicleNumber != "XYZ-1" || slot.UserID != "u1" {
		t.Errorf("occupant fields wrong: %+v", slot)
	}
	if slot.OccupiedAt == nil || !slot.OccupiedAt.Equal(at) {
		t.Errorf("occupiedAt wrong: %v", slot.OccupiedAt)
	}
	if slot.ReleasedAt != nil {
		t.Error("releasedAt should clear on occupy")
	}
}

func TestApplyOccupy_RejectsOtherOccupant(t *testing.T) {
	m := initialized(t, 3)
	ctx := context.Background()
	id := parking.SlotIDForNumber(1)
	alice := parking.Identity{UserID: "u1", Username: "alice", VehicleNumber: "XYZ-1"}
	bob := parking.Identity{UserID: "u2", Username: "bob", VehicleNumber: "BOB-9"}

	if _, err := m.ApplyOccupy(ctx, id, alice, time.Now()); err != nil {
		t.Fatal(err)
	}

	_, err := m.ApplyOccupy(ctx, id, bob, time.Now())
	if !errors.Is(err, parking.ErrOccupiedByOther) {
		t.Fatalf("expected ErrOccupiedByOther, got %v", err)
	}
}

func TestApplyRelease_OnlyOccupantMayRelease(t *testing.T) {
	m := initialized(t, 3)
	ctx := context.Background()
	id := parking.SlotIDForNumber(1)
	alice := parking.Identity{UserID: "u1", Username: "alice", VehicleNumber: "XYZ-1"}
	bob := parking.Identity{UserID: "u2", Username: "bob", VehicleNumber: "BOB-9"}

	// Releasing a free slot fails.
	if _, err := m.ApplyRelease(ctx, id, alice, time.Now()); !errors.Is(err, parking.ErrNotOccupant) {
		t.Fatalf("expected ErrNotOccupant on free slot, got %v", err)
	}

	if _, err := m.ApplyOccupy(ctx, id, alice, time.Now()); err != nil {
		t.Fatal(err)
	}

	// A different user cannot release.
	if _, err := m.ApplyRelease(ctx, id, bob, time.Now()); !errors.Is(err, parking.ErrNotOccupant) {
		t.Fatalf("expected ErrNotOccupant for non-occupant, got %v", err)
	}

	// The occupant can.
	slot, err := m.ApplyRelease(ctx, id, alice, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if slot.IsOccupied || slot.OccupiedBy != "" || slot.UserID != "" || slot.OccupiedAt != nil {
		t.Errorf("release did not clear occupant fields: %+v", slot)
	}
	if slot.ReleasedAt == nil {
		t.Error("releasedAt not set")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	// Mutating a returned slot must not leak into the store.

	m := initialized(t, 1)
	ctx := context.Background()
	id := parking.SlotIDForNumber(1)

	slot, _ := m.Get(ctx, id)
	slot.IsOccupied = true
	slot.OccupiedBy = "intruder"

	fresh, _ := m.Get(ctx, id)
	if fresh.IsOccupied || fresh.OccupiedBy != "" {
		t.Errorf("caller mutation leaked into store: %+v", fresh)
	}
}

func TestAppend_NewestFirstWithInsertionTiebreak(t *testing.T) {
	// GIVEN: Two records sharing one timestamp and one older record
	// WHEN: Appended in causal order
	// THEN: Listing reads newest-first; equal timestamps keep the later
	//       insertion first

	m := initialized(t, 3)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	recs := []parking.HistoryRecord{
		{ID: "a", SlotNumber: 1, UserID: "u1", Action: parking.ActionBooked, Timestamp: t0},
		{ID: "b", SlotNumber: 1, UserID: "u1", Action: parking.ActionReleased, Timestamp: t1},
		{ID: "c", SlotNumber: 2, UserID: "u2", Action: parking.ActionBooked, Timestamp: t1},
	}
	for _, rec := range recs {
		if err := m.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.ListNewestFirst(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []string{"c", "b", "a"}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d records, got %d", len(wantIDs), len(got))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestListNewestFirst_Limit(t *testing.T) {
	m := initialized(t, 1)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := parking.HistoryRecord{
			ID:        fmt.Sprintf("rec-%d", i),
			UserID:    "u1",
			Action:    parking.ActionBooked,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := m.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.ListNewestFirst(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if !got[0].Timestamp.After(got[1].Timestamp) {
		t.Error("limited listing not newest-first")
	}
}

func TestDistinctUsersAndCount(t *testing.T) {
	m := initialized(t, 1)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, user := range []string{"u1", "u2", "u1"} {
		rec := parking.HistoryRecord{
			ID:        string(rune('a' + i)),
			UserID:    user,
			Action:    parking.ActionBooked,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
		if err := m.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	users, err := m.DistinctUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if users != 2 {
		t.Errorf("expected 2 distinct users, got %d", users)
	}
	n, err := m.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 records, got %d", n)
	}
}
