/*
Package parking provides the core slot reservation engine.

PURPOSE:
  This package contains the domain types and algorithms for a finite set
  of named parking slots that toggle between available and occupied. Every
  transition is validated, applied atomically, and durably recorded in an
  append-only booking history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Slot: A parking slot with its occupation state and occupant fields
  - Identity: The authenticated-but-unverified actor behind a request
  - HistoryRecord: An immutable audit entry for one booking or release
  - TransitionResult: The outcome of a successful toggle

DESIGN PRINCIPLES:
  1. Consistency: a slot is either available with all occupant fields
     unset, or occupied with all of them set. Never anything in between.
  2. Immutability: history records are never modified or deleted.
  3. Single writer: only the Engine mutates stores; everyone else reads
     snapshots.
  4. One timestamp type: time.Time in UTC at every boundary.

SEE ALSO:
  - store.go: Persistence interfaces for slots and history
  - engine.go: Validated toggle transitions
  - bus.go: Snapshot fan-out to subscribers
*/
package parking

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SLOT - A unit of parking space
// =============================================================================

// SlotID is the stable document-style identifier of a slot ("slot-1").
type SlotID string

// SlotIDForNumber returns the canonical id for a slot number.
func SlotIDForNumber(n int) SlotID {
	return SlotID(fmt.Sprintf("slot-%d", n))
}

// Slot is a parking slot. Exactly one of {available, occupied} holds:
// when available, all occupant fields are zero and OccupiedAt is nil;
// when occupied, all occupant fields are set and OccupiedAt is non-nil.
//
// Slots are created once at initialization and only ever mutated through
// the Engine. Callers always receive copies, never shared references.
type Slot struct {
	ID            SlotID     `json:"id"`
	Number        int        `json:"number"`
	IsOccupied    bool       `json:"isOccupied"`
	OccupiedBy    string     `json:"occupiedBy,omitempty"`
	VehicleNumber string     `json:"vehicleNumber,omitempty"`
	UserID        string     `json:"userId,omitempty"`
	OccupiedAt    *time.Time `json:"occupiedAt,omitempty"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// OccupiedByUser reports whether the slot is currently held by userID.
func (s Slot) OccupiedByUser(userID string) bool {
	return s.IsOccupied && s.UserID == userID
}

// =============================================================================
// IDENTITY - The actor performing a transition
// =============================================================================

// Identity is supplied per request by the identity provider. It is
// transient and denormalized onto slots and history records when used.
type Identity struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	VehicleNumber string `json:"vehicleNumber"`
	IsAdmin       bool   `json:"isAdmin"`
}

// IsZero reports whether no identity was supplied.
func (id Identity) IsZero() bool {
	return id.UserID == ""
}

// IsAdminUsername implements the reserved-name rule: admin status derives
// from case-insensitive equality to the reserved admin username, nothing
// else.
func IsAdminUsername(username, adminUsername string) bool {
	return strings.EqualFold(username, adminUsername)
}

// =============================================================================
// HISTORY RECORD - One immutable audit entry
// =============================================================================

// Action is the transition direction recorded in history.
type Action string

const (
	ActionBooked   Action = "booked"
	ActionReleased Action = "released"
)

// HistoryRecord is an append-only audit entry. The slot number and the
// actor's fields are denormalized snapshots taken at event time; they do
// not track later changes.
type HistoryRecord struct {
	ID            string    `json:"id"`
	SlotID        SlotID    `json:"slotId"`
	SlotNumber    int       `json:"slotNumber"`
	Username      string    `json:"username"`
	VehicleNumber string    `json:"vehicleNumber"`
	UserID        string    `json:"userId"`
	Action        Action    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

// =============================================================================
// TRANSITION RESULT - Outcome of a successful toggle
// =============================================================================

// TransitionResult is returned by Engine.ToggleBooking on success.
// Failures are returned as errors (see errors.go).
type TransitionResult struct {
	Action  Action `json:"action"`
	Message string `json:"message"`
	Slot    Slot   `json:"slot"`
}

// =============================================================================
// UI DERIVATIONS - Pure helpers consumed by the presentation layer
// =============================================================================

// CanInteract reports whether the identity may toggle the slot: the slot
// is free, or it is held by the caller.
func CanInteract(slot Slot, id Identity) bool {
	if id.IsZero() {
		return false
	}
	return !slot.IsOccupied || slot.UserID == id.UserID
}

// ActionText returns the label the UI shows on a slot for an identity.
func ActionText(slot Slot, id Identity) string {
	switch {
	case id.IsZero():
		return "Login required"
	case !slot.IsOccupied:
		return "Tap to book"
	case slot.UserID == id.UserID:
		return "Tap to release"
	default:
		return "Occupied"
	}
}

// UserSlots returns the slots currently occupied by the identity.
func UserSlots(slots []Slot, id Identity) []Slot {
	if id.IsZero() {
		return nil
	}
	var out []Slot
	for _, s := range slots {
		if s.OccupiedByUser(id.UserID) {
			out = append(out, s)
		}
	}
	return out
}
