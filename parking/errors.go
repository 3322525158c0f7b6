/*
errors.go - Centralized error types for the reservation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Validation failures are expected and recoverable; callers surface the
  message and may retry. Nothing here is fatal to the process.

ERROR CATEGORIES:
  1. Validation errors - Unauthenticated, SlotNotFound, OccupiedByOther,
     NotOccupant. Returned by the engine and stores, surfaced to the user.
  2. Availability errors - TransientUnavailable. The backing store is
     temporarily unreachable; distinct from a booking failure and reported
     through the connection-status channel.

USAGE:
  if errors.Is(err, parking.ErrOccupiedByOther) {
      var obo *parking.OccupiedByOtherError
      errors.As(err, &obo) // occupant name and vehicle for the message
  }

SEE ALSO:
  - engine.go: Where these are produced
  - api/handlers.go: Where they map to HTTP responses
*/
package parking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthenticated is returned when no identity was supplied.
	// The engine fails fast: no store access is attempted.
	ErrUnauthenticated = errors.New("user not authenticated")

	// ErrSlotNotFound is returned when the slot id is unknown.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrOccupiedByOther is returned when the caller interacts with a slot
	// held by a different identity.
	ErrOccupiedByOther = errors.New("slot occupied by another user")

	// ErrNotOccupant is returned when a release is attempted on a slot the
	// caller does not hold. In the toggle flow this is subsumed by
	// ErrOccupiedByOther; it stays distinct at the store boundary.
	ErrNotOccupant = errors.New("slot not occupied by this user")

	// ErrStoreUnavailable is returned when the backing store is
	// temporarily unreachable. Recoverable: snapshot delivery resumes once
	// connectivity returns.
	ErrStoreUnavailable = errors.New("store temporarily unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the context the UI message needs
// =============================================================================

// OccupiedByOtherError names the current occupant so the failure message
// can be specific rather than generic.
type OccupiedByOtherError struct {
	SlotNumber    int
	OccupiedBy    string
	VehicleNumber string
}

func (e *OccupiedByOtherError) Error() string {
	return fmt.Sprintf("Slot %d is occupied by %s (%s)",
		e.SlotNumber, e.OccupiedBy, e.VehicleNumber)
}

func (e *OccupiedByOtherError) Unwrap() error { return ErrOccupiedByOther }

// NotOccupantError reports a release attempted by a non-occupant.
type NotOccupantError struct {
	SlotNumber int
	UserID     string
}

func (e *NotOccupantError) Error() string {
	return fmt.Sprintf("Slot %d is not occupied by this user", e.SlotNumber)
}

func (e *NotOccupantError) Unwrap() error { return ErrNotOccupant }

// SlotNotFoundError carries the unknown id for logging and messages.
type SlotNotFoundError struct {
	SlotID SlotID
}

func (e *SlotNotFoundError) Error() string {
	return fmt.Sprintf("slot %q not found", e.SlotID)
}

func (e *SlotNotFoundError) Unwrap() error { return ErrSlotNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the caller's request
// rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrSlotNotFound) ||
		errors.Is(err, ErrOccupiedByOther) ||
		errors.Is(err, ErrNotOccupant)
}

// IsNotFound returns true if the error indicates a missing slot.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSlotNotFound)
}

// IsRetryable returns true if the request might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
