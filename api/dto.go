/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers; DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/parking-engine/parking"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LoginRequest carries the (unverified) credentials.
type LoginRequest struct {
	Username      string `json:"username"`
	VehicleNumber string `json:"vehicleNumber"`
}

// LoginResponse returns the identity and its bearer token.
type LoginResponse struct {
	Token string      `json:"token"`
	User  IdentityDTO `json:"user"`
}

// IdentityDTO represents the signed-in user.
type IdentityDTO struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	VehicleNumber string `json:"vehicleNumber"`
	IsAdmin       bool   `json:"isAdmin"`
}

// SlotDTO represents a parking slot in API responses.
type SlotDTO struct {
	ID            string `json:"id"`
	Number        int    `json:"number"`
	IsOccupied    bool   `json:"isOccupied"`
	OccupiedBy    string `json:"occupiedBy,omitempty"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	UserID        string `json:"userId,omitempty"`
	OccupiedAt    string `json:"occupiedAt,omitempty"`
	ReleasedAt    string `json:"releasedAt,omitempty"`
	CreatedAt     string `json:"createdAt"`

	// Per-viewer derivations; empty for anonymous listings.
	ActionText  string `json:"actionText,omitempty"`
	CanInteract bool   `json:"canInteract"`
}

// ToggleResponse reports a successful transition.
type ToggleResponse struct {
	Action  string  `json:"action"`
	Message string  `json:"message"`
	Slot    SlotDTO `json:"slot"`
}

// HistoryRecordDTO represents one booking-history entry.
type HistoryRecordDTO struct {
	ID            string `json:"id"`
	SlotID        string `json:"slotId"`
	SlotNumber    int    `json:"slotNumber"`
	Username      string `json:"username"`
	VehicleNumber string `json:"vehicleNumber"`
	UserID        string `json:"userId"`
	Action        string `json:"action"`
	Timestamp     string `json:"timestamp"`
}

// StatsDTO is the admin dashboard surface.
type StatsDTO struct {
	TotalSlots     int    `json:"totalSlots"`
	AvailableSlots int    `json:"availableSlots"`
	OccupiedSlots  int    `json:"occupiedSlots"`
	TotalUsers     int    `json:"totalUsers"`
	TotalBookings  int    `json:"totalBookings"`
	OccupancyRate  string `json:"occupancyRate"`
}

// ErrorResponse is the uniform failure body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSlotDTO(s parking.Slot, viewer parking.Identity) SlotDTO {
	dto := SlotDTO{
		ID:            string(s.ID),
		Number:        s.Number,
		IsOccupied:    s.IsOccupied,
		OccupiedBy:    s.OccupiedBy,
		VehicleNumber: s.VehicleNumber,
		UserID:        s.UserID,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		CanInteract:   parking.CanInteract(s, viewer),
	}
	if s.OccupiedAt != nil {
		dto.OccupiedAt = s.OccupiedAt.Format(time.RFC3339)
	}
	if s.ReleasedAt != nil {
		dto.ReleasedAt = s.ReleasedAt.Format(time.RFC3339)
	}
	if !viewer.IsZero() {
		dto.ActionText = parking.ActionText(s, viewer)
	}
	return dto
}

func toSlotDTOs(slots []parking.Slot, viewer parking.Identity) []SlotDTO {
	dtos := make([]SlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = toSlotDTO(s, viewer)
	}
	return dtos
}

func toHistoryDTO(r parking.HistoryRecord) HistoryRecordDTO {
	return HistoryRecordDTO{
		ID:            r.ID,
		SlotID:        string(r.SlotID),
		SlotNumber:    r.SlotNumber,
		Username:      r.Username,
		VehicleNumber: r.VehicleNumber,
		UserID:        r.UserID,
		Action:        string(r.Action),
		Timestamp:     r.Timestamp.Format(time.RFC3339Nano),
	}
}

func toHistoryDTOs(records []parking.HistoryRecord) []HistoryRecordDTO {
	dtos := make([]HistoryRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toHistoryDTO(r)
	}
	return dtos
}

func toStatsDTO(s parking.Stats) StatsDTO {
	return StatsDTO{
		TotalSlots:     s.TotalSlots,
		AvailableSlots: s.AvailableSlots,
		OccupiedSlots:  s.OccupiedSlots,
		TotalUsers:     s.TotalUsers,
		TotalBookings:  s.TotalBookings,
		OccupancyRate:  s.OccupancyRate.String(),
	}
}

func toIdentityDTO(id parking.Identity) IdentityDTO {
	return IdentityDTO{
		UserID:        id.UserID,
		Username:      id.Username,
		VehicleNumber: id.VehicleNumber,
		IsAdmin:       id.IsAdmin,
	}
}
