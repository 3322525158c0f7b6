/*
stats.go - Derived statistics for the admin dashboard

PURPOSE:
  Pure functions of the current slot and history contents. Nothing here
  is stored; every number is recomputed on demand from snapshots, so the
  dashboard can never drift from the stores.

SEE ALSO:
  - api/handlers.go: The admin-gated /api/stats endpoint
*/
package parking

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATS - Computed on demand, never persisted
// =============================================================================

// Stats is the derived dashboard surface.
type Stats struct {
	TotalSlots     int             `json:"totalSlots"`
	AvailableSlots int             `json:"availableSlots"`
	OccupiedSlots  int             `json:"occupiedSlots"`
	TotalUsers     int             `json:"totalUsers"`
	TotalBookings  int             `json:"totalBookings"`
	OccupancyRate  decimal.Decimal `json:"occupancyRate"`
}

// ComputeStats derives the dashboard numbers from snapshots. The
// occupancy rate is exact decimal arithmetic (occupied/total, 4 places),
// not floating point.
func ComputeStats(slots []Slot, history []HistoryRecord) Stats {
	s := Stats{TotalSlots: len(slots), TotalBookings: len(history)}
	for _, slot := range slots {
		if slot.IsOccupied {
			s.OccupiedSlots++
		} else {
			s.AvailableSlots++
		}
	}
	users := make(map[string]struct{}, len(history))
	for _, rec := range history {
		users[rec.UserID] = struct{}{}
	}
	s.TotalUsers = len(users)
	s.OccupancyRate = occupancyRate(s.OccupiedSlots, s.TotalSlots)
	return s
}

// AvailableCount returns the number of free slots in a snapshot.
func AvailableCount(slots []Slot) int {
	n := 0
	for _, s := range slots {
		if !s.IsOccupied {
			n++
		}
	}
	return n
}

// OccupiedCount returns the number of held slots in a snapshot.
func OccupiedCount(slots []Slot) int {
	n := 0
	for _, s := range slots {
		if s.IsOccupied {
			n++
		}
	}
	return n
}

func occupancyRate(occupied, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(occupied)).
		DivRound(decimal.NewFromInt(int64(total)), 4)
}

// =============================================================================
// COLLECTOR - Stats straight from the stores
// =============================================================================

// StatsCollector reads live stats without going through a snapshot
// subscription. Uses the ledger's distinct-user query so a SQL-backed
// store can answer it without loading the whole history.
type StatsCollector struct {
	Slots  SlotStore
	Ledger *Ledger
}

// Collect reads current state and derives the stats.
func (c *StatsCollector) Collect(ctx context.Context) (Stats, error) {
	slots, err := c.Slots.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	users, err := c.Ledger.CountDistinctUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	bookings, err := c.Ledger.CountRecords(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		TotalSlots:     len(slots),
		AvailableSlots: AvailableCount(slots),
		OccupiedSlots:  OccupiedCount(slots),
		TotalUsers:     users,
		TotalBookings:  bookings,
	}
	s.OccupancyRate = occupancyRate(s.OccupiedSlots, s.TotalSlots)
	return s, nil
}
