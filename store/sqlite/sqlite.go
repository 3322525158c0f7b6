/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements parking.SlotStore and parking.HistoryStore using SQLite, as
  the durable alternative to the in-memory store. The same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  booking_history has no UPDATE and no DELETE statements anywhere in this
  package. Slots are updated only through the two guarded transitions.

KEY TABLES:
  parking_slots:   The fixed slot collection, one row per slot
  booking_history: Immutable log of every booking and release

ATOMICITY:
  Occupy and release run as read-validate-write inside one database
  transaction, so a lost race fails cleanly instead of overwriting
  another occupant.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers do
  not block, a single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/parking.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - parking/store.go: Interface definitions
  - parking/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/parking-engine/parking"
)

// Store implements parking.SlotStore and parking.HistoryStore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	// insertSeq breaks history ordering ties: records that share a
	// timestamp sort by insertion order, newest first.
	insertSeq int64
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection sidesteps SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.loadSeq(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read history sequence: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS parking_slots (
		id             TEXT PRIMARY KEY,
		number         INTEGER NOT NULL UNIQUE,
		is_occupied    INTEGER NOT NULL DEFAULT 0,
		occupied_by    TEXT,
		vehicle_number TEXT,
		user_id        TEXT,
		occupied_at    TIMESTAMP,
		released_at    TIMESTAMP,
		created_at     TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS booking_history (
		id             TEXT PRIMARY KEY,
		seq            INTEGER NOT NULL,
		slot_id        TEXT NOT NULL,
		slot_number    INTEGER NOT NULL,
		username       TEXT NOT NULL,
		vehicle_number TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		action         TEXT NOT NULL CHECK (action IN ('booked', 'released')),
		timestamp      TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_newest
		ON booking_history(timestamp DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_history_user
		ON booking_history(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) loadSeq() error {
	row := s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM booking_history`)
	return row.Scan(&s.insertSeq)
}

// =============================================================================
// SLOT STORE
// =============================================================================

// Initialize creates count slots numbered 1..count. Idempotent: if any
// slots exist, nothing happens.
func (s *Store) Initialize(ctx context.Context, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_slots`).Scan(&existing); err != nil {
		return storeErr(err)
	}
	if existing > 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := 1; i <= count; i++ {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO parking_slots (id, number, is_occupied, created_at) VALUES (?, ?, 0, ?)`,
			string(parking.SlotIDForNumber(i)), i, now)
		if err != nil {
			return storeErr(err)
		}
	}
	return storeErr(tx.Commit())
}

// Get returns the slot by id.
func (s *Store) Get(ctx context.Context, id parking.SlotID) (parking.Slot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, is_occupied, occupied_by, vehicle_number, user_id,
		       occupied_at, released_at, created_at
		FROM parking_slots WHERE id = ?`, string(id))
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return parking.Slot{}, &parking.SlotNotFoundError{SlotID: id}
	}
	if err != nil {
		return parking.Slot{}, storeErr(err)
	}
	return slot, nil
}

// List returns all slots ascending by number.
func (s *Store) List(ctx context.Context) ([]parking.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, is_occupied, occupied_by, vehicle_number, user_id,
		       occupied_at, released_at, created_at
		FROM parking_slots ORDER BY number ASC`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var slots []parking.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		slots = append(slots, slot)
	}
	return slots, storeErr(rows.Err())
}

// ApplyOccupy marks the slot occupied by the identity. The
// read-validate-write runs in one transaction under the store mutex, so
// a concurrent occupy of the same slot by a different user loses and
// reports the standing occupant.
func (s *Store) ApplyOccupy(ctx context.Context, id parking.SlotID, who parking.Identity, at time.Time) (parking.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parking.Slot{}, storeErr(err)
	}
	defer tx.Rollback()

	slot, err := getSlotTx(ctx, tx, id)
	if err != nil {
		return parking.Slot{}, err
	}
	if slot.IsOccupied && slot.UserID != who.UserID {
		return parking.Slot{}, &parking.OccupiedByOtherError{
			SlotNumber:    slot.Number,
			OccupiedBy:    slot.OccupiedBy,
			VehicleNumber: slot.VehicleNumber,
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE parking_slots
		SET is_occupied = 1, occupied_by = ?, vehicle_number = ?, user_id = ?,
		    occupied_at = ?, released_at = NULL
		WHERE id = ?`,
		who.Username, who.VehicleNumber, who.UserID, at.UTC(), string(id))
	if err != nil {
		return parking.Slot{}, storeErr(err)
	}

	slot, err = getSlotTx(ctx, tx, id)
	if err != nil {
		return parking.Slot{}, err
	}
	if err := tx.Commit(); err != nil {
		return parking.Slot{}, storeErr(err)
	}
	return slot, nil
}

// ApplyRelease clears the slot. Only the current occupant may release.
func (s *Store) ApplyRelease(ctx context.Context, id parking.SlotID, who parking.Identity, at time.Time) (parking.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parking.Slot{}, storeErr(err)
	}
	defer tx.Rollback()

	slot, err := getSlotTx(ctx, tx, id)
	if err != nil {
		return parking.Slot{}, err
	}
	if !slot.IsOccupied || slot.UserID != who.UserID {
		return parking.Slot{}, &parking.NotOccupantError{SlotNumber: slot.Number, UserID: who.UserID}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE parking_slots
		SET is_occupied = 0, occupied_by = NULL, vehicle_number = NULL,
		    user_id = NULL, occupied_at = NULL, released_at = ?
		WHERE id = ?`,
		at.UTC(), string(id))
	if err != nil {
		return parking.Slot{}, storeErr(err)
	}

	slot, err = getSlotTx(ctx, tx, id)
	if err != nil {
		return parking.Slot{}, err
	}
	if err := tx.Commit(); err != nil {
		return parking.Slot{}, storeErr(err)
	}
	return slot, nil
}

// =============================================================================
// HISTORY STORE
// =============================================================================

// Append inserts one immutable history record.
func (s *Store) Append(ctx context.Context, rec parking.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertSeq++
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO booking_history
			(id, seq, slot_id, slot_number, username, vehicle_number, user_id, action, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, s.insertSeq, string(rec.SlotID), rec.SlotNumber,
		rec.Username, rec.VehicleNumber, rec.UserID, string(rec.Action), rec.Timestamp.UTC())
	return storeErr(err)
}

// ListNewestFirst returns records newest-first. limit <= 0 means all.
func (s *Store) ListNewestFirst(ctx context.Context, limit int) ([]parking.HistoryRecord, error) {
	q := `
		SELECT id, slot_id, slot_number, username, vehicle_number, user_id, action, timestamp
		FROM booking_history ORDER BY timestamp DESC, seq DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var records []parking.HistoryRecord
	for rows.Next() {
		var (
			rec    parking.HistoryRecord
			slotID string
			action string
		)
		if err := rows.Scan(&rec.ID, &slotID, &rec.SlotNumber, &rec.Username,
			&rec.VehicleNumber, &rec.UserID, &action, &rec.Timestamp); err != nil {
			return nil, storeErr(err)
		}
		rec.SlotID = parking.SlotID(slotID)
		rec.Action = parking.Action(action)
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	return records, storeErr(rows.Err())
}

// DistinctUsers counts unique user ids in the history.
func (s *Store) DistinctUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM booking_history`).Scan(&n)
	return n, storeErr(err)
}

// Count returns the total number of history records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM booking_history`).Scan(&n)
	return n, storeErr(err)
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (parking.Slot, error) {
	var (
		slot       parking.Slot
		id         string
		occupied   int
		occupiedBy sql.NullString
		vehicle    sql.NullString
		userID     sql.NullString
		occupiedAt sql.NullTime
		releasedAt sql.NullTime
	)
	err := row.Scan(&id, &slot.Number, &occupied, &occupiedBy, &vehicle,
		&userID, &occupiedAt, &releasedAt, &slot.CreatedAt)
	if err != nil {
		return parking.Slot{}, err
	}
	slot.ID = parking.SlotID(id)
	slot.IsOccupied = occupied != 0
	slot.OccupiedBy = occupiedBy.String
	slot.VehicleNumber = vehicle.String
	slot.UserID = userID.String
	if occupiedAt.Valid {
		t := occupiedAt.Time.UTC()
		slot.OccupiedAt = &t
	}
	if releasedAt.Valid {
		t := releasedAt.Time.UTC()
		slot.ReleasedAt = &t
	}
	slot.CreatedAt = slot.CreatedAt.UTC()
	return slot, nil
}

func getSlotTx(ctx context.Context, tx *sql.Tx, id parking.SlotID) (parking.Slot, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, number, is_occupied, occupied_by, vehicle_number, user_id,
		       occupied_at, released_at, created_at
		FROM parking_slots WHERE id = ?`, string(id))
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return parking.Slot{}, &parking.SlotNotFoundError{SlotID: id}
	}
	if err != nil {
		return parking.Slot{}, storeErr(err)
	}
	return slot, nil
}

// storeErr wraps infrastructure failures as ErrStoreUnavailable so
// callers can tell a connectivity problem from a booking failure.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", parking.ErrStoreUnavailable, err)
}
