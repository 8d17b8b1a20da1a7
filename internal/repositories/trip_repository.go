package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	intdb "conductor/internal/db"
	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/utils"
)

// activeSlot is the key of the single authoritative active-trip row.
const activeSlot = 1

type TripRepository struct{}

const tripColumns = `id, route_id, vehicle_id, capacity, status, created_at, completed_at, next_ticket_seq`

// Insert stores a new trip row.
func (r TripRepository) Insert(ctx context.Context, q intdb.Querier, t models.Trip) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO trips (id, route_id, vehicle_id, capacity, status, created_at, next_ticket_seq)
		VALUES (?,?,?,?,?,?,?)
	`, t.ID, t.RouteID, t.VehicleID, t.Capacity, string(t.Status), utils.FormatStamp(t.CreatedAt), t.NextTicketSeq)
	if err != nil {
		return fmt.Errorf("insert trip %s: %w", t.ID, err)
	}
	return nil
}

// Get returns a trip by id; sql.ErrNoRows when missing.
func (r TripRepository) Get(ctx context.Context, q intdb.Querier, id string) (models.Trip, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=? LIMIT 1`, id)
	return scanTrip(row)
}

// List returns the most recent trips first.
func (r TripRepository) List(ctx context.Context, q intdb.Querier, limit int) ([]models.Trip, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	out := []models.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ActiveTripID reads the active-trip slot.
func (r TripRepository) ActiveTripID(ctx context.Context, q intdb.Querier) (string, bool, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT trip_id FROM active_trip WHERE slot=?`, activeSlot).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read active trip slot: %w", err)
	}
	return id, true, nil
}

// ClaimActiveSlot occupies the slot; the primary key rejects a second claim.
func (r TripRepository) ClaimActiveSlot(ctx context.Context, q intdb.Querier, tripID string) error {
	if _, err := q.ExecContext(ctx, `INSERT INTO active_trip (slot, trip_id) VALUES (?,?)`, activeSlot, tripID); err != nil {
		return fmt.Errorf("claim active trip slot: %w", err)
	}
	return nil
}

// ReleaseActiveSlot frees the slot if it still belongs to tripID.
func (r TripRepository) ReleaseActiveSlot(ctx context.Context, q intdb.Querier, tripID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM active_trip WHERE slot=? AND trip_id=?`, activeSlot, tripID); err != nil {
		return fmt.Errorf("release active trip slot: %w", err)
	}
	return nil
}

// NextSequence atomically advances the ticket counter of an active trip and
// returns the number it allocated. sql.ErrNoRows means the trip is missing or
// no longer active.
func (r TripRepository) NextSequence(ctx context.Context, q intdb.Querier, tripID string) (int, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE trips SET next_ticket_seq = next_ticket_seq + 1
		WHERE id=? AND status=?
	`, tripID, string(domain.TripActive))
	if err != nil {
		return 0, fmt.Errorf("advance ticket counter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, sql.ErrNoRows
	}

	var next int
	if err := q.QueryRowContext(ctx, `SELECT next_ticket_seq FROM trips WHERE id=?`, tripID).Scan(&next); err != nil {
		return 0, fmt.Errorf("read ticket counter: %w", err)
	}
	return next - 1, nil
}

// Complete marks an active trip completed. It reports whether a row changed.
func (r TripRepository) Complete(ctx context.Context, q intdb.Querier, tripID string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE trips SET status=?, completed_at=?
		WHERE id=? AND status=?
	`, string(domain.TripCompleted), utils.FormatStamp(at), tripID, string(domain.TripActive))
	if err != nil {
		return false, fmt.Errorf("complete trip %s: %w", tripID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (models.Trip, error) {
	var (
		t         models.Trip
		status    string
		created   string
		completed sql.NullString
	)
	if err := row.Scan(&t.ID, &t.RouteID, &t.VehicleID, &t.Capacity, &status, &created, &completed, &t.NextTicketSeq); err != nil {
		return t, err
	}
	t.Status = domain.Status(status)

	var err error
	if t.CreatedAt, err = utils.ParseStamp(created); err != nil {
		return t, fmt.Errorf("trip %s created_at: %w", t.ID, err)
	}
	if t.CompletedAt, err = utils.ParseNullStamp(completed); err != nil {
		return t, fmt.Errorf("trip %s completed_at: %w", t.ID, err)
	}
	return t, nil
}
