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

type TicketRepository struct{}

const ticketColumns = `trip_id, seq, origin_stop_id, destination_stop_id, fare_class, amount, issued_at, cancelled_at, cancel_reason, departed_at`

// Insert stores an issued ticket. The (trip_id, seq) key rejects reuse.
func (r TicketRepository) Insert(ctx context.Context, q intdb.Querier, t models.Ticket) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tickets (trip_id, seq, origin_stop_id, destination_stop_id, fare_class, amount, issued_at)
		VALUES (?,?,?,?,?,?,?)
	`, t.TripID, t.Seq, t.OriginStopID, t.DestinationStopID, string(t.FareClass), t.Amount, utils.FormatStamp(t.IssuedAt))
	if err != nil {
		return fmt.Errorf("insert ticket %s: %w", t.BusinessID(), err)
	}
	return nil
}

// Get returns one ticket; sql.ErrNoRows when missing.
func (r TicketRepository) Get(ctx context.Context, q intdb.Querier, tripID string, seq int) (models.Ticket, error) {
	row := q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE trip_id=? AND seq=? LIMIT 1`, tripID, seq)
	return scanTicket(row)
}

// Exists reports whether the sequence number is already used.
func (r TicketRepository) Exists(ctx context.Context, q intdb.Querier, tripID string, seq int) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE trip_id=? AND seq=?`, tripID, seq).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByTrip returns the trip's tickets in sequence order.
func (r TicketRepository) ListByTrip(ctx context.Context, q intdb.Querier, tripID string) ([]models.Ticket, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE trip_id=? ORDER BY seq ASC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	out := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Cancel sets the cancellation fields of a not-yet-cancelled ticket.
func (r TicketRepository) Cancel(ctx context.Context, q intdb.Querier, tripID string, seq int, reason string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE tickets SET cancelled_at=?, cancel_reason=?
		WHERE trip_id=? AND seq=? AND cancelled_at IS NULL
	`, utils.FormatStamp(at), reason, tripID, seq)
	if err != nil {
		return false, fmt.Errorf("cancel ticket: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkDeparted records that the passenger alighted. Already-departed tickets keep their first mark.
func (r TicketRepository) MarkDeparted(ctx context.Context, q intdb.Querier, tripID string, seq int, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE tickets SET departed_at=?
		WHERE trip_id=? AND seq=? AND departed_at IS NULL
	`, utils.FormatStamp(at), tripID, seq)
	if err != nil {
		return fmt.Errorf("mark ticket departed: %w", err)
	}
	return nil
}

// SeatCounts returns non-cancelled passenger, luggage and departed counts.
func (r TicketRepository) SeatCounts(ctx context.Context, q intdb.Querier, tripID string) (sold, luggage, departed int, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN fare_class<>? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN fare_class=? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN fare_class<>? AND departed_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM tickets
		WHERE trip_id=? AND cancelled_at IS NULL
	`, string(domain.FareLuggage), string(domain.FareLuggage), string(domain.FareLuggage), tripID).Scan(&sold, &luggage, &departed)
	if err != nil {
		err = fmt.Errorf("count seats: %w", err)
	}
	return sold, luggage, departed, err
}

// Breakdown aggregates non-cancelled tickets per fare class and counts cancellations.
func (r TicketRepository) Breakdown(ctx context.Context, q intdb.Querier, tripID string) ([]models.ClassBreakdown, int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT fare_class, COUNT(*), COALESCE(SUM(amount), 0)
		FROM tickets
		WHERE trip_id=? AND cancelled_at IS NULL
		GROUP BY fare_class
	`, tripID)
	if err != nil {
		return nil, 0, fmt.Errorf("query breakdown: %w", err)
	}
	defer rows.Close()

	out := []models.ClassBreakdown{}
	for rows.Next() {
		var b models.ClassBreakdown
		var class string
		if err := rows.Scan(&class, &b.Count, &b.Revenue); err != nil {
			return out, 0, err
		}
		b.FareClass = domain.FareClass(class)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return out, 0, err
	}

	var cancelled int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE trip_id=? AND cancelled_at IS NOT NULL`, tripID).Scan(&cancelled); err != nil {
		return out, 0, fmt.Errorf("count cancelled: %w", err)
	}
	return out, cancelled, nil
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var (
		t         models.Ticket
		class     string
		issued    string
		cancelled sql.NullString
		reason    sql.NullString
		departed  sql.NullString
	)
	if err := row.Scan(&t.TripID, &t.Seq, &t.OriginStopID, &t.DestinationStopID, &class, &t.Amount,
		&issued, &cancelled, &reason, &departed); err != nil {
		return t, err
	}
	t.FareClass = domain.FareClass(class)
	t.CancelReason = reason.String

	var err error
	if t.IssuedAt, err = utils.ParseStamp(issued); err != nil {
		return t, fmt.Errorf("ticket %s issued_at: %w", t.BusinessID(), err)
	}
	if t.CancelledAt, err = utils.ParseNullStamp(cancelled); err != nil {
		return t, fmt.Errorf("ticket %s cancelled_at: %w", t.BusinessID(), err)
	}
	if t.DepartedAt, err = utils.ParseNullStamp(departed); err != nil {
		return t, fmt.Errorf("ticket %s departed_at: %w", t.BusinessID(), err)
	}
	return t, nil
}
