package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	intdb "conductor/internal/db"
	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/utils"
)

// SyncQueueRepository persists the outbound sync queue.
type SyncQueueRepository struct{}

const syncColumns = `id, record_type, business_id, COALESCE(trip_id, ''), payload, status, created_at, sent_at, attempts, COALESCE(last_error, '')`

// Insert adds a PENDING entry unless one with the same business id exists in
// any status. It reports whether a row was written.
func (r SyncQueueRepository) Insert(ctx context.Context, q intdb.Querier, e models.SyncEntry) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE business_id=?`, e.BusinessID).Scan(&n); err != nil {
		return false, fmt.Errorf("check sync entry %s: %w", e.BusinessID, err)
	}
	if n > 0 {
		return false, nil
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO sync_queue (record_type, business_id, trip_id, payload, status, created_at, attempts)
		VALUES (?,?,?,?,?,?,0)
	`, string(e.RecordType), e.BusinessID, intdb.NullIfEmpty(e.TripID), string(e.Payload),
		string(domain.SyncPending), utils.FormatStamp(e.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("insert sync entry %s: %w", e.BusinessID, err)
	}
	return true, nil
}

// GetByBusinessID returns an entry; sql.ErrNoRows when missing.
func (r SyncQueueRepository) GetByBusinessID(ctx context.Context, q intdb.Querier, businessID string) (models.SyncEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+syncColumns+` FROM sync_queue WHERE business_id=? LIMIT 1`, businessID)
	return scanSyncEntry(row)
}

// ListPending returns PENDING entries oldest first, ties broken by insertion order.
func (r SyncQueueRepository) ListPending(ctx context.Context, q intdb.Querier) ([]models.SyncEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+syncColumns+`
		FROM sync_queue WHERE status=?
		ORDER BY created_at ASC, id ASC
	`, string(domain.SyncPending))
	if err != nil {
		return nil, fmt.Errorf("query pending sync entries: %w", err)
	}
	defer rows.Close()

	out := []models.SyncEntry{}
	for rows.Next() {
		e, err := scanSyncEntry(rows)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSent flips the given PENDING entries to SENT.
func (r SyncQueueRepository) MarkSent(ctx context.Context, q intdb.Querier, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+3)
	args = append(args, string(domain.SyncSent), utils.FormatStamp(at), string(domain.SyncPending))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE sync_queue SET status=?, sent_at=?
		WHERE status=? AND id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("mark sync entries sent: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecordFailure bumps the attempt counter and stores the last error; entries stay PENDING.
func (r SyncQueueRepository) RecordFailure(ctx context.Context, q intdb.Querier, ids []int64, reason string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, reason, string(domain.SyncPending))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := q.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, last_error=?
		WHERE status=? AND id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("record sync failure: %w", err)
	}
	return nil
}

// CountPendingByTrip counts unsynced entries belonging to the trip.
func (r SyncQueueRepository) CountPendingByTrip(ctx context.Context, q intdb.Querier, tripID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE trip_id=? AND status=?`,
		tripID, string(domain.SyncPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending sync entries: %w", err)
	}
	return n, nil
}

// DeleteSent removes SENT entries acknowledged before the cutoff. A zero
// cutoff removes every SENT entry.
func (r SyncQueueRepository) DeleteSent(ctx context.Context, q intdb.Querier, before time.Time) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if before.IsZero() {
		res, err = q.ExecContext(ctx, `DELETE FROM sync_queue WHERE status=?`, string(domain.SyncSent))
	} else {
		res, err = q.ExecContext(ctx, `DELETE FROM sync_queue WHERE status=? AND sent_at < ?`,
			string(domain.SyncSent), utils.FormatStamp(before))
	}
	if err != nil {
		return 0, fmt.Errorf("delete sent sync entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Counts tallies entries per record type and status.
func (r SyncQueueRepository) Counts(ctx context.Context, q intdb.Querier) ([]models.SyncCount, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT record_type, status, COUNT(*)
		FROM sync_queue
		GROUP BY record_type, status
		ORDER BY record_type, status
	`)
	if err != nil {
		return nil, fmt.Errorf("count sync entries: %w", err)
	}
	defer rows.Close()

	out := []models.SyncCount{}
	for rows.Next() {
		var c models.SyncCount
		var rt, st string
		if err := rows.Scan(&rt, &st, &c.Count); err != nil {
			return out, err
		}
		c.RecordType = domain.RecordType(rt)
		c.Status = domain.Status(st)
		out = append(out, c)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanSyncEntry(row rowScanner) (models.SyncEntry, error) {
	var (
		e       models.SyncEntry
		rt, st  string
		payload string
		created string
		sent    sql.NullString
	)
	if err := row.Scan(&e.ID, &rt, &e.BusinessID, &e.TripID, &payload, &st, &created, &sent, &e.Attempts, &e.LastError); err != nil {
		return e, err
	}
	e.RecordType = domain.RecordType(rt)
	e.Status = domain.Status(st)
	e.Payload = []byte(payload)

	var err error
	if e.CreatedAt, err = utils.ParseStamp(created); err != nil {
		return e, fmt.Errorf("sync entry %d created_at: %w", e.ID, err)
	}
	if e.SentAt, err = utils.ParseNullStamp(sent); err != nil {
		return e, fmt.Errorf("sync entry %d sent_at: %w", e.ID, err)
	}
	return e, nil
}
