package repositories

import (
	"context"
	"fmt"

	intdb "conductor/internal/db"
	"conductor/internal/domain/models"
	"conductor/internal/utils"
)

type ExpenseRepository struct{}

func (r ExpenseRepository) Insert(ctx context.Context, q intdb.Querier, e models.Expense) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO expenses (id, trip_id, category, amount, note, created_at)
		VALUES (?,?,?,?,?,?)
	`, e.ID, e.TripID, e.Category, e.Amount, intdb.NullIfEmpty(e.Note), utils.FormatStamp(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert expense %s: %w", e.ID, err)
	}
	return nil
}

// ListByTrip returns expenses oldest first.
func (r ExpenseRepository) ListByTrip(ctx context.Context, q intdb.Querier, tripID string) ([]models.Expense, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, trip_id, category, amount, COALESCE(note, ''), created_at
		FROM expenses WHERE trip_id=? ORDER BY created_at ASC, id ASC
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		var created string
		if err := rows.Scan(&e.ID, &e.TripID, &e.Category, &e.Amount, &e.Note, &created); err != nil {
			return out, err
		}
		if e.CreatedAt, err = utils.ParseStamp(created); err != nil {
			return out, fmt.Errorf("expense %s created_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Total sums the trip's expenses.
func (r ExpenseRepository) Total(ctx context.Context, q intdb.Querier, tripID string) (int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE trip_id=?`, tripID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}
