package repositories

import (
	"context"
	"fmt"
	"strings"

	intdb "conductor/internal/db"
	"conductor/internal/domain"
	"conductor/internal/domain/models"
)

type PriceRepository struct{}

// Lookup returns the amount for a directional (origin, destination, class) entry.
// A missing entry is reported as sql.ErrNoRows.
func (r PriceRepository) Lookup(ctx context.Context, q intdb.Querier, origin, destination string, class domain.FareClass) (int64, error) {
	var amount int64
	err := q.QueryRowContext(ctx, `
		SELECT amount FROM price_entries
		WHERE origin_stop_id=? AND destination_stop_id=? AND fare_class=?
		LIMIT 1
	`, strings.TrimSpace(origin), strings.TrimSpace(destination), string(class)).Scan(&amount)
	return amount, err
}

// ListAll returns every price entry.
func (r PriceRepository) ListAll(ctx context.Context, q intdb.Querier) ([]models.PriceEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT origin_stop_id, destination_stop_id, fare_class, amount
		FROM price_entries
		ORDER BY origin_stop_id, destination_stop_id, fare_class
	`)
	if err != nil {
		return nil, fmt.Errorf("query price entries: %w", err)
	}
	defer rows.Close()

	out := []models.PriceEntry{}
	for rows.Next() {
		var e models.PriceEntry
		var class string
		if err := rows.Scan(&e.OriginStopID, &e.DestinationStopID, &class, &e.Amount); err != nil {
			return out, err
		}
		e.FareClass = domain.FareClass(class)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReplaceAll swaps the whole price table.
func (r PriceRepository) ReplaceAll(ctx context.Context, q intdb.Querier, entries []models.PriceEntry) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM price_entries`); err != nil {
		return fmt.Errorf("clear price entries: %w", err)
	}
	for _, e := range entries {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO price_entries (origin_stop_id, destination_stop_id, fare_class, amount)
			VALUES (?,?,?,?)
		`, strings.TrimSpace(e.OriginStopID), strings.TrimSpace(e.DestinationStopID), string(e.FareClass), e.Amount); err != nil {
			return fmt.Errorf("insert price %s->%s/%s: %w", e.OriginStopID, e.DestinationStopID, e.FareClass, err)
		}
	}
	return nil
}
