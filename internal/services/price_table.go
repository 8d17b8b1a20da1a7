package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intdb "conductor/internal/db"
	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/repositories"
)

// PriceTable looks up directional fares. A missing entry is an error, never zero.
type PriceTable struct {
	Store *intdb.Store
	Repo  repositories.PriceRepository
}

func (p PriceTable) Lookup(ctx context.Context, origin, destination string, class domain.FareClass) (int64, error) {
	if !class.Valid() {
		return 0, domain.ValidationError{Field: "fare_class", Msg: fmt.Sprintf("unknown fare class %q", class)}
	}
	amount, err := p.Repo.Lookup(ctx, p.Store.Conn(), origin, destination, class)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFoundError{
			Resource: fmt.Sprintf("fare %s->%s (%s)", origin, destination, class),
			Err:      domain.ErrFareNotFound,
		}
	}
	if err != nil {
		return 0, domain.InternalError{Msg: "price lookup", Err: err}
	}
	return amount, nil
}

func (p PriceTable) List(ctx context.Context) ([]models.PriceEntry, error) {
	entries, err := p.Repo.ListAll(ctx, p.Store.Conn())
	if err != nil {
		return nil, domain.InternalError{Err: err}
	}
	return entries, nil
}
