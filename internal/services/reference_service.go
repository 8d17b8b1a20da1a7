package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	intdb "conductor/internal/db"
	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/repositories"
	"conductor/internal/utils"
)

// ReferenceService loads stops, routes, vehicles and prices. Reference data is
// replaced wholesale and never while a trip is active.
type ReferenceService struct {
	Store     *intdb.Store
	Routes    repositories.RouteRepository
	Prices    repositories.PriceRepository
	Trips     repositories.TripRepository
	RequestID string
}

// ImportSummary counts what was loaded.
type ImportSummary struct {
	Stops    int `json:"stops"`
	Routes   int `json:"routes"`
	Vehicles int `json:"vehicles"`
	Prices   int `json:"prices"`
}

func (s ReferenceService) ImportFile(ctx context.Context, path string) (ImportSummary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("read reference file: %w", err)
	}
	var data models.ReferenceData
	if err := json.Unmarshal(raw, &data); err != nil {
		return ImportSummary{}, domain.ValidationError{Field: "reference", Msg: "invalid JSON document", Err: err}
	}
	return s.Import(ctx, data)
}

func (s ReferenceService) Import(ctx context.Context, data models.ReferenceData) (ImportSummary, error) {
	if err := validateReference(data); err != nil {
		return ImportSummary{}, err
	}

	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if id, ok, err := s.Trips.ActiveTripID(ctx, tx); err != nil {
			return domain.InternalError{Err: err}
		} else if ok {
			return domain.ConflictError{Resource: "reference", Msg: fmt.Sprintf("trip %s is active", id), Err: domain.ErrActiveTripExists}
		}
		if err := s.Routes.ReplaceAll(ctx, tx, data); err != nil {
			return domain.InternalError{Msg: "replace route graph", Err: err}
		}
		if err := s.Prices.ReplaceAll(ctx, tx, data.Prices); err != nil {
			return domain.InternalError{Msg: "replace price table", Err: err}
		}
		return nil
	})
	if err != nil {
		return ImportSummary{}, err
	}

	sum := ImportSummary{Stops: len(data.Stops), Routes: len(data.Routes), Vehicles: len(data.Vehicles), Prices: len(data.Prices)}
	utils.LogEvent(s.RequestID, "reference", "import",
		fmt.Sprintf("stops=%d routes=%d vehicles=%d prices=%d", sum.Stops, sum.Routes, sum.Vehicles, sum.Prices))
	return sum, nil
}

func validateReference(d models.ReferenceData) error {
	stops := map[string]bool{}
	for i, st := range d.Stops {
		id := strings.TrimSpace(st.ID)
		if id == "" {
			return domain.ValidationError{Field: fmt.Sprintf("stops[%d].id", i), Msg: "required"}
		}
		if stops[id] {
			return domain.ValidationError{Field: fmt.Sprintf("stops[%d].id", i), Msg: "duplicate stop " + id}
		}
		if err := utils.ValidateCoordinate(st.Lat, st.Lon); err != nil {
			return domain.ValidationError{Field: fmt.Sprintf("stops[%d]", i), Msg: err.Error()}
		}
		stops[id] = true
	}

	routes := map[string]bool{}
	for i, rt := range d.Routes {
		id := strings.TrimSpace(rt.ID)
		if id == "" || routes[id] {
			return domain.ValidationError{Field: fmt.Sprintf("routes[%d].id", i), Msg: "missing or duplicate route id"}
		}
		if len(rt.StopIDs) < 2 {
			return domain.ValidationError{Field: fmt.Sprintf("routes[%d].stop_ids", i), Msg: "a route needs at least two stops"}
		}
		seen := map[string]bool{}
		for _, sid := range rt.StopIDs {
			sid = strings.TrimSpace(sid)
			if !stops[sid] {
				return domain.ValidationError{Field: fmt.Sprintf("routes[%d].stop_ids", i), Msg: "unknown stop " + sid}
			}
			if seen[sid] {
				return domain.ValidationError{Field: fmt.Sprintf("routes[%d].stop_ids", i), Msg: "stop listed twice: " + sid}
			}
			seen[sid] = true
		}
		routes[id] = true
	}

	vehicles := map[string]bool{}
	for i, v := range d.Vehicles {
		id := strings.TrimSpace(v.ID)
		if id == "" || vehicles[id] {
			return domain.ValidationError{Field: fmt.Sprintf("vehicles[%d].id", i), Msg: "missing or duplicate vehicle id"}
		}
		if v.Capacity <= 0 {
			return domain.ValidationError{Field: fmt.Sprintf("vehicles[%d].capacity", i), Msg: "must be positive"}
		}
		vehicles[id] = true
	}

	prices := map[string]bool{}
	for i, p := range d.Prices {
		o, dst := strings.TrimSpace(p.OriginStopID), strings.TrimSpace(p.DestinationStopID)
		field := fmt.Sprintf("prices[%d]", i)
		if !stops[o] || !stops[dst] {
			return domain.ValidationError{Field: field, Msg: "unknown stop"}
		}
		if o == dst {
			return domain.ValidationError{Field: field, Msg: "origin equals destination"}
		}
		if !p.FareClass.Valid() {
			return domain.ValidationError{Field: field, Msg: fmt.Sprintf("unknown fare class %q", p.FareClass)}
		}
		if p.Amount < 0 {
			return domain.ValidationError{Field: field, Msg: "amount must not be negative"}
		}
		key := o + "|" + dst + "|" + string(p.FareClass)
		if prices[key] {
			return domain.ValidationError{Field: field, Msg: "duplicate price entry"}
		}
		prices[key] = true
	}
	return nil
}
