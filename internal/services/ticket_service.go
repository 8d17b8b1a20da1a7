package services

import (
	"context"
	"fmt"
	"strings"

	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/utils"
)

type IssueMetrics interface {
	IssueRejectedInc(code string)
}

// CurrentStopSource yields the latest resolved stop for a route.
type CurrentStopSource interface {
	CurrentStop(routeID string) (CurrentStop, bool)
}

// IssueRequest is what the conductor enters at the point of sale.
type IssueRequest struct {
	TripID            string           `json:"trip_id"`
	DestinationStopID string           `json:"destination_stop_id"`
	FareClass         domain.FareClass `json:"fare_class"`
	OriginStopID      string           `json:"origin_stop_id,omitempty"`
}

// Quote is the priced itinerary before commit.
type Quote struct {
	TripID            string           `json:"trip_id"`
	OriginStopID      string           `json:"origin_stop_id"`
	OriginSource      string           `json:"origin_source"`
	DestinationStopID string           `json:"destination_stop_id"`
	FareClass         domain.FareClass `json:"fare_class"`
	Amount            int64            `json:"amount"`
	RemainingSeats    int              `json:"remaining_seats"`
}

// TicketService validates and prices a sale, then commits it through the ledger.
type TicketService struct {
	Ledger   *LedgerService
	Prices   PriceTable
	Location CurrentStopSource
	Metrics  IssueMetrics
}

// IssueTicket resolves the origin, checks the itinerary and seats, prices the
// fare and commits the ticket. Every rejection happens before any write.
func (s TicketService) IssueTicket(ctx context.Context, req IssueRequest) (models.Ticket, error) {
	q, err := s.Quote(ctx, req)
	if err != nil {
		s.rejected(err)
		return models.Ticket{}, err
	}

	t, err := s.Ledger.CommitTicket(ctx, models.TicketDraft{
		TripID:            q.TripID,
		OriginStopID:      q.OriginStopID,
		DestinationStopID: q.DestinationStopID,
		FareClass:         q.FareClass,
		Amount:            q.Amount,
	})
	if err != nil {
		s.rejected(err)
		return models.Ticket{}, err
	}
	utils.LogEvent("", "issuer", "issue_ticket", fmt.Sprintf("ticket=%s origin=%s(%s)", t.BusinessID(), q.OriginStopID, q.OriginSource))
	return t, nil
}

// Quote runs the validation and pricing steps of issuance without committing.
func (s TicketService) Quote(ctx context.Context, req IssueRequest) (Quote, error) {
	req.TripID = strings.TrimSpace(req.TripID)
	req.DestinationStopID = strings.TrimSpace(req.DestinationStopID)
	req.OriginStopID = strings.TrimSpace(req.OriginStopID)
	req.FareClass = domain.FareClass(strings.ToLower(strings.TrimSpace(string(req.FareClass))))

	if req.DestinationStopID == "" {
		return Quote{}, domain.ValidationError{Field: "destination_stop_id", Msg: "required"}
	}
	if !req.FareClass.Valid() {
		return Quote{}, domain.ValidationError{Field: "fare_class", Msg: fmt.Sprintf("unknown fare class %q", req.FareClass)}
	}

	trip, err := s.Ledger.GetTrip(ctx, req.TripID)
	if err != nil {
		return Quote{}, err
	}
	if !trip.Active() {
		return Quote{}, domain.ConflictError{Resource: "trip", Msg: fmt.Sprintf("trip %s is completed", trip.ID), Err: domain.ErrAlreadyCompleted}
	}
	route, err := s.Ledger.Route(ctx, trip.RouteID)
	if err != nil {
		return Quote{}, err
	}

	origin, source, err := s.resolveOrigin(route, req.OriginStopID)
	if err != nil {
		return Quote{}, err
	}
	if req.DestinationStopID == origin {
		return Quote{}, domain.ValidationError{Field: "destination_stop_id", Msg: "destination equals origin", Err: domain.ErrInvalidItinerary}
	}
	if route.Position(req.DestinationStopID) < 0 {
		return Quote{}, domain.ValidationError{
			Field: "destination_stop_id",
			Msg:   fmt.Sprintf("stop %s is not on route %s", req.DestinationStopID, route.ID),
			Err:   domain.ErrInvalidItinerary,
		}
	}

	usage, err := s.Ledger.SeatUsage(ctx, trip.ID)
	if err != nil {
		return Quote{}, err
	}
	if req.FareClass.ConsumesSeat() && usage.RemainingSeats <= 0 {
		return Quote{}, capacityExceeded(usage)
	}

	amount, err := s.Prices.Lookup(ctx, origin, req.DestinationStopID, req.FareClass)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		TripID:            trip.ID,
		OriginStopID:      origin,
		OriginSource:      source,
		DestinationStopID: req.DestinationStopID,
		FareClass:         req.FareClass,
		Amount:            amount,
		RemainingSeats:    usage.RemainingSeats,
	}, nil
}

// resolveOrigin prefers the manual override, then the located stop.
func (s TicketService) resolveOrigin(route models.Route, override string) (string, string, error) {
	if override != "" {
		if route.Position(override) < 0 {
			return "", "", domain.ValidationError{
				Field: "origin_stop_id",
				Msg:   fmt.Sprintf("stop %s is not on route %s", override, route.ID),
				Err:   domain.ErrInvalidItinerary,
			}
		}
		return override, "manual", nil
	}
	if s.Location != nil {
		if cur, ok := s.Location.CurrentStop(route.ID); ok && cur.Resolution.Known {
			source := "last_known"
			if cur.Resolution.Live {
				source = "gps"
			}
			return cur.Resolution.Stop.ID, source, nil
		}
	}
	return "", "", domain.ValidationError{Field: "origin_stop_id", Msg: "no manual origin and no located stop", Err: domain.ErrOriginUnresolved}
}

func (s TicketService) rejected(err error) {
	if s.Metrics != nil && !domain.IsInternal(err) {
		s.Metrics.IssueRejectedInc(domain.Code(err))
	}
}
