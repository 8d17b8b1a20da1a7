package models

import (
	"time"

	"conductor/internal/domain"
)

// Trip is the append-only unit of reporting.
type Trip struct {
	ID            string        `json:"id"`
	RouteID       string        `json:"route_id"`
	VehicleID     string        `json:"vehicle_id"`
	Capacity      int           `json:"capacity"`
	Status        domain.Status `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	NextTicketSeq int           `json:"next_ticket_seq"`
}

// Active reports whether the trip still accepts tickets.
func (t Trip) Active() bool {
	return t.Status == domain.TripActive
}

// SeatUsage is the seat/capacity view of a trip.
type SeatUsage struct {
	TripID         string `json:"trip_id"`
	Capacity       int    `json:"capacity"`
	SoldPassengers int    `json:"sold_passengers"`
	Luggage        int    `json:"luggage"`
	Departed       int    `json:"departed"`
	RemainingSeats int    `json:"remaining_seats"`
}

// TripEvent is the payload uploaded when a trip opens or closes.
type TripEvent struct {
	TripID    string        `json:"trip_id"`
	RouteID   string        `json:"route_id"`
	VehicleID string        `json:"vehicle_id"`
	Event     string        `json:"event"`
	Status    domain.Status `json:"status"`
	At        time.Time     `json:"at"`
	DeviceID  string        `json:"device_id,omitempty"`
}

// ClassBreakdown aggregates non-cancelled tickets of one fare class.
type ClassBreakdown struct {
	FareClass domain.FareClass `json:"fare_class"`
	Count     int              `json:"count"`
	Revenue   int64            `json:"revenue"`
}

// TripBreakdown is the reporting aggregate consumed by printers and reports.
type TripBreakdown struct {
	TripID       string           `json:"trip_id"`
	Classes      []ClassBreakdown `json:"classes"`
	Issued       int              `json:"issued"`
	Cancelled    int              `json:"cancelled"`
	Revenue      int64            `json:"revenue"`
	ExpenseTotal int64            `json:"expense_total"`
	Net          int64            `json:"net"`
}
