package models

import (
	"fmt"
	"time"

	"conductor/internal/domain"
)

// Ticket is immutable once committed except for cancellation and departure marks.
type Ticket struct {
	TripID            string           `json:"trip_id"`
	Seq               int              `json:"seq"`
	OriginStopID      string           `json:"origin_stop_id"`
	DestinationStopID string           `json:"destination_stop_id"`
	FareClass         domain.FareClass `json:"fare_class"`
	Amount            int64            `json:"amount"`
	IssuedAt          time.Time        `json:"issued_at"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty"`
	CancelReason      string           `json:"cancel_reason,omitempty"`
	DepartedAt        *time.Time       `json:"departed_at,omitempty"`
}

// Cancelled reports whether the ticket was voided.
func (t Ticket) Cancelled() bool {
	return t.CancelledAt != nil
}

// BusinessID identifies the ticket on the remote side.
func (t Ticket) BusinessID() string {
	return TicketBusinessID(t.TripID, t.Seq)
}

// TicketBusinessID builds the dedup key for a ticket upload.
func TicketBusinessID(tripID string, seq int) string {
	return fmt.Sprintf("%s#%d", tripID, seq)
}

// TicketDraft is a validated ticket waiting for its sequence number.
type TicketDraft struct {
	TripID            string
	OriginStopID      string
	DestinationStopID string
	FareClass         domain.FareClass
	Amount            int64
}

// TicketCancellation is the payload uploaded when a ticket is voided.
type TicketCancellation struct {
	TripID      string    `json:"trip_id"`
	Seq         int       `json:"seq"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// TicketDeparture is the payload uploaded when a passenger alights.
type TicketDeparture struct {
	TripID     string    `json:"trip_id"`
	Seq        int       `json:"seq"`
	DepartedAt time.Time `json:"departed_at"`
}
