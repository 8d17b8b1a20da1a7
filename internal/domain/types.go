package domain

// Status represents a lightweight state value.
type Status string

const (
	TripActive    Status = "ACTIVE"
	TripCompleted Status = "COMPLETED"

	SyncPending Status = "PENDING"
	SyncSent    Status = "SENT"
)

// FareClass is a pricing category.
type FareClass string

const (
	FareAdult   FareClass = "adult"
	FareChild   FareClass = "child"
	FareShort   FareClass = "short"
	FareLuggage FareClass = "luggage"
)

// FareClasses lists every known class in display order.
var FareClasses = []FareClass{FareAdult, FareChild, FareShort, FareLuggage}

// Valid reports whether c is a known fare class.
func (c FareClass) Valid() bool {
	switch c {
	case FareAdult, FareChild, FareShort, FareLuggage:
		return true
	default:
		return false
	}
}

// ConsumesSeat reports whether a ticket of this class occupies a seat.
func (c FareClass) ConsumesSeat() bool {
	return c != FareLuggage
}

// RecordType tags sync queue entries.
type RecordType string

const (
	RecordTicket             RecordType = "ticket"
	RecordTicketCancellation RecordType = "ticket-cancellation"
	RecordTicketDeparture    RecordType = "ticket-departure"
	RecordExpense            RecordType = "expense"
	RecordTripEvent          RecordType = "trip-event"
)

// RequestContext carries authenticated operator info when available.
type RequestContext struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}
