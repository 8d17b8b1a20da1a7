package handlers

import (
	intdb "conductor/internal/db"
	"conductor/internal/services"
)

// Handler carries the services behind the device API.
type Handler struct {
	Store     *intdb.Store
	Ledger    *services.LedgerService
	Issuer    services.TicketService
	Prices    services.PriceTable
	Sync      *services.SyncService
	Location  *services.LocationService
	Reference services.ReferenceService
	Docs      services.DocsService
}
