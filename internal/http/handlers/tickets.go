package handlers

import (
	"net/http"

	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/services"

	"github.com/gin-gonic/gin"
)

type issueTicketRequest struct {
	DestinationStopID string           `json:"destination_stop_id"`
	FareClass         domain.FareClass `json:"fare_class"`
	OriginStopID      string           `json:"origin_stop_id"`
}

func (r issueTicketRequest) toIssue(tripID string) services.IssueRequest {
	return services.IssueRequest{
		TripID:            tripID,
		DestinationStopID: r.DestinationStopID,
		FareClass:         r.FareClass,
		OriginStopID:      r.OriginStopID,
	}
}

// IssueTicket handles POST /api/trips/:id/tickets.
func (h *Handler) IssueTicket(c *gin.Context) {
	var req issueTicketRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	t, err := h.Issuer.IssueTicket(c.Request.Context(), req.toIssue(tripParam(c)))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// QuoteTicket prices a sale without committing it.
func (h *Handler) QuoteTicket(c *gin.Context) {
	var req issueTicketRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	q, err := h.Issuer.Quote(c.Request.Context(), req.toIssue(tripParam(c)))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) ListTickets(c *gin.Context) {
	tickets, err := h.Ledger.ListTickets(c.Request.Context(), tripParam(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *Handler) GetTicket(c *gin.Context) {
	seq, ok := seqParam(c)
	if !ok {
		return
	}
	t, err := h.Ledger.GetTicket(c.Request.Context(), tripParam(c), seq)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type cancelTicketRequest struct {
	Reason string `json:"reason"`
}

// CancelTicket handles POST /api/trips/:id/tickets/:seq/cancel.
func (h *Handler) CancelTicket(c *gin.Context) {
	seq, ok := seqParam(c)
	if !ok {
		return
	}
	var req cancelTicketRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	t, err := h.Ledger.CancelTicket(c.Request.Context(), tripParam(c), seq, req.Reason)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) MarkDeparted(c *gin.Context) {
	seq, ok := seqParam(c)
	if !ok {
		return
	}
	t, err := h.Ledger.MarkDeparted(c.Request.Context(), tripParam(c), seq)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
