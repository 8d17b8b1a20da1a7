package handlers

import (
	"conductor/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// TicketReceiptPDF returns the printable receipt of one ticket (inline).
func (h *Handler) TicketReceiptPDF(c *gin.Context) {
	seq, ok := seqParam(c)
	if !ok {
		return
	}
	svc := h.Docs
	svc.RequestID = middleware.GetRequestID(c)
	body, filename, err := svc.GenerateReceipt(c.Request.Context(), tripParam(c), seq)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	pdf(c, body, filename)
}

// TripReportPDF returns the end-of-trip report (inline).
func (h *Handler) TripReportPDF(c *gin.Context) {
	svc := h.Docs
	svc.RequestID = middleware.GetRequestID(c)
	body, filename, err := svc.GenerateTripReport(c.Request.Context(), tripParam(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	pdf(c, body, filename)
}
