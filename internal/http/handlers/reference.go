package handlers

import (
	"net/http"

	"conductor/internal/domain/models"
	"conductor/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// ImportReference handles POST /api/reference; it replaces stops, routes,
// vehicles and prices.
func (h *Handler) ImportReference(c *gin.Context) {
	var data models.ReferenceData
	if !BindJSONOrError(c, &data) {
		return
	}
	svc := h.Reference
	svc.RequestID = middleware.GetRequestID(c)
	sum, err := svc.Import(c.Request.Context(), data)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) ListPrices(c *gin.Context) {
	prices, err := h.Prices.List(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if prices == nil {
		prices = []models.PriceEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}
