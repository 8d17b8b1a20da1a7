package handlers

import (
	"net/http"
	"strconv"

	"conductor/internal/domain/models"

	"github.com/gin-gonic/gin"
)

type openTripRequest struct {
	RouteID   string `json:"route_id"`
	VehicleID string `json:"vehicle_id"`
}

// OpenTrip handles POST /api/trips.
func (h *Handler) OpenTrip(c *gin.Context) {
	var req openTripRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	trip, err := h.Ledger.OpenTrip(c.Request.Context(), req.RouteID, req.VehicleID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

func (h *Handler) ListTrips(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	trips, err := h.Ledger.ListTrips(c.Request.Context(), limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if trips == nil {
		trips = []models.Trip{}
	}
	c.JSON(http.StatusOK, gin.H{"trips": trips})
}

func (h *Handler) ActiveTrip(c *gin.Context) {
	trip, err := h.Ledger.ActiveTrip(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

func (h *Handler) GetTrip(c *gin.Context) {
	trip, err := h.Ledger.GetTrip(c.Request.Context(), tripParam(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// CloseTrip handles POST /api/trips/:id/close. Unsynced records block the close.
func (h *Handler) CloseTrip(c *gin.Context) {
	trip, err := h.Ledger.CloseTrip(c.Request.Context(), tripParam(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

func (h *Handler) SeatUsage(c *gin.Context) {
	usage, err := h.Ledger.SeatUsage(c.Request.Context(), tripParam(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *Handler) Breakdown(c *gin.Context) {
	b, err := h.Ledger.Breakdown(c.Request.Context(), tripParam(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetRoute(c *gin.Context) {
	route, err := h.Ledger.Route(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}
