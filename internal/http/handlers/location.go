package handlers

import (
	"net/http"

	"conductor/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// locationRequest with no lat/lon is a cycle without a fix.
type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// PushLocation handles POST /api/location from the UI's GPS.
func (h *Handler) PushLocation(c *gin.Context) {
	var req locationRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	var coord *models.Coordinate
	if req.Lat != nil && req.Lon != nil {
		coord = &models.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	}
	cur, ok := h.Location.Update(coord, "device")
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "no route is being tracked", nil)
		return
	}
	c.JSON(http.StatusOK, cur)
}

func (h *Handler) CurrentLocation(c *gin.Context) {
	cur, ok := h.Location.Current()
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "no route is being tracked", nil)
		return
	}
	c.JSON(http.StatusOK, cur)
}
