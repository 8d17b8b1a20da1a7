package handlers

import (
	"net/http"
	"strconv"
	"time"

	"conductor/internal/http/middleware"
	"conductor/internal/utils"

	"github.com/gin-gonic/gin"
)

func (h *Handler) SyncStatus(c *gin.Context) {
	st, err := h.Sync.Status(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// DrainSync handles POST /api/sync/drain. Upload failures are reported in the
// body and never fail the request.
func (h *Handler) DrainSync(c *gin.Context) {
	report, err := h.Sync.Drain(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	utils.LogEvent(middleware.GetRequestID(c), "sync", "drain",
		"sent="+strconv.Itoa(report.Sent)+" failed="+strconv.Itoa(report.Failed))
	c.JSON(http.StatusOK, report)
}

// PurgeSync deletes SENT entries older than older_than_hours (0 = all).
func (h *Handler) PurgeSync(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("older_than_hours", "0"))
	if err != nil || hours < 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "older_than_hours must be a non-negative integer", nil)
		return
	}
	n, err := h.Sync.PurgeSent(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": n})
}
