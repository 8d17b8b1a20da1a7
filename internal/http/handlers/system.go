package handlers

import (
	"net/http"
	"sync"

	"conductor/internal/domain"

	"github.com/gin-gonic/gin"
)

var (
	routerMu sync.RWMutex
	router   *gin.Engine
)

// SetRouter stores the active gin engine for later inspection (e.g., /api/routes).
func SetRouter(r *gin.Engine) {
	routerMu.Lock()
	defer routerMu.Unlock()
	router = r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "conductor running"})
}

func (h *Handler) DBCheck(c *gin.Context) {
	if h.Store == nil {
		respondError(c, http.StatusInternalServerError, "internal_error", "database not connected", nil)
		return
	}
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		RespondDomainError(c, domain.InternalError{Msg: "ping database", Err: err})
		return
	}
	st, err := h.Sync.Status(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "database OK", "driver": h.Store.Driver(), "sync_pending": st.Pending})
}

func (h *Handler) APIRoutes(c *gin.Context) {
	routerMu.RLock()
	r := router
	routerMu.RUnlock()
	if r == nil {
		respondError(c, http.StatusServiceUnavailable, "unavailable", "router not ready", nil)
		return
	}

	routes := r.Routes()
	out := make([]gin.H, 0, len(routes))
	for _, rt := range routes {
		out = append(out, gin.H{"method": rt.Method, "path": rt.Path})
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}
