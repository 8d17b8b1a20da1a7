package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "empty body", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", err.Error())
		return false
	}
	return true
}

func tripParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

func seqParam(c *gin.Context) (int, bool) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq <= 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "seq must be a positive integer", nil)
		return 0, false
	}
	return seq, true
}

func pdf(c *gin.Context, body []byte, filename string) {
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", body)
}
