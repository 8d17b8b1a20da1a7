package handlers

import (
	"net/http"

	"conductor/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// RecordExpense handles POST /api/trips/:id/expenses.
func (h *Handler) RecordExpense(c *gin.Context) {
	var in models.ExpenseInput
	if !BindJSONOrError(c, &in) {
		return
	}
	e, err := h.Ledger.RecordExpense(c.Request.Context(), tripParam(c), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListExpenses(c *gin.Context) {
	list, err := h.Ledger.ListExpenses(c.Request.Context(), tripParam(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if list == nil {
		list = []models.Expense{}
	}
	c.JSON(http.StatusOK, gin.H{"expenses": list})
}
