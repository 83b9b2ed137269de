package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type reverseIncomeRequest struct {
	Description string `json:"description"`
}

func (s *Server) ReverseIncome(c *gin.Context) {
	incomeID, ok := parseID(c)
	if !ok {
		return
	}

	var req reverseIncomeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	result, err := s.paymentSvc.Reverse(c.Request.Context(), incomeID, req.Description)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ReverseOrderPayments(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	result, err := s.paymentSvc.ReverseAllForOrder(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Partial failure still returns the aggregate so callers can retry the
	// incomes that are left.
	status := http.StatusOK
	if !result.Success {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"data": result})
}
