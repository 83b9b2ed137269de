package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetOrderBalance(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	summary, err := s.ledgerSvc.OrderSummary(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) GetOrderCashback(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	summary, err := s.ledgerSvc.CashbackSummary(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func parseID(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return id, true
}
