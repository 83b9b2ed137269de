package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type runJobRequest struct {
	Action string `json:"action" binding:"required"`
	DryRun bool   `json:"dry_run"`
	Force  bool   `json:"force"`
}

// RunJob triggers one batch job on demand. The scheduled loop runs the same
// services; this endpoint exists for operators who cannot wait for the next
// tick or need dry-run/force semantics.
func (s *Server) RunJob(c *gin.Context) {
	var req runJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()

	var (
		result any
		err    error
	)
	switch req.Action {
	case "generate_expenses":
		result, err = s.recurringSvc.GenerateExpenses(ctx)
	case "generate_policy_payments":
		result, err = s.recurringSvc.GeneratePolicyPayments(ctx)
	case "generate_payroll":
		result, err = s.recurringSvc.GeneratePayroll(ctx, req.Force)
	case "normalize_due_dates":
		result, err = s.policySvc.NormalizeDueDates(ctx, req.DryRun)
	case "rebuild_collections":
		result, err = s.collectionsSvc.Rebuild(ctx)
	case "activate_orders":
		result, err = s.orderSvc.ActivateScheduledOrders(ctx)
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err != nil {
		s.log.Warn("manual job run failed", zap.String("action", req.Action), zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "action": req.Action, "data": result})
}
