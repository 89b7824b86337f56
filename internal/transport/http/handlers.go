package reconhttp

import (
	"errors"
	"net/http"
	"strconv"

	"parity/internal/config"
	"parity/internal/reconcile"
	"parity/internal/store/history"
	"parity/internal/venue"

	"github.com/gin-gonic/gin"
)

// apiSource tags the envelope metadata on control-surface responses the
// same way a venue name tags adapter responses.
const apiSource = "parity"

// Control-surface-only codes, alongside the adapter taxonomy.
const (
	codeRunInProgress      venue.ErrorCode = "RUN_IN_PROGRESS"
	codeHistoryUnavailable venue.ErrorCode = "HISTORY_UNAVAILABLE"
)

type handlers struct {
	engine  *reconcile.Engine
	history *history.Store
}

func (h *handlers) register(g *gin.RouterGroup) {
	g.GET("/status", h.status)
	g.POST("/run", h.triggerRun)
	g.GET("/history", h.listHistory)
	g.POST("/orders/:id", h.reconcileOrder)
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, venue.OK(apiSource, data))
}

func fail(c *gin.Context, status int, code venue.ErrorCode, msg string) {
	c.JSON(status, venue.Fail(apiSource, &venue.Error{Code: code, Venue: apiSource, Message: msg}))
}

// failFromError maps taxonomy errors onto HTTP statuses; anything without a
// taxonomy code is an internal reconciliation failure.
func failFromError(c *gin.Context, err error) {
	var status int
	switch venue.CodeOf(err) {
	case venue.CodeNotFound:
		status = http.StatusNotFound
	case venue.CodeValidation:
		status = http.StatusBadRequest
	case venue.CodeConnection, venue.CodeAuthentication, venue.CodeRateLimit:
		status = http.StatusBadGateway
	case "":
		err = venue.NewReconciliationError(apiSource, err.Error(), err)
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}
	c.JSON(status, venue.Fail(apiSource, err))
}

func (h *handlers) status(c *gin.Context) {
	ok(c, gin.H{
		"running": h.engine.Running(),
		"metrics": h.engine.Metrics(),
	})
}

func (h *handlers) triggerRun(c *gin.Context) {
	summary, err := h.engine.Run(c.Request.Context(), "manual")
	if err != nil {
		if errors.Is(err, reconcile.ErrRunInProgress) {
			fail(c, http.StatusConflict, codeRunInProgress, err.Error())
			return
		}
		failFromError(c, err)
		return
	}
	ok(c, summary)
}

func (h *handlers) listHistory(c *gin.Context) {
	mode := c.Query("mode")
	if !config.IsValidMode(mode) {
		fail(c, http.StatusBadRequest, venue.CodeValidation, "mode must be paper or live")
		return
	}
	if h.history == nil {
		fail(c, http.StatusServiceUnavailable, codeHistoryUnavailable, "run history is not configured")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := h.history.List(c.Request.Context(), mode, limit, offset)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, gin.H{"mode": mode, "runs": records, "count": len(records)})
}

func (h *handlers) reconcileOrder(c *gin.Context) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, venue.CodeValidation, "request body must be JSON with a mode field")
		return
	}
	if !config.IsValidMode(body.Mode) {
		fail(c, http.StatusBadRequest, venue.CodeValidation, "mode must be paper or live")
		return
	}
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		fail(c, http.StatusBadRequest, venue.CodeValidation, "order id must be a positive integer")
		return
	}
	result, err := h.engine.ReconcileOrderManually(c.Request.Context(), body.Mode, orderID)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, result)
}
