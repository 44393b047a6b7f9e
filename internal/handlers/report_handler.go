package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pharmaspot/internal/apperr"
)

// defaultReportSpan is used when the sales report has no start date.
const defaultReportSpan = 30 * 24 * time.Hour

// --- GET: /api/reports/sales?start&end ---
// Revenue, order count and best sellers of completed sales. Without
// dates it covers the last 30 days.
func (h *Handler) SalesReport(c *gin.Context) {
	end := h.now()
	if v := c.Query("end"); v != "" {
		t, err := parseTime(v, true)
		if err != nil {
			fail(c, apperr.Validation("end must be a date or RFC 3339 timestamp"))
			return
		}
		end = t
	}
	start := end.Add(-defaultReportSpan)
	if v := c.Query("start"); v != "" {
		t, err := parseTime(v, false)
		if err != nil {
			fail(c, apperr.Validation("start must be a date or RFC 3339 timestamp"))
			return
		}
		start = t
	}
	if end.Before(start) {
		fail(c, apperr.Validation("end must not be before start"))
		return
	}

	report, err := h.Store.GetSalesReport(c.Request.Context(), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- GET: /api/reports/valuation ---
// Value of the stock on hand at cost price, grouped by category.
func (h *Handler) StockValuation(c *gin.Context) {
	v, err := h.Store.GetStockValuation(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

const maxAuditLimit = 500

// --- GET: /api/audit?limit ---
func (h *Handler) AuditLog(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(c, apperr.Validation("limit must be a positive number"))
			return
		}
		limit = min(n, maxAuditLimit)
	}
	entries, err := h.Store.ListAudit(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
