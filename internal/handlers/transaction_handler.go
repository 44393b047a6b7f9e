package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/database"
	"pharmaspot/internal/middleware"
	"pharmaspot/internal/models"
)

// --- POST: /api/transactions/new ---
// Records a sale. A fully paid sale takes its items out of stock.
func (h *Handler) CreateTransaction(c *gin.Context) {
	var t models.Transaction
	if !bindJSON(c, &t, "Invalid transaction payload") {
		return
	}
	if id := middleware.CurrentIdentity(c); t.UserID == 0 && id != nil {
		t.UserID = id.UserID
	}
	if err := h.Ledger.Create(c.Request.Context(), &t); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction saved", "id": t.ID})
}

// --- PUT: /api/transactions/new ---
func (h *Handler) UpdateTransaction(c *gin.Context) {
	var t models.Transaction
	if !bindJSON(c, &t, "Invalid transaction payload") {
		return
	}
	if err := h.Ledger.Update(c.Request.Context(), &t); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Transaction updated")
}

type DeleteTransactionRequest struct {
	OrderID flexString `json:"orderId"`
}

// --- POST: /api/transactions/delete ---
func (h *Handler) DeleteTransaction(c *gin.Context) {
	var req DeleteTransactionRequest
	if !bindJSON(c, &req, "Invalid request body") {
		return
	}
	if req.OrderID == "" {
		fail(c, apperr.Validation("orderId is required"))
		return
	}
	if err := h.Ledger.Delete(c.Request.Context(), string(req.OrderID)); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Transaction deleted")
}

// --- GET: /api/transactions/all ---
func (h *Handler) ListTransactions(c *gin.Context) {
	txns, err := h.Ledger.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// --- GET: /api/transactions/on-hold ---
func (h *Handler) OnHold(c *gin.Context) {
	txns, err := h.Ledger.OnHold(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// --- GET: /api/transactions/customer-orders ---
func (h *Handler) CustomerOrders(c *gin.Context) {
	txns, err := h.Ledger.CustomerOrders(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// --- GET: /api/transactions/by-date?start&end&user&till&status ---
func (h *Handler) TransactionsByDate(c *gin.Context) {
	start, err := parseTime(c.Query("start"), false)
	if err != nil {
		fail(c, apperr.Validation("start must be a date or RFC 3339 timestamp"))
		return
	}
	end, err := parseTime(c.Query("end"), true)
	if err != nil {
		fail(c, apperr.Validation("end must be a date or RFC 3339 timestamp"))
		return
	}

	f := database.TransactionFilter{Start: start, End: end}
	user, err := intQuery(c, "user")
	if err != nil {
		fail(c, apperr.Validation("user must be a number"))
		return
	}
	f.User = int64(user)
	if f.Till, err = intQuery(c, "till"); err != nil {
		fail(c, apperr.Validation("till must be a number"))
		return
	}
	if strings.TrimSpace(c.Query("status")) != "" {
		status, err := intQuery(c, "status")
		if err != nil {
			fail(c, apperr.Validation("status must be a number"))
			return
		}
		f.Status = &status
	}

	txns, err := h.Ledger.ByDate(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// --- GET: /api/transactions/:id ---
func (h *Handler) GetTransaction(c *gin.Context) {
	t, err := h.Ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
