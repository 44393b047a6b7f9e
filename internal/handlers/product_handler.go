package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/database"
	"pharmaspot/internal/models"
)

// productView adds the till's quantity column to a product.
type productView struct {
	models.Product
	StockDisplay string `json:"stock_display"`
}

func viewOf(p models.Product) productView {
	return productView{Product: p, StockDisplay: p.StockDisplay()}
}

func viewsOf(ps []models.Product) []productView {
	out := make([]productView, len(ps))
	for i, p := range ps {
		out[i] = viewOf(p)
	}
	return out
}

// --- GET: /api/inventory/products?q&category&page&limit ---
func (h *Handler) ListProducts(c *gin.Context) {
	q := database.ProductQuery{Q: c.Query("q"), Page: pageQuery(c)}
	if v := c.Query("category"); v != "" {
		id, err := parseID(v)
		if err != nil {
			fail(c, apperr.Validation("Invalid category"))
			return
		}
		q.CategoryID = id
	}
	products, total, err := h.Store.ListProducts(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewsOf(products), "total": total})
}

// --- GET: /api/inventory/product/:id ---
func (h *Handler) GetProduct(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	p, err := h.Store.GetProduct(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(*p))
}

// --- GET: /api/inventory/product/barcode/:barcode ---
// The scanner path of the till.
func (h *Handler) GetProductByBarcode(c *gin.Context) {
	p, err := h.Store.GetProductByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(*p))
}

// --- GET: /api/inventory/alerts ---
func (h *Handler) StockAlerts(c *gin.Context) {
	alerts, err := h.Store.ProductAlerts(c.Request.Context(), h.now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ProductRequest is the product form. TracksStock defaults to true.
type ProductRequest struct {
	ID             flexString      `json:"id"`
	Name           string          `json:"name"`
	Generic        string          `json:"generic"`
	CategoryID     *int64          `json:"category_id"`
	Barcode        string          `json:"barcode"`
	Price          decimal.Decimal `json:"price"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	Quantity       int             `json:"quantity"`
	MinStock       int             `json:"min_stock"`
	ExpirationDate string          `json:"expiration_date"`
	TracksStock    *bool           `json:"tracks_stock"`
	Strength       string          `json:"strength"`
	Form           string          `json:"form"`
	Manufacturer   string          `json:"manufacturer"`
	BatchNumber    string          `json:"batch_number"`
}

func (r *ProductRequest) toModel() (*models.Product, error) {
	p := &models.Product{
		Name:           strings.TrimSpace(r.Name),
		Generic:        strings.TrimSpace(r.Generic),
		CategoryID:     r.CategoryID,
		Price:          r.Price,
		CostPrice:      r.CostPrice,
		Quantity:       r.Quantity,
		MinStock:       r.MinStock,
		ExpirationDate: strings.TrimSpace(r.ExpirationDate),
		TracksStock:    true,
		Strength:       strings.TrimSpace(r.Strength),
		Form:           strings.TrimSpace(r.Form),
		Manufacturer:   strings.TrimSpace(r.Manufacturer),
		BatchNumber:    strings.TrimSpace(r.BatchNumber),
	}
	if b := strings.TrimSpace(r.Barcode); b != "" {
		p.Barcode = &b
	}
	if r.TracksStock != nil {
		p.TracksStock = *r.TracksStock
	}
	if p.CategoryID != nil && *p.CategoryID == 0 {
		p.CategoryID = nil
	}

	switch {
	case p.Name == "":
		return nil, apperr.Validation("name is required")
	case p.Price.IsNegative():
		return nil, apperr.Validation("price must not be negative")
	case p.CostPrice.IsNegative():
		return nil, apperr.Validation("cost_price must not be negative")
	case p.MinStock < 0:
		return nil, apperr.Validation("min_stock must not be negative")
	}
	if p.ExpirationDate != "" {
		if _, err := time.Parse(time.DateOnly, p.ExpirationDate); err != nil {
			return nil, apperr.Validation("expiration_date must be YYYY-MM-DD")
		}
	}
	if r.ID != "" {
		id, err := strconv.ParseInt(string(r.ID), 10, 64)
		if err != nil || id <= 0 {
			return nil, apperr.Validation("Invalid id")
		}
		p.ID = id
	}
	return p, nil
}

// --- POST: /api/inventory/product ---
// Creates the product, or overwrites it when the form carries an id.
func (h *Handler) SaveProduct(c *gin.Context) {
	var req ProductRequest
	if !bindJSON(c, &req, "Invalid product data") {
		return
	}
	p, err := req.toModel()
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Store.SaveProduct(c.Request.Context(), p); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(*p))
}

// --- DELETE: /api/inventory/product/:id ---
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.Store.DeleteProduct(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Product deleted successfully")
}
