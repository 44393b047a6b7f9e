package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/models"
)

// --- categories ---

type CategoryRequest struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

func (r CategoryRequest) toModel(requireID bool) (*models.Category, error) {
	cat := &models.Category{Name: strings.TrimSpace(r.Name), Description: strings.TrimSpace(r.Description)}
	if cat.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if requireID {
		id, err := parseID(string(r.ID))
		if err != nil {
			return nil, apperr.Validation("Invalid id")
		}
		cat.ID = id
	}
	return cat, nil
}

// --- GET: /api/categories/all ---
func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.Store.ListCategories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

// --- GET: /api/categories/category/:id ---
func (h *Handler) GetCategory(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	cat, err := h.Store.GetCategory(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// --- POST: /api/categories/category ---
func (h *Handler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if !bindJSON(c, &req, "Invalid category data") {
		return
	}
	cat, err := req.toModel(false)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Store.CreateCategory(c.Request.Context(), cat); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// --- PUT: /api/categories/category ---
func (h *Handler) UpdateCategory(c *gin.Context) {
	var req CategoryRequest
	if !bindJSON(c, &req, "Invalid category data") {
		return
	}
	cat, err := req.toModel(true)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Store.UpdateCategory(c.Request.Context(), cat); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Category updated")
}

// --- DELETE: /api/categories/category/:id ---
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.Store.DeleteCategory(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Category deleted")
}

// --- customers ---

type CustomerRequest struct {
	ID      flexString `json:"id"`
	Name    string     `json:"name"`
	Phone   string     `json:"phone"`
	Email   string     `json:"email"`
	Address string     `json:"address"`
	Notes   string     `json:"notes"`
}

func (r CustomerRequest) toModel(requireID bool) (*models.Customer, error) {
	cu := &models.Customer{
		Name:    strings.TrimSpace(r.Name),
		Phone:   strings.TrimSpace(r.Phone),
		Email:   strings.TrimSpace(r.Email),
		Address: strings.TrimSpace(r.Address),
		Notes:   strings.TrimSpace(r.Notes),
	}
	if cu.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if requireID {
		id, err := parseID(string(r.ID))
		if err != nil {
			return nil, apperr.Validation("Invalid id")
		}
		cu.ID = id
	}
	return cu, nil
}

// --- GET: /api/customers/all?q&page&limit ---
func (h *Handler) ListCustomers(c *gin.Context) {
	customers, total, err := h.Store.ListCustomers(c.Request.Context(), c.Query("q"), pageQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customers, "total": total})
}

// --- GET: /api/customers/customer/:id ---
func (h *Handler) GetCustomer(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	cu, err := h.Store.GetCustomer(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cu)
}

// --- POST: /api/customers/customer ---
func (h *Handler) CreateCustomer(c *gin.Context) {
	var req CustomerRequest
	if !bindJSON(c, &req, "Invalid customer data") {
		return
	}
	cu, err := req.toModel(false)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Store.CreateCustomer(c.Request.Context(), cu); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cu)
}

// --- PUT: /api/customers/customer ---
func (h *Handler) UpdateCustomer(c *gin.Context) {
	var req CustomerRequest
	if !bindJSON(c, &req, "Invalid customer data") {
		return
	}
	cu, err := req.toModel(true)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Store.UpdateCustomer(c.Request.Context(), cu); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Customer updated")
}

// --- DELETE: /api/customers/customer/:id ---
func (h *Handler) DeleteCustomer(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.Store.DeleteCustomer(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Customer deleted")
}

// --- settings ---

// --- GET: /api/settings/get ---
func (h *Handler) GetSettings(c *gin.Context) {
	st, err := h.Store.GetSettings(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"_id": models.SettingsID, "settings": st})
}

type SettingsRequest struct {
	App        string          `json:"app"`
	Store      string          `json:"store"`
	AddressOne string          `json:"address_one"`
	AddressTwo string          `json:"address_two"`
	Contact    string          `json:"contact"`
	Email      string          `json:"email"`
	Tax        decimal.Decimal `json:"tax"`
	Symbol     string          `json:"symbol"`
	Percentage decimal.Decimal `json:"percentage"`
	ChargeTax  flag            `json:"charge_tax"`
	Footer     string          `json:"footer"`
	Img        string          `json:"img"`
}

// --- POST: /api/settings/post ---
func (h *Handler) SaveSettings(c *gin.Context) {
	var req SettingsRequest
	if !bindJSON(c, &req, "Invalid settings data") {
		return
	}
	if req.Tax.IsNegative() || req.Percentage.IsNegative() {
		fail(c, apperr.Validation("tax and percentage must not be negative"))
		return
	}
	st := &models.Settings{
		App:        strings.TrimSpace(req.App),
		Store:      strings.TrimSpace(req.Store),
		AddressOne: strings.TrimSpace(req.AddressOne),
		AddressTwo: strings.TrimSpace(req.AddressTwo),
		Contact:    strings.TrimSpace(req.Contact),
		Email:      strings.TrimSpace(req.Email),
		Tax:        req.Tax,
		Symbol:     strings.TrimSpace(req.Symbol),
		Percentage: req.Percentage,
		ChargeTax:  bool(req.ChargeTax),
		Footer:     strings.TrimSpace(req.Footer),
		Img:        strings.TrimSpace(req.Img),
	}
	if err := h.Store.SaveSettings(c.Request.Context(), st); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Settings saved")
}
