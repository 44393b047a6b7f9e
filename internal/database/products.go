package database

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pharmaspot/internal/models"
)

// ProductQuery filters the product list.
type ProductQuery struct {
	Q          string // matched against name, generic name and barcode
	CategoryID int64
	Page
}

func (s *Store) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	query := s.conn(ctx).Model(&models.Product{})
	if term := strings.TrimSpace(q.Q); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(generic) LIKE ? OR barcode = ?", like, like, term)
	}
	if q.CategoryID != 0 {
		query = query.Where("category_id = ?", q.CategoryID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	offset, limit := q.Page.normalize()
	var products []models.Product
	err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&products).Error
	return products, total, translate(err)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := s.conn(ctx).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	var p models.Product
	if err := s.conn(ctx).Where("barcode = ?", barcode).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// SaveProduct inserts p when it has no id and overwrites the stored row
// otherwise. A change to quantity or price is audited.
func (s *Store) SaveProduct(ctx context.Context, p *models.Product) error {
	if p.Barcode != nil && strings.TrimSpace(*p.Barcode) == "" {
		p.Barcode = nil
	}
	if p.ID == 0 {
		return translate(s.conn(ctx).Omit(clause.Associations).Create(p).Error)
	}

	return s.WithTx(ctx, func(tx *Store) error {
		old, err := tx.GetProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		err = tx.conn(ctx).Model(&models.Product{ID: p.ID}).
			Select("*").Omit("id", "created_at", clause.Associations).
			Updates(p).Error
		if err != nil {
			return translate(err)
		}
		p.CreatedAt = old.CreatedAt

		if old.Quantity == p.Quantity && old.Price.Equal(p.Price) {
			return nil
		}
		return tx.auditStock(ctx, p.ID, old.Quantity, old.Price, p.Quantity, p.Price)
	})
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res := s.conn(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock subtracts by from the product's quantity in place and
// records the movement. p is updated to the new quantity.
func (s *Store) DecrementStock(ctx context.Context, p *models.Product, by int) error {
	err := s.conn(ctx).Model(&models.Product{}).
		Where("id = ?", p.ID).
		Update("quantity", gorm.Expr("quantity - ?", by)).Error
	if err != nil {
		return translate(err)
	}
	before := p.Quantity
	p.Quantity -= by
	return s.auditStock(ctx, p.ID, before, p.Price, p.Quantity, p.Price)
}

type stockSnapshot struct {
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (s *Store) auditStock(ctx context.Context, id int64, oldQty int, oldPrice decimal.Decimal, newQty int, newPrice decimal.Decimal) error {
	return s.Audit(ctx, &models.AuditLog{
		Action:   models.ActionInventoryUpdated,
		Table:    "inventory",
		RecordID: strconv.FormatInt(id, 10),
		OldValue: toJSON(stockSnapshot{Quantity: oldQty, Price: oldPrice}),
		NewValue: toJSON(stockSnapshot{Quantity: newQty, Price: newPrice}),
	})
}

// ExpiryWindow is how far ahead a product counts as expiring soon.
const ExpiryWindow = 30 * 24 * time.Hour

// StockAlerts groups products that need the pharmacist's attention.
type StockAlerts struct {
	LowStock []models.Product `json:"low_stock"`
	Expiring []models.Product `json:"expiring"`
	Expired  []models.Product `json:"expired"`
}

// ProductAlerts reports low stock, soon-to-expire and expired products as of now.
func (s *Store) ProductAlerts(ctx context.Context, now time.Time) (*StockAlerts, error) {
	today := now.UTC().Format(time.DateOnly)
	horizon := now.UTC().Add(ExpiryWindow).Format(time.DateOnly)

	alerts := &StockAlerts{
		LowStock: []models.Product{},
		Expiring: []models.Product{},
		Expired:  []models.Product{},
	}
	db := s.conn(ctx)

	// Expiration dates are stored as YYYY-MM-DD so string order is date order.
	if err := db.Where("tracks_stock = ? AND quantity <= min_stock", true).
		Order("quantity ASC").Find(&alerts.LowStock).Error; err != nil {
		return nil, translate(err)
	}
	if err := db.Where("expiration_date <> '' AND expiration_date >= ? AND expiration_date <= ?", today, horizon).
		Order("expiration_date ASC").Find(&alerts.Expiring).Error; err != nil {
		return nil, translate(err)
	}
	if err := db.Where("expiration_date <> '' AND expiration_date < ?", today).
		Order("expiration_date ASC").Find(&alerts.Expired).Error; err != nil {
		return nil, translate(err)
	}
	return alerts, nil
}
