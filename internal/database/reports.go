package database

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pharmaspot/internal/models"
)

// SalesReport summarises completed sales within a date range.
type SalesReport struct {
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int64           `json:"total_orders"`
	TopSelling   []TopSeller     `json:"top_selling"`
}

type TopSeller struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Sold        int             `json:"sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

const topSellerLimit = 5

// GetSalesReport calculates revenue, order count and best sellers for
// completed transactions dated within [start, end].
func (s *Store) GetSalesReport(ctx context.Context, start, end time.Time) (*SalesReport, error) {
	report := &SalesReport{Start: start.UTC(), End: end.UTC(), TopSelling: []TopSeller{}}

	completed := s.conn(ctx).Model(&models.Transaction{}).
		Where("date >= ? AND date <= ? AND status = ?", report.Start, report.End, models.StatusCompleted)

	// COALESCE gives 0 instead of NULL when nothing sold
	var totals struct {
		Revenue decimal.Decimal
		Orders  int64
	}
	err := completed.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total), 0) AS revenue, COUNT(*) AS orders").
		Scan(&totals).Error
	if err != nil {
		return nil, translate(err)
	}
	report.TotalRevenue = totals.Revenue.Round(2)
	report.TotalOrders = totals.Orders

	// Line items live in a JSON document, so best sellers are tallied here
	// rather than in SQL.
	var sales []models.Transaction
	if err := completed.Session(&gorm.Session{}).Select("id", "items").Find(&sales).Error; err != nil {
		return nil, translate(err)
	}
	byProduct := map[int64]*TopSeller{}
	for _, sale := range sales {
		for _, it := range sale.Items {
			ts, ok := byProduct[it.ProductID]
			if !ok {
				ts = &TopSeller{ProductID: it.ProductID, ProductName: it.ProductName}
				byProduct[it.ProductID] = ts
			}
			ts.Sold += it.Quantity
			ts.Revenue = ts.Revenue.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	for _, ts := range byProduct {
		report.TopSelling = append(report.TopSelling, *ts)
	}
	sort.Slice(report.TopSelling, func(i, j int) bool {
		a, b := report.TopSelling[i], report.TopSelling[j]
		if a.Sold != b.Sold {
			return a.Sold > b.Sold
		}
		return a.ProductID < b.ProductID
	})
	if len(report.TopSelling) > topSellerLimit {
		report.TopSelling = report.TopSelling[:topSellerLimit]
	}
	return report, nil
}

// ValuationItem is one product line of the stock valuation.
type ValuationItem struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type CategoryValuation struct {
	CategoryName string          `json:"category_name"`
	Items        []ValuationItem `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type StockValuation struct {
	Categories []CategoryValuation `json:"categories"`
	GrandTotal decimal.Decimal     `json:"grand_total"`
}

const uncategorized = "Uncategorized"

// GetStockValuation values on-hand stock at cost, grouped by category.
// Products that do not track stock, or are at or below zero, add nothing.
func (s *Store) GetStockValuation(ctx context.Context) (*StockValuation, error) {
	var products []models.Product
	if err := s.conn(ctx).Preload("Category").Order("name ASC").Find(&products).Error; err != nil {
		return nil, translate(err)
	}

	groups := map[string]*CategoryValuation{}
	out := &StockValuation{Categories: []CategoryValuation{}}
	for _, p := range products {
		if !p.TracksStock || p.Quantity <= 0 {
			continue
		}
		name := uncategorized
		if p.Category != nil && p.Category.Name != "" {
			name = p.Category.Name
		}
		g, ok := groups[name]
		if !ok {
			g = &CategoryValuation{CategoryName: name, Items: []ValuationItem{}}
			groups[name] = g
		}

		total := p.CostPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
		g.Items = append(g.Items, ValuationItem{
			ID:        p.ID,
			Name:      p.Name,
			Quantity:  p.Quantity,
			CostPrice: p.CostPrice,
			TotalCost: total,
		})
		g.Subtotal = g.Subtotal.Add(total)
		out.GrandTotal = out.GrandTotal.Add(total)
	}

	for _, g := range groups {
		out.Categories = append(out.Categories, *g)
	}
	sort.Slice(out.Categories, func(i, j int) bool {
		return out.Categories[i].CategoryName < out.Categories[j].CategoryName
	})
	return out, nil
}
