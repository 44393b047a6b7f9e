package database

import (
	"context"
	"time"

	"pharmaspot/internal/models"
)

type txnSummary struct {
	Total       string `json:"total"`
	PaymentType string `json:"payment_type"`
}

// CreateTransaction inserts t and records it in the audit log.
func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := translate(tx.conn(ctx).Create(t).Error); err != nil {
			return err
		}
		return tx.Audit(ctx, &models.AuditLog{
			Action:   models.ActionTransactionCreated,
			Table:    "transactions",
			RecordID: t.ID,
			NewValue: toJSON(txnSummary{Total: t.Total.StringFixed(2), PaymentType: t.PaymentType}),
		})
	})
}

// UpdateTransaction overwrites every column of the stored row except its
// creation time.
func (s *Store) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.WithTx(ctx, func(tx *Store) error {
		old, err := tx.GetTransaction(ctx, t.ID)
		if err != nil {
			return err
		}
		err = tx.conn(ctx).Model(&models.Transaction{ID: t.ID}).
			Select("*").Omit("id", "created_at").
			Updates(t).Error
		if err != nil {
			return translate(err)
		}
		t.CreatedAt = old.CreatedAt
		return nil
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return affected(s.conn(ctx).Where("id = ?", id).Delete(&models.Transaction{}))
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.conn(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// ListTransactions returns every transaction, newest first.
func (s *Store) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.conn(ctx).Order("date DESC").Find(&out).Error
	return out, translate(err)
}

// HeldOrders are unfinished sales parked under a reference number.
func (s *Store) HeldOrders(ctx context.Context) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.conn(ctx).
		Where("ref_number <> '' AND status = ?", models.StatusHeld).
		Order("date DESC").Find(&out).Error
	return out, translate(err)
}

// CustomerOrders are unfinished sales parked against a customer record.
func (s *Store) CustomerOrders(ctx context.Context) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.conn(ctx).
		Where("customer_id <> ? AND status = ? AND ref_number = ''", models.WalkInCustomer, models.StatusHeld).
		Order("date DESC").Find(&out).Error
	return out, translate(err)
}

// TransactionFilter narrows a date range query. Zero User and Till match
// any; a nil Status matches any.
type TransactionFilter struct {
	Start  time.Time
	End    time.Time
	User   int64
	Till   int
	Status *int
}

// TransactionsByDate returns transactions dated within [Start, End].
func (s *Store) TransactionsByDate(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	q := s.conn(ctx).Where("date >= ? AND date <= ?", f.Start.UTC(), f.End.UTC())
	if f.User != 0 {
		q = q.Where("user_id = ?", f.User)
	}
	if f.Till != 0 {
		q = q.Where("till = ?", f.Till)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	var out []models.Transaction
	err := q.Order("date DESC").Find(&out).Error
	return out, translate(err)
}
