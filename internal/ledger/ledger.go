// Package ledger records sales and held orders and triggers the stock
// adjustment for sales that are fully paid.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pharmaspot/internal/database"
	"pharmaspot/internal/inventory"
	"pharmaspot/internal/logging"
	"pharmaspot/internal/models"
)

// ErrInvalid wraps every validation failure of a transaction body.
var ErrInvalid = errors.New("invalid transaction")

// DefaultPaymentType is used when the till does not say how it was paid.
const DefaultPaymentType = "Cash"

// Adjuster applies stock decrements inside the caller's store transaction.
type Adjuster interface {
	Apply(ctx context.Context, tx *database.Store, lines []inventory.Line) error
}

type Service struct {
	store    *database.Store
	adjuster Adjuster
	now      func() time.Time
}

func NewService(store *database.Store, adjuster Adjuster) *Service {
	return &Service{store: store, adjuster: adjuster, now: time.Now}
}

// Create validates and stores t. When the sale is settled (paid covers
// the total) its line items are removed from stock exactly once, in the
// same store transaction as the insert.
func (s *Service) Create(ctx context.Context, t *models.Transaction) error {
	ctx, span := otel.Tracer("pharmaspot/ledger").Start(ctx, "ledger.Create")
	defer span.End()

	s.applyDefaults(t)
	if err := validate(t); err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("transaction.id", t.ID),
		attribute.Int("transaction.items", len(t.Items)),
		attribute.Bool("transaction.settled", t.IsSettled()),
	)

	err := s.store.WithTx(ctx, func(tx *database.Store) error {
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return err
		}
		if !t.IsSettled() || len(t.Items) == 0 {
			return nil
		}
		return s.adjuster.Apply(ctx, tx, Lines(t.Items))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create transaction")
		return err
	}

	logging.FromContext(ctx).Info("transaction recorded",
		"transaction_id", t.ID,
		"status", t.Status,
		"total", t.Total.StringFixed(2),
		"items", len(t.Items),
	)
	return nil
}

// Update overwrites a stored transaction. Stock is not touched.
func (s *Service) Update(ctx context.Context, t *models.Transaction) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	s.applyDefaults(t)
	if err := validate(t); err != nil {
		return err
	}
	return s.store.UpdateTransaction(ctx, t)
}

// Delete removes a transaction. Stock is not restored.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTransaction(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *Service) All(ctx context.Context) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// OnHold lists held orders: status 0 with a reference number.
func (s *Service) OnHold(ctx context.Context) ([]models.Transaction, error) {
	return s.store.HeldOrders(ctx)
}

// CustomerOrders lists unfinished orders parked against a customer.
func (s *Service) CustomerOrders(ctx context.Context) ([]models.Transaction, error) {
	return s.store.CustomerOrders(ctx)
}

func (s *Service) ByDate(ctx context.Context, f database.TransactionFilter) ([]models.Transaction, error) {
	if f.End.Before(f.Start) {
		return nil, fmt.Errorf("%w: end date is before start date", ErrInvalid)
	}
	return s.store.TransactionsByDate(ctx, f)
}

// Lines converts cart rows into stock decrements, preserving order.
func Lines(items models.LineItems) []inventory.Line {
	out := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		out = append(out, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func (s *Service) applyDefaults(t *models.Transaction) {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Date.IsZero() {
		t.Date = s.now()
	}
	t.Date = t.Date.UTC().Truncate(time.Second)
	if strings.TrimSpace(t.PaymentType) == "" {
		t.PaymentType = DefaultPaymentType
	}
	if t.Items == nil {
		t.Items = models.LineItems{}
	}
}

func validate(t *models.Transaction) error {
	if t.Status != models.StatusHeld && t.Status != models.StatusCompleted {
		return fmt.Errorf("%w: status must be 0 or 1", ErrInvalid)
	}
	if t.CustomerID < 0 {
		return fmt.Errorf("%w: customer id must not be negative", ErrInvalid)
	}
	amounts := []struct {
		name string
		v    decimal.Decimal
	}{
		{"total", t.Total}, {"paid", t.Paid}, {"change", t.Change}, {"discount", t.Discount}, {"tax", t.Tax},
	}
	for _, a := range amounts {
		if a.v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, a.name)
		}
	}
	for i, it := range t.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalid, i+1)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d price must not be negative", ErrInvalid, i+1)
		}
	}
	return nil
}
