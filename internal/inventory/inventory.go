// Package inventory applies stock decrements for completed sales.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pharmaspot/internal/database"
	"pharmaspot/internal/logging"
)

// ErrInsufficientStock is returned under the oversell guard when a line
// would take a product below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Line is one decrement: remove Quantity units of ProductID.
type Line struct {
	ProductID int64
	Quantity  int
}

// Service decrements product quantities. With PreventOversell unset a
// quantity may go negative, which is how the till has always behaved.
type Service struct {
	store           *database.Store
	preventOversell bool
}

func NewService(store *database.Store, preventOversell bool) *Service {
	return &Service{store: store, preventOversell: preventOversell}
}

// Adjust applies lines in their own store transaction.
func (s *Service) Adjust(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	return s.store.WithTx(ctx, func(tx *database.Store) error {
		return s.Apply(ctx, tx, lines)
	})
}

// Apply decrements each line in order using tx, which the caller owns.
// Lines may repeat a product. An unknown product id is skipped. Any other
// failure aborts the batch; the caller's rollback undoes earlier lines.
func (s *Service) Apply(ctx context.Context, tx *database.Store, lines []Line) error {
	ctx, span := otel.Tracer("pharmaspot/inventory").Start(ctx, "inventory.Apply")
	defer span.End()
	span.SetAttributes(attribute.Int("inventory.lines", len(lines)))

	log := logging.FromContext(ctx)
	for _, line := range lines {
		p, err := tx.GetProduct(ctx, line.ProductID)
		if errors.Is(err, database.ErrNotFound) {
			log.Warn("stock adjustment skipped unknown product",
				"product_id", line.ProductID, "quantity", line.Quantity)
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load product")
			return fmt.Errorf("load product %d: %w", line.ProductID, err)
		}

		if s.preventOversell && p.Quantity-line.Quantity < 0 {
			span.SetStatus(codes.Error, "insufficient stock")
			return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientStock, p.Name, p.Quantity, line.Quantity)
		}

		if err := tx.DecrementStock(ctx, p, line.Quantity); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decrement")
			return fmt.Errorf("decrement product %d: %w", line.ProductID, err)
		}
	}
	return nil
}
