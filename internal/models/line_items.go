package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LineItemsVersion is the schema version written into every stored items document.
const LineItemsVersion = 1

// LineItem is one cart row of a transaction.
type LineItem struct {
	ProductID   int64           `json:"id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// LineItems is persisted in a single text column as
// {"version": 1, "items": [...]} and exposed to the API as a plain list.
type LineItems []LineItem

type lineItemsDocument struct {
	Version int        `json:"version"`
	Items   []LineItem `json:"items"`
}

func (l LineItems) Value() (driver.Value, error) {
	items := []LineItem(l)
	if items == nil {
		items = []LineItem{}
	}
	v, err := datatypes.NewJSONType(lineItemsDocument{Version: LineItemsVersion, Items: items}).Value()
	if err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

func (l *LineItems) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var doc datatypes.JSONType[lineItemsDocument]
	if err := doc.Scan(src); err != nil {
		return fmt.Errorf("line items: %w", err)
	}
	d := doc.Data()
	if d.Version != LineItemsVersion {
		return fmt.Errorf("line items: unsupported schema version %d", d.Version)
	}
	*l = d.Items
	return nil
}

// Total returns sum(price * quantity) over all lines.
func (l LineItems) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range l {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}
