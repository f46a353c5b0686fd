package document

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quoteflow/internal/money"
)

// ItemInput is the caller-supplied shape of one line item. Line totals are
// never accepted from callers; they are derived at write time.
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ProductID   *snowflake.ID   `json:"product_id,omitempty"`
	Colors      []string        `json:"colors,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// ValidateItems rejects malformed line items before anything is written.
func ValidateItems(items []ItemInput) error {
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.Description) == "" {
			return NewValidationError(field, "description_required", "line item description is required")
		}
		if item.Quantity < 1 {
			return NewValidationError(field, "quantity_min", "line item quantity must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError(field, "unit_price_min", "line item unit price must not be negative")
		}
	}
	return nil
}

// MoneyItems converts inputs into calculator items.
func MoneyItems(items []ItemInput) []money.Item {
	out := make([]money.Item, 0, len(items))
	for _, item := range items {
		out = append(out, money.Item{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return out
}

// ValidateAmounts rejects negative discount or GST inputs.
func ValidateAmounts(discount, gst decimal.Decimal) error {
	if discount.IsNegative() {
		return NewValidationError("discount", "min", "discount must not be negative")
	}
	if gst.IsNegative() {
		return NewValidationError("gst", "min", "gst rate must not be negative")
	}
	return nil
}
