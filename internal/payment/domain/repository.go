package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository persists ledger entries. Methods take an explicit db handle so
// the invoice engine can pass its transaction: appending a payment and
// recomputing the cumulative total happen under the same isolation boundary
// as the invoice status write.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]Payment, error)
	TotalPaid(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (decimal.Decimal, error)
}
