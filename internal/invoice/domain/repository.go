package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the invoice persistence boundary. Every method takes the
// database handle explicitly so callers decide the transaction scope.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, req ListInvoicesRequest) ([]Invoice, int64, error)
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error

	// ListDuePending returns PENDING invoices whose due date is strictly
	// before asOf, oldest due first, across all orgs.
	ListDuePending(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]Invoice, error)

	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)
	ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []InvoiceItem) error

	InsertHistory(ctx context.Context, db *gorm.DB, entry *InvoiceStatusHistory) error
	ListHistory(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]InvoiceStatusHistory, error)
}
