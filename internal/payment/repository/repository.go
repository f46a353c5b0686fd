package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/quoteflow/internal/payment/domain"
	"gorm.io/gorm"
)

type repository struct{}

// Provide returns the gorm-backed payment ledger repository.
func Provide() paymentdomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, payment *paymentdomain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	var payments []paymentdomain.Payment
	err := db.WithContext(ctx).
		Where("org_id = ? AND invoice_id = ?", orgID, invoiceID).
		Order("date ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// TotalPaid sums in decimal space rather than delegating SUM to the driver,
// so the result is identical across postgres and sqlite.
func (r *repository) TotalPaid(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (decimal.Decimal, error) {
	payments, err := r.ListByInvoice(ctx, db, orgID, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, payment := range payments {
		total = total.Add(payment.Amount)
	}
	return total, nil
}
