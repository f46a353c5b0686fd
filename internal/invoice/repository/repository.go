package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	pkgdb "github.com/smallbiznis/quoteflow/pkg/db"
)

type repository struct{}

// Provide returns the gorm-backed invoice repository.
func Provide() invoicedomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindForUpdate locks the invoice row for the rest of the transaction. It
// does not load items; callers that need them fetch via ListItems under
// the same lock.
func (r *repository) FindForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := pkgdb.ForUpdate(db.WithContext(ctx)).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, req invoicedomain.ListInvoicesRequest) ([]invoicedomain.Invoice, int64, error) {
	query := db.WithContext(ctx).Model(&invoicedomain.Invoice{}).Where("org_id = ?", req.OrgID)
	if req.CustomerID != 0 {
		query = query.Where("customer_id = ?", req.CustomerID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := req.Page.Normalize()
	var invoices []invoicedomain.Invoice
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("issued_date DESC, id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Omit(clause.Associations).Save(invoice).Error
}

func (r *repository) ListDuePending(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("status = ? AND due_date < ?", invoicedomain.StatusPending, asOf).
		Order("due_date ASC, id ASC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceItem, error) {
	var items []invoicedomain.InvoiceItem
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceItems swaps the full item list. Items never outlive their invoice
// and are hard-deleted on replacement.
func (r *repository) ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []invoicedomain.InvoiceItem) error {
	if err := db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repository) InsertHistory(ctx context.Context, db *gorm.DB, entry *invoicedomain.InvoiceStatusHistory) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]invoicedomain.InvoiceStatusHistory, error) {
	var entries []invoicedomain.InvoiceStatusHistory
	err := db.WithContext(ctx).
		Where("org_id = ? AND invoice_id = ?", orgID, invoiceID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
