package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
	pkgdb "github.com/smallbiznis/quoteflow/pkg/db"
)

type repository struct{}

// Provide returns the gorm-backed quote repository.
func Provide() quotedomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, quote *quotedomain.Quote) error {
	return db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*quotedomain.Quote, error) {
	var quote quotedomain.Quote
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// FindForUpdate locks the quote row for the rest of the transaction. It
// does not load items; callers that need them fetch via ListItems under
// the same lock.
func (r *repository) FindForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*quotedomain.Quote, error) {
	var quote quotedomain.Quote
	err := pkgdb.ForUpdate(db.WithContext(ctx)).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, req quotedomain.ListQuotesRequest) ([]quotedomain.Quote, int64, error) {
	query := db.WithContext(ctx).Model(&quotedomain.Quote{}).Where("org_id = ?", req.OrgID)
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
	var quotes []quotedomain.Quote
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("issued_date DESC, id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&quotes).Error
	if err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, quote *quotedomain.Quote) error {
	return db.WithContext(ctx).Omit(clause.Associations).Save(quote).Error
}

func (r *repository) ListItems(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]quotedomain.QuoteItem, error) {
	var items []quotedomain.QuoteItem
	err := db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceItems swaps the full item list. Items never outlive their quote
// and are hard-deleted on replacement.
func (r *repository) ReplaceItems(ctx context.Context, db *gorm.DB, quoteID snowflake.ID, items []quotedomain.QuoteItem) error {
	if err := db.WithContext(ctx).Where("quote_id = ?", quoteID).Delete(&quotedomain.QuoteItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repository) InsertHistory(ctx context.Context, db *gorm.DB, entry *quotedomain.QuoteStatusHistory) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID) ([]quotedomain.QuoteStatusHistory, error) {
	var entries []quotedomain.QuoteStatusHistory
	err := db.WithContext(ctx).
		Where("org_id = ? AND quote_id = ?", orgID, quoteID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
