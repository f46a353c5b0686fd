package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the quote persistence boundary. Every method takes the
// database handle explicitly so callers decide the transaction scope.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quote *Quote) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Quote, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Quote, error)
	List(ctx context.Context, db *gorm.DB, req ListQuotesRequest) ([]Quote, int64, error)
	Update(ctx context.Context, db *gorm.DB, quote *Quote) error

	ListItems(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]QuoteItem, error)
	ReplaceItems(ctx context.Context, db *gorm.DB, quoteID snowflake.ID, items []QuoteItem) error

	InsertHistory(ctx context.Context, db *gorm.DB, entry *QuoteStatusHistory) error
	ListHistory(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID) ([]QuoteStatusHistory, error)
}
