// Package domain defines the quote aggregate: the document, its line
// items, and its append-only status history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Quote is a pre-sale proposal document with line items and a validity
// window. Amount is always derived from the items, discount, and GST rate;
// it is never hand-set.
type Quote struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	OrgID         snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_quotes_org_number,priority:1"`
	QuoteNumber   string          `gorm:"type:text;not null;uniqueIndex:ux_quotes_org_number,priority:2"`
	VersionNumber int             `gorm:"not null;default:1"`
	ParentQuoteID *snowflake.ID   `gorm:"index"`
	CustomerID    snowflake.ID    `gorm:"not null;index"`
	Currency      string          `gorm:"type:text;not null"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	GST           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	IssuedDate    time.Time       `gorm:"not null"`
	ValidUntil    *time.Time
	Status        Status `gorm:"type:text;not null;default:'DRAFT'"`
	AcceptedDate  *time.Time
	RejectedDate  *time.Time
	ConvertedDate *time.Time
	RejectReason  *string       `gorm:"type:text"`
	InvoiceID     *snowflake.ID `gorm:"index"`
	Items         []QuoteItem   `gorm:"foreignKey:QuoteID"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// TableName sets the database table name.
func (Quote) TableName() string { return "quotes" }

// QuoteItem is one ordered line on a quote. Items are owned exclusively by
// their quote and replaced as a whole list, never edited independently.
type QuoteItem struct {
	ID          snowflake.ID                `gorm:"primaryKey"`
	QuoteID     snowflake.ID                `gorm:"not null;index;uniqueIndex:ux_quote_items_position,priority:1"`
	Description string                      `gorm:"type:text;not null"`
	Quantity    int                         `gorm:"not null"`
	UnitPrice   decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	Total       decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	Position    int                         `gorm:"not null;uniqueIndex:ux_quote_items_position,priority:2"`
	ProductID   *snowflake.ID               `gorm:"index"`
	Colors      datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Notes       string                      `gorm:"type:text"`
	CreatedAt   time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (QuoteItem) TableName() string { return "quote_items" }

// QuoteStatusHistory is one append-only audit row per status change,
// including the implicit creation transition from nil to DRAFT.
type QuoteStatusHistory struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrgID          snowflake.ID `gorm:"not null;index"`
	QuoteID        snowflake.ID `gorm:"not null;index"`
	Status         Status       `gorm:"type:text;not null"`
	PreviousStatus *Status      `gorm:"type:text"`
	Note           *string      `gorm:"type:text"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (QuoteStatusHistory) TableName() string { return "quote_status_histories" }
