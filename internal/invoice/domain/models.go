// Package domain defines the invoice aggregate: the billing document, its
// line items, and its append-only status history. Payment rows live in the
// payment package; an invoice's paid total is always derived from that
// ledger, never stored here.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Invoice is a billing document. QuoteID is set when the invoice was
// produced by converting an accepted quote.
type Invoice struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	OrgID         snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_invoices_org_number,priority:1"`
	InvoiceNumber string          `gorm:"type:text;not null;uniqueIndex:ux_invoices_org_number,priority:2"`
	QuoteID       *snowflake.ID   `gorm:"index"`
	CustomerID    snowflake.ID    `gorm:"not null;index"`
	Currency      string          `gorm:"type:text;not null"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	GST           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	IssuedDate    time.Time       `gorm:"not null"`
	DueDate       time.Time       `gorm:"not null;index"`
	Status        Status          `gorm:"type:text;not null;default:'DRAFT'"`
	PaidDate      *time.Time
	PaymentMethod *string `gorm:"type:text"`
	CancelledDate *time.Time
	CancelReason  *string `gorm:"type:text"`
	RemindersSent int     `gorm:"not null;default:0"`
	FileName      *string `gorm:"type:text"`
	FileSize      *int64
	FileLocation  *string       `gorm:"type:text"`
	Items         []InvoiceItem `gorm:"foreignKey:InvoiceID"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is one ordered line on an invoice, replaced as a whole list
// while the invoice is still a draft.
type InvoiceItem struct {
	ID          snowflake.ID                `gorm:"primaryKey"`
	InvoiceID   snowflake.ID                `gorm:"not null;index;uniqueIndex:ux_invoice_items_position,priority:1"`
	Description string                      `gorm:"type:text;not null"`
	Quantity    int                         `gorm:"not null"`
	UnitPrice   decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	Total       decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	Position    int                         `gorm:"not null;uniqueIndex:ux_invoice_items_position,priority:2"`
	ProductID   *snowflake.ID               `gorm:"index"`
	Colors      datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Notes       string                      `gorm:"type:text"`
	CreatedAt   time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceStatusHistory is one append-only audit row per status change.
// Partial payments do not change status and therefore leave no row here;
// they live in the payment ledger instead.
type InvoiceStatusHistory struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrgID          snowflake.ID `gorm:"not null;index"`
	InvoiceID      snowflake.ID `gorm:"not null;index"`
	Status         Status       `gorm:"type:text;not null"`
	PreviousStatus *Status      `gorm:"type:text"`
	Note           *string      `gorm:"type:text"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceStatusHistory) TableName() string { return "invoice_status_histories" }
