// Package domain defines the append-only payment ledger. A payment is
// never edited or deleted; corrections are new entries. The running sum of
// an invoice's payments determines whether it is unpaid, partially paid, or
// fully paid.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Payment is one ledger entry applied against an invoice.
type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	OrgID     snowflake.ID    `gorm:"not null;index"`
	InvoiceID snowflake.ID    `gorm:"not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Method    string          `gorm:"type:text;not null"`
	Date      time.Time       `gorm:"not null"`
	Note      *string         `gorm:"type:text"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
