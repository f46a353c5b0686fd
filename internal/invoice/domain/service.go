package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/quoteflow/internal/document"
	paymentdomain "github.com/smallbiznis/quoteflow/internal/payment/domain"
	"github.com/smallbiznis/quoteflow/pkg/db/pagination"
)

// CreateInvoiceRequest carries everything needed to open a standalone
// invoice. InvoiceNumber is optional; when empty a number is allocated from
// the org counter. Invoices born from quote conversion go through the quote
// service instead.
type CreateInvoiceRequest struct {
	OrgID         snowflake.ID
	CustomerID    snowflake.ID
	InvoiceNumber string
	Currency      string
	Discount      decimal.Decimal
	GST           decimal.Decimal
	IssuedDate    *time.Time
	DueDate       time.Time
	Items         []document.ItemInput

	// Artifact metadata from an external document generator; stored
	// verbatim, never interpreted here.
	FileName     *string
	FileSize     *int64
	FileLocation *string
}

// ReplaceItemsRequest swaps the full item list and commercial terms of a
// draft invoice in one shot.
type ReplaceItemsRequest struct {
	Items    []document.ItemInput
	Discount decimal.Decimal
	GST      decimal.Decimal
}

// AddPaymentRequest records one payment against an invoice. Date defaults
// to the current time when unset.
type AddPaymentRequest struct {
	Amount decimal.Decimal
	Method string
	Date   *time.Time
	Note   *string
}

// AddPaymentResponse reports the ledger entry just written and the
// invoice's resulting position.
type AddPaymentResponse struct {
	Invoice   Invoice
	Payment   paymentdomain.Payment
	TotalPaid decimal.Decimal
	Settled   bool
}

// ListInvoicesRequest filters and paginates an invoice listing within one
// org.
type ListInvoicesRequest struct {
	OrgID      snowflake.ID
	CustomerID snowflake.ID
	Status     Status
	Page       pagination.Request
}

// ListInvoicesResponse is one page of invoices plus paging metadata.
type ListInvoicesResponse struct {
	Invoices []Invoice
	PageInfo pagination.PageInfo
}

// Service is the invoice lifecycle API. Every state-changing operation runs
// in a single transaction covering the document row, its history row, the
// payment ledger where relevant, and the outbox event.
type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, orgID, id snowflake.ID) (Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
	ReplaceItems(ctx context.Context, orgID, id snowflake.ID, req ReplaceItemsRequest) (Invoice, error)

	MarkAsPending(ctx context.Context, orgID, id snowflake.ID) (Invoice, error)
	AddPayment(ctx context.Context, orgID, id snowflake.ID, req AddPaymentRequest) (AddPaymentResponse, error)
	Cancel(ctx context.Context, orgID, id snowflake.ID, reason string) (Invoice, error)
	MarkAsOverdue(ctx context.Context, orgID, id snowflake.ID) (Invoice, error)

	// SweepOverdue flips every PENDING invoice in the org-wide table whose
	// due date has passed to OVERDUE, up to limit rows, and returns how
	// many were flipped.
	SweepOverdue(ctx context.Context, asOf time.Time, limit int) (int, error)

	History(ctx context.Context, orgID, id snowflake.ID) ([]InvoiceStatusHistory, error)
	Payments(ctx context.Context, orgID, id snowflake.ID) ([]paymentdomain.Payment, decimal.Decimal, error)
}
