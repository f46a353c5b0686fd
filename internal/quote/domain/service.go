package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/quoteflow/internal/document"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	"github.com/smallbiznis/quoteflow/pkg/db/pagination"
)

// CreateQuoteRequest carries everything needed to open a quote. QuoteNumber
// is optional; when empty a number is allocated from the org counter.
// Setting ParentQuoteID creates the next version of an existing quote.
type CreateQuoteRequest struct {
	OrgID         snowflake.ID
	CustomerID    snowflake.ID
	QuoteNumber   string
	Currency      string
	Discount      decimal.Decimal
	GST           decimal.Decimal
	IssuedDate    *time.Time
	ValidUntil    *time.Time
	ParentQuoteID *snowflake.ID
	Items         []document.ItemInput
}

// ReplaceItemsRequest swaps the full item list and commercial terms of an
// editable quote in one shot.
type ReplaceItemsRequest struct {
	Items    []document.ItemInput
	Discount decimal.Decimal
	GST      decimal.Decimal
}

// ConvertToInvoiceRequest parameterizes the quote-to-invoice conversion.
// Discount and GST apply to the new invoice; the quote keeps its own.
type ConvertToInvoiceRequest struct {
	InvoiceNumber string
	Discount      decimal.Decimal
	GST           decimal.Decimal
	DueDate       time.Time
}

// ConvertToInvoiceResponse returns both sides of a completed conversion.
type ConvertToInvoiceResponse struct {
	Quote   Quote
	Invoice invoicedomain.Invoice
}

// ListQuotesRequest filters and paginates a quote listing within one org.
type ListQuotesRequest struct {
	OrgID      snowflake.ID
	CustomerID snowflake.ID
	Status     Status
	Page       pagination.Request
}

// ListQuotesResponse is one page of quotes plus paging metadata.
type ListQuotesResponse struct {
	Quotes   []Quote
	PageInfo pagination.PageInfo
}

// Service is the quote lifecycle API. Every state-changing operation runs
// in a single transaction covering the document row, its history row, and
// the outbox event.
type Service interface {
	Create(ctx context.Context, req CreateQuoteRequest) (Quote, error)
	GetByID(ctx context.Context, orgID, id snowflake.ID) (Quote, error)
	List(ctx context.Context, req ListQuotesRequest) (ListQuotesResponse, error)
	ReplaceItems(ctx context.Context, orgID, id snowflake.ID, req ReplaceItemsRequest) (Quote, error)

	MarkAsSent(ctx context.Context, orgID, id snowflake.ID) (Quote, error)
	MarkAsAccepted(ctx context.Context, orgID, id snowflake.ID) (Quote, error)
	MarkAsRejected(ctx context.Context, orgID, id snowflake.ID, reason string) (Quote, error)
	MarkAsOnHold(ctx context.Context, orgID, id snowflake.ID, note string) (Quote, error)
	MarkAsCancelled(ctx context.Context, orgID, id snowflake.ID, reason string) (Quote, error)
	MarkAsExpired(ctx context.Context, orgID, id snowflake.ID) (Quote, error)

	ConvertToInvoice(ctx context.Context, orgID, id snowflake.ID, req ConvertToInvoiceRequest) (ConvertToInvoiceResponse, error)
	History(ctx context.Context, orgID, id snowflake.ID) ([]QuoteStatusHistory, error)
}
