package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smallbiznis/quoteflow/internal/docnumber"
	"github.com/smallbiznis/quoteflow/internal/document"
	"github.com/smallbiznis/quoteflow/internal/events"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	"github.com/smallbiznis/quoteflow/internal/money"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
)

// ConvertToInvoice turns an accepted quote into a draft invoice. The flip
// to CONVERTED, the new invoice with copied items, both history rows,
// and the outbox events all commit or roll back together, so a failed
// conversion never leaves a stray invoice behind.
func (s *Service) ConvertToInvoice(ctx context.Context, orgID, id snowflake.ID, req quotedomain.ConvertToInvoiceRequest) (quotedomain.ConvertToInvoiceResponse, error) {
	if req.DueDate.IsZero() {
		return quotedomain.ConvertToInvoiceResponse{}, document.NewValidationError("due_date", "required", "a due date is required")
	}
	if err := document.ValidateAmounts(req.Discount, req.GST); err != nil {
		return quotedomain.ConvertToInvoiceResponse{}, err
	}

	supplied := strings.TrimSpace(req.InvoiceNumber)

	var resp quotedomain.ConvertToInvoiceResponse
	var err error
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.convertTx(ctx, tx, orgID, id, req, supplied, attempt, &resp)
		})
		if err == nil {
			break
		}
		if supplied == "" && attempt <= docnumber.MaxAttempts && errors.Is(err, document.ErrConflict) {
			continue
		}
		return quotedomain.ConvertToInvoiceResponse{}, err
	}

	s.audit(ctx, orgID, "quote.convert_to_invoice", resp.Quote.ID, map[string]any{
		"invoice_id":     resp.Invoice.ID.String(),
		"invoice_number": resp.Invoice.InvoiceNumber,
	})
	return resp, nil
}

// convertTx performs one conversion attempt inside tx. The attempt number
// selects between counter allocation and the snowflake fallback when no
// invoice number was supplied.
func (s *Service) convertTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, req quotedomain.ConvertToInvoiceRequest, supplied string, attempt int, resp *quotedomain.ConvertToInvoiceResponse) error {
	quote, err := s.repo.FindForUpdate(ctx, tx, orgID, id)
	if err != nil {
		return document.WrapStorage(err)
	}
	if quote == nil {
		return &document.NotFoundError{Kind: "quote", ID: id.String()}
	}
	next, err := quotedomain.Next(quote.Status, quotedomain.TriggerConvert)
	if err != nil {
		return err
	}

	quoteItems, err := s.repo.ListItems(ctx, tx, quote.ID)
	if err != nil {
		return document.WrapStorage(err)
	}
	if len(quoteItems) == 0 {
		return document.NewValidationError("items", "required", "an empty quote cannot be converted")
	}

	number := supplied
	if number == "" {
		if attempt > docnumber.MaxAttempts {
			number = s.numbers.Fallback(docnumber.DocTypeInvoice)
		} else {
			allocated, err := s.numbers.NextInvoiceNumber(ctx, tx, orgID)
			if err != nil {
				if errors.Is(err, document.ErrConflict) {
					return err
				}
				return document.WrapStorage(err)
			}
			number = allocated
		}
	}

	now := s.clock.Now()
	invoice := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		InvoiceNumber: number,
		QuoteID:       &quote.ID,
		CustomerID:    quote.CustomerID,
		Currency:      quote.Currency,
		Discount:      req.Discount,
		GST:           req.GST,
		IssuedDate:    now,
		DueDate:       req.DueDate,
		Status:        invoicedomain.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	invoice.Items = copyItems(s.genID, invoice.ID, quoteItems, now)
	invoice.Amount = invoiceTotal(invoice.Items, req.Discount, req.GST)

	if err := s.invoiceRepo.Insert(ctx, tx, &invoice); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &document.ConflictError{Resource: "invoice_number", Value: number}
		}
		return document.WrapStorage(err)
	}
	if err := s.invoiceRepo.InsertHistory(ctx, tx, &invoicedomain.InvoiceStatusHistory{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		InvoiceID: invoice.ID,
		Status:    invoicedomain.StatusDraft,
		CreatedAt: now,
	}); err != nil {
		return document.WrapStorage(err)
	}

	previous := quote.Status
	quote.Status = next
	quote.ConvertedDate = &now
	quote.InvoiceID = &invoice.ID
	quote.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, quote); err != nil {
		return document.WrapStorage(err)
	}
	if err := s.repo.InsertHistory(ctx, tx, &quotedomain.QuoteStatusHistory{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		QuoteID:        quote.ID,
		Status:         next,
		PreviousStatus: &previous,
		CreatedAt:      now,
	}); err != nil {
		return document.WrapStorage(err)
	}

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID: orgID,
		Type:  events.EventQuoteConverted,
		Payload: events.QuotePayload{
			QuoteID:     quote.ID.String(),
			QuoteNumber: quote.QuoteNumber,
			Status:      string(next),
			InvoiceID:   invoice.ID.String(),
		}.ToMap(),
	}); err != nil {
		return document.WrapStorage(err)
	}
	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID: orgID,
		Type:  events.EventInvoiceCreated,
		Payload: events.InvoicePayload{
			InvoiceID:     invoice.ID.String(),
			InvoiceNumber: invoice.InvoiceNumber,
			Status:        string(invoice.Status),
			QuoteID:       quote.ID.String(),
		}.ToMap(),
	}); err != nil {
		return document.WrapStorage(err)
	}

	quote.Items = quoteItems
	*resp = quotedomain.ConvertToInvoiceResponse{Quote: *quote, Invoice: invoice}
	return nil
}

// copyItems duplicates quote lines onto the invoice, keeping description,
// quantity, price, position, and per-line detail intact.
func copyItems(genID *snowflake.Node, invoiceID snowflake.ID, items []quotedomain.QuoteItem, now time.Time) []invoicedomain.InvoiceItem {
	out := make([]invoicedomain.InvoiceItem, 0, len(items))
	for _, item := range items {
		out = append(out, invoicedomain.InvoiceItem{
			ID:          genID.Generate(),
			InvoiceID:   invoiceID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       money.LineTotal(item.Quantity, item.UnitPrice),
			Position:    item.Position,
			ProductID:   item.ProductID,
			Colors:      item.Colors,
			Notes:       item.Notes,
			CreatedAt:   now,
		})
	}
	return out
}

func invoiceTotal(items []invoicedomain.InvoiceItem, discount, gst decimal.Decimal) decimal.Decimal {
	moneyItems := make([]money.Item, 0, len(items))
	for _, item := range items {
		moneyItems = append(moneyItems, money.Item{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return money.ComputeTotals(moneyItems, discount, gst).GrandTotal
}
