// Package service implements the invoice lifecycle. Status changes, the
// payment ledger, history rows, and outbox events share one transaction per
// operation; an invoice's paid position is always recomputed from the
// ledger rather than stored.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/quoteflow/internal/audit/domain"
	clockpkg "github.com/smallbiznis/quoteflow/internal/clock"
	"github.com/smallbiznis/quoteflow/internal/docnumber"
	"github.com/smallbiznis/quoteflow/internal/document"
	"github.com/smallbiznis/quoteflow/internal/events"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	"github.com/smallbiznis/quoteflow/internal/money"
	obscontext "github.com/smallbiznis/quoteflow/internal/observability/context"
	paymentdomain "github.com/smallbiznis/quoteflow/internal/payment/domain"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clockpkg.Clock
	Numbers     *docnumber.Service
	Repo        invoicedomain.Repository
	PaymentRepo paymentdomain.Repository
	Outbox      *events.Outbox
	AuditSvc    auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clockpkg.Clock
	numbers     *docnumber.Service
	repo        invoicedomain.Repository
	paymentRepo paymentdomain.Repository
	outbox      *events.Outbox
	auditSvc    auditdomain.Service
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		numbers:     p.Numbers,
		repo:        p.Repo,
		paymentRepo: p.PaymentRepo,
		outbox:      p.Outbox,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	if req.OrgID == 0 {
		return invoicedomain.Invoice{}, document.NewValidationError("org_id", "required", "org id is required")
	}
	if req.CustomerID == 0 {
		return invoicedomain.Invoice{}, document.NewValidationError("customer_id", "required", "customer id is required")
	}
	if req.DueDate.IsZero() {
		return invoicedomain.Invoice{}, document.NewValidationError("due_date", "required", "a due date is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "AUD"
	}
	if len(currency) != 3 {
		return invoicedomain.Invoice{}, document.NewValidationError("currency", "iso4217", "currency must be a 3-letter code")
	}
	if err := document.ValidateAmounts(req.Discount, req.GST); err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := document.ValidateItems(req.Items); err != nil {
		return invoicedomain.Invoice{}, err
	}

	supplied := strings.TrimSpace(req.InvoiceNumber)

	var created invoicedomain.Invoice
	var err error
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number := supplied
			if number == "" {
				if attempt > docnumber.MaxAttempts {
					number = s.numbers.Fallback(docnumber.DocTypeInvoice)
				} else {
					allocated, err := s.numbers.NextInvoiceNumber(ctx, tx, req.OrgID)
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
			issued := now
			if req.IssuedDate != nil {
				issued = *req.IssuedDate
			}

			totals := money.ComputeTotals(document.MoneyItems(req.Items), req.Discount, req.GST)
			invoice := invoicedomain.Invoice{
				ID:            s.genID.Generate(),
				OrgID:         req.OrgID,
				InvoiceNumber: number,
				CustomerID:    req.CustomerID,
				Currency:      currency,
				Discount:      req.Discount,
				GST:           req.GST,
				Amount:        totals.GrandTotal,
				IssuedDate:    issued,
				DueDate:       req.DueDate,
				Status:        invoicedomain.StatusDraft,
				FileName:      req.FileName,
				FileSize:      req.FileSize,
				FileLocation:  req.FileLocation,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			invoice.Items = buildItems(s.genID, invoice.ID, req.Items, now)

			if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return &document.ConflictError{Resource: "invoice_number", Value: number}
				}
				return document.WrapStorage(err)
			}
			if err := s.repo.InsertHistory(ctx, tx, &invoicedomain.InvoiceStatusHistory{
				ID:        s.genID.Generate(),
				OrgID:     invoice.OrgID,
				InvoiceID: invoice.ID,
				Status:    invoicedomain.StatusDraft,
				CreatedAt: now,
			}); err != nil {
				return document.WrapStorage(err)
			}
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				OrgID: invoice.OrgID,
				Type:  events.EventInvoiceCreated,
				Payload: events.InvoicePayload{
					InvoiceID:     invoice.ID.String(),
					InvoiceNumber: invoice.InvoiceNumber,
					Status:        string(invoice.Status),
				}.ToMap(),
			}); err != nil {
				return document.WrapStorage(err)
			}
			created = invoice
			return nil
		})
		if err == nil {
			break
		}
		// An allocated number can collide with a caller-supplied one
		// already in the table; re-allocate and, past MaxAttempts, fall
		// back to a snowflake-suffixed number. Supplied numbers are the
		// caller's to resolve.
		if supplied == "" && attempt <= docnumber.MaxAttempts && errors.Is(err, document.ErrConflict) {
			continue
		}
		return invoicedomain.Invoice{}, err
	}

	s.audit(ctx, created.OrgID, "invoice.create", created.ID, map[string]any{
		"invoice_number": created.InvoiceNumber,
	})
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, orgID, id snowflake.ID) (invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return invoicedomain.Invoice{}, document.WrapStorage(err)
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, &document.NotFoundError{Kind: "invoice", ID: id.String()}
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	if req.OrgID == 0 {
		return invoicedomain.ListInvoicesResponse{}, document.NewValidationError("org_id", "required", "org id is required")
	}
	invoices, total, err := s.repo.List(ctx, s.db, req)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, document.WrapStorage(err)
	}
	page := req.Page.Normalize()
	return invoicedomain.ListInvoicesResponse{
		Invoices: invoices,
		PageInfo: page.Info(total),
	}, nil
}

func (s *Service) ReplaceItems(ctx context.Context, orgID, id snowflake.ID, req invoicedomain.ReplaceItemsRequest) (invoicedomain.Invoice, error) {
	if err := document.ValidateAmounts(req.Discount, req.GST); err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := document.ValidateItems(req.Items); err != nil {
		return invoicedomain.Invoice{}, err
	}

	var updated invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return document.WrapStorage(err)
		}
		if invoice == nil {
			return &document.NotFoundError{Kind: "invoice", ID: id.String()}
		}
		if !invoice.Status.Editable() {
			return &document.InvalidTransitionError{Status: string(invoice.Status), Trigger: string(invoicedomain.TriggerReplaceItems)}
		}

		now := s.clock.Now()
		items := buildItems(s.genID, invoice.ID, req.Items, now)
		if err := s.repo.ReplaceItems(ctx, tx, invoice.ID, items); err != nil {
			return document.WrapStorage(err)
		}

		totals := money.ComputeTotals(document.MoneyItems(req.Items), req.Discount, req.GST)
		invoice.Discount = req.Discount
		invoice.GST = req.GST
		invoice.Amount = totals.GrandTotal
		invoice.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return document.WrapStorage(err)
		}
		invoice.Items = items
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.audit(ctx, orgID, "invoice.replace_items", updated.ID, map[string]any{
		"item_count": len(updated.Items),
		"amount":     updated.Amount.String(),
	})
	return updated, nil
}

func (s *Service) MarkAsPending(ctx context.Context, orgID, id snowflake.ID) (invoicedomain.Invoice, error) {
	return s.transition(ctx, orgID, id, transition{
		trigger: invoicedomain.TriggerMarkAsPending,
		event:   events.EventInvoicePending,
	})
}

func (s *Service) Cancel(ctx context.Context, orgID, id snowflake.ID, reason string) (invoicedomain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invoicedomain.Invoice{}, document.NewValidationError("reason", "required", "a cancellation reason is required")
	}
	return s.transition(ctx, orgID, id, transition{
		trigger: invoicedomain.TriggerCancel,
		event:   events.EventInvoiceCancelled,
		note:    &reason,
		apply: func(inv *invoicedomain.Invoice, now time.Time) {
			inv.CancelledDate = &now
			inv.CancelReason = &reason
		},
	})
}

func (s *Service) MarkAsOverdue(ctx context.Context, orgID, id snowflake.ID) (invoicedomain.Invoice, error) {
	return s.transition(ctx, orgID, id, transition{
		trigger: invoicedomain.TriggerMarkAsOverdue,
		event:   events.EventInvoiceOverdue,
	})
}

// AddPayment appends one ledger entry and settles the invoice when the
// ledger covers the full amount, within half a minor unit. A payment that
// leaves a balance changes nothing but the ledger: no status flip, no
// history row.
func (s *Service) AddPayment(ctx context.Context, orgID, id snowflake.ID, req invoicedomain.AddPaymentRequest) (invoicedomain.AddPaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return invoicedomain.AddPaymentResponse{}, document.NewValidationError("amount", "positive", "payment amount must be positive")
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return invoicedomain.AddPaymentResponse{}, document.NewValidationError("method", "required", "a payment method is required")
	}

	var resp invoicedomain.AddPaymentResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return document.WrapStorage(err)
		}
		if invoice == nil {
			return &document.NotFoundError{Kind: "invoice", ID: id.String()}
		}
		settledStatus, err := invoicedomain.Next(invoice.Status, invoicedomain.TriggerAddPayment)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		date := now
		if req.Date != nil {
			date = *req.Date
		}
		payment := paymentdomain.Payment{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			InvoiceID: invoice.ID,
			Amount:    req.Amount,
			Method:    method,
			Date:      date,
			Note:      req.Note,
			CreatedAt: now,
		}
		if err := s.paymentRepo.Insert(ctx, tx, &payment); err != nil {
			return document.WrapStorage(err)
		}

		total, err := s.paymentRepo.TotalPaid(ctx, tx, orgID, invoice.ID)
		if err != nil {
			return document.WrapStorage(err)
		}
		settled := money.Settled(total, invoice.Amount)
		if settled {
			previous := invoice.Status
			invoice.Status = settledStatus
			invoice.PaidDate = &now
			invoice.PaymentMethod = &method
			invoice.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, invoice); err != nil {
				return document.WrapStorage(err)
			}
			if err := s.repo.InsertHistory(ctx, tx, &invoicedomain.InvoiceStatusHistory{
				ID:             s.genID.Generate(),
				OrgID:          orgID,
				InvoiceID:      invoice.ID,
				Status:         settledStatus,
				PreviousStatus: &previous,
				CreatedAt:      now,
			}); err != nil {
				return document.WrapStorage(err)
			}
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				OrgID: orgID,
				Type:  events.EventInvoicePaid,
				Payload: events.InvoicePayload{
					InvoiceID:     invoice.ID.String(),
					InvoiceNumber: invoice.InvoiceNumber,
					Status:        string(settledStatus),
				}.ToMap(),
			}); err != nil {
				return document.WrapStorage(err)
			}
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  events.EventPaymentRecorded,
			Payload: events.PaymentPayload{
				PaymentID: payment.ID.String(),
				InvoiceID: invoice.ID.String(),
				Amount:    payment.Amount.String(),
				Method:    payment.Method,
				Settled:   settled,
			}.ToMap(),
		}); err != nil {
			return document.WrapStorage(err)
		}

		resp = invoicedomain.AddPaymentResponse{
			Invoice:   *invoice,
			Payment:   payment,
			TotalPaid: total,
			Settled:   settled,
		}
		return nil
	})
	if err != nil {
		return invoicedomain.AddPaymentResponse{}, err
	}

	s.audit(ctx, orgID, "invoice.add_payment", resp.Invoice.ID, map[string]any{
		"amount":  resp.Payment.Amount.String(),
		"method":  resp.Payment.Method,
		"settled": resp.Settled,
	})
	return resp, nil
}

func (s *Service) History(ctx context.Context, orgID, id snowflake.ID) ([]invoicedomain.InvoiceStatusHistory, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, document.WrapStorage(err)
	}
	if invoice == nil {
		return nil, &document.NotFoundError{Kind: "invoice", ID: id.String()}
	}
	entries, err := s.repo.ListHistory(ctx, s.db, orgID, id)
	if err != nil {
		return nil, document.WrapStorage(err)
	}
	return entries, nil
}

func (s *Service) Payments(ctx context.Context, orgID, id snowflake.ID) ([]paymentdomain.Payment, decimal.Decimal, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, decimal.Zero, document.WrapStorage(err)
	}
	if invoice == nil {
		return nil, decimal.Zero, &document.NotFoundError{Kind: "invoice", ID: id.String()}
	}
	payments, err := s.paymentRepo.ListByInvoice(ctx, s.db, orgID, id)
	if err != nil {
		return nil, decimal.Zero, document.WrapStorage(err)
	}
	total := decimal.Zero
	for _, payment := range payments {
		total = total.Add(payment.Amount)
	}
	return payments, total, nil
}

type transition struct {
	trigger invoicedomain.Trigger
	event   string
	note    *string
	apply   func(inv *invoicedomain.Invoice, now time.Time)
}

func (s *Service) transition(ctx context.Context, orgID, id snowflake.ID, spec transition) (invoicedomain.Invoice, error) {
	var updated invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return document.WrapStorage(err)
		}
		if invoice == nil {
			return &document.NotFoundError{Kind: "invoice", ID: id.String()}
		}
		next, err := invoicedomain.Next(invoice.Status, spec.trigger)
		if err != nil {
			return err
		}

		previous := invoice.Status
		now := s.clock.Now()
		invoice.Status = next
		invoice.UpdatedAt = now
		if spec.apply != nil {
			spec.apply(invoice, now)
		}
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return document.WrapStorage(err)
		}
		if err := s.repo.InsertHistory(ctx, tx, &invoicedomain.InvoiceStatusHistory{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			InvoiceID:      invoice.ID,
			Status:         next,
			PreviousStatus: &previous,
			Note:           spec.note,
			CreatedAt:      now,
		}); err != nil {
			return document.WrapStorage(err)
		}
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  spec.event,
			Payload: events.InvoicePayload{
				InvoiceID:     invoice.ID.String(),
				InvoiceNumber: invoice.InvoiceNumber,
				Status:        string(next),
			}.ToMap(),
		}); err != nil {
			return document.WrapStorage(err)
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.audit(ctx, orgID, "invoice."+string(spec.trigger), updated.ID, map[string]any{
		"status": string(updated.Status),
	})
	return updated, nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, targetID snowflake.ID, metadata map[string]any) {
	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	target := targetID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, actorType, actor, action, "invoice", &target, metadata)
}

func buildItems(genID *snowflake.Node, invoiceID snowflake.ID, inputs []document.ItemInput, now time.Time) []invoicedomain.InvoiceItem {
	items := make([]invoicedomain.InvoiceItem, 0, len(inputs))
	for position, input := range inputs {
		items = append(items, invoicedomain.InvoiceItem{
			ID:          genID.Generate(),
			InvoiceID:   invoiceID,
			Description: strings.TrimSpace(input.Description),
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
			Total:       money.LineTotal(input.Quantity, input.UnitPrice),
			Position:    position,
			ProductID:   input.ProductID,
			Colors:      input.Colors,
			Notes:       input.Notes,
			CreatedAt:   now,
		})
	}
	return items
}
