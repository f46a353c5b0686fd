// Package service implements the quote lifecycle on top of the quote
// repository, keeping the document row, its history, and the outbox in one
// transaction per operation.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
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
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clockpkg.Clock
	Numbers     *docnumber.Service
	Repo        quotedomain.Repository
	InvoiceRepo invoicedomain.Repository
	Outbox      *events.Outbox
	AuditSvc    auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clockpkg.Clock
	numbers     *docnumber.Service
	repo        quotedomain.Repository
	invoiceRepo invoicedomain.Repository
	outbox      *events.Outbox
	auditSvc    auditdomain.Service
}

func NewService(p Params) quotedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("quote.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		numbers:     p.Numbers,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		outbox:      p.Outbox,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req quotedomain.CreateQuoteRequest) (quotedomain.Quote, error) {
	if req.OrgID == 0 {
		return quotedomain.Quote{}, document.NewValidationError("org_id", "required", "org id is required")
	}
	if req.CustomerID == 0 {
		return quotedomain.Quote{}, document.NewValidationError("customer_id", "required", "customer id is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "AUD"
	}
	if len(currency) != 3 {
		return quotedomain.Quote{}, document.NewValidationError("currency", "iso4217", "currency must be a 3-letter code")
	}
	if err := document.ValidateAmounts(req.Discount, req.GST); err != nil {
		return quotedomain.Quote{}, err
	}
	if err := document.ValidateItems(req.Items); err != nil {
		return quotedomain.Quote{}, err
	}

	supplied := strings.TrimSpace(req.QuoteNumber)

	var created quotedomain.Quote
	var err error
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			version := 1
			if req.ParentQuoteID != nil {
				parent, err := s.repo.FindByID(ctx, tx, req.OrgID, *req.ParentQuoteID)
				if err != nil {
					return document.WrapStorage(err)
				}
				if parent == nil {
					return &document.NotFoundError{Kind: "quote", ID: req.ParentQuoteID.String()}
				}
				version = parent.VersionNumber + 1
			}

			number := supplied
			if number == "" {
				if attempt > docnumber.MaxAttempts {
					number = s.numbers.Fallback(docnumber.DocTypeQuote)
				} else {
					allocated, err := s.numbers.NextQuoteNumber(ctx, tx, req.OrgID)
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
			quote := quotedomain.Quote{
				ID:            s.genID.Generate(),
				OrgID:         req.OrgID,
				QuoteNumber:   number,
				VersionNumber: version,
				ParentQuoteID: req.ParentQuoteID,
				CustomerID:    req.CustomerID,
				Currency:      currency,
				Discount:      req.Discount,
				GST:           req.GST,
				Amount:        totals.GrandTotal,
				IssuedDate:    issued,
				ValidUntil:    req.ValidUntil,
				Status:        quotedomain.StatusDraft,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			quote.Items = buildItems(s.genID, quote.ID, req.Items, now)

			if err := s.repo.Insert(ctx, tx, &quote); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return &document.ConflictError{Resource: "quote_number", Value: number}
				}
				return document.WrapStorage(err)
			}
			if err := s.repo.InsertHistory(ctx, tx, &quotedomain.QuoteStatusHistory{
				ID:        s.genID.Generate(),
				OrgID:     quote.OrgID,
				QuoteID:   quote.ID,
				Status:    quotedomain.StatusDraft,
				CreatedAt: now,
			}); err != nil {
				return document.WrapStorage(err)
			}
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				OrgID: quote.OrgID,
				Type:  events.EventQuoteCreated,
				Payload: events.QuotePayload{
					QuoteID:     quote.ID.String(),
					QuoteNumber: quote.QuoteNumber,
					Status:      string(quote.Status),
				}.ToMap(),
			}); err != nil {
				return document.WrapStorage(err)
			}
			created = quote
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
		return quotedomain.Quote{}, err
	}

	s.audit(ctx, created.OrgID, "quote.create", created.ID, map[string]any{
		"quote_number": created.QuoteNumber,
		"version":      created.VersionNumber,
	})
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, orgID, id snowflake.ID) (quotedomain.Quote, error) {
	quote, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return quotedomain.Quote{}, document.WrapStorage(err)
	}
	if quote == nil {
		return quotedomain.Quote{}, &document.NotFoundError{Kind: "quote", ID: id.String()}
	}
	return *quote, nil
}

func (s *Service) List(ctx context.Context, req quotedomain.ListQuotesRequest) (quotedomain.ListQuotesResponse, error) {
	if req.OrgID == 0 {
		return quotedomain.ListQuotesResponse{}, document.NewValidationError("org_id", "required", "org id is required")
	}
	quotes, total, err := s.repo.List(ctx, s.db, req)
	if err != nil {
		return quotedomain.ListQuotesResponse{}, document.WrapStorage(err)
	}
	page := req.Page.Normalize()
	return quotedomain.ListQuotesResponse{
		Quotes:   quotes,
		PageInfo: page.Info(total),
	}, nil
}

func (s *Service) ReplaceItems(ctx context.Context, orgID, id snowflake.ID, req quotedomain.ReplaceItemsRequest) (quotedomain.Quote, error) {
	if err := document.ValidateAmounts(req.Discount, req.GST); err != nil {
		return quotedomain.Quote{}, err
	}
	if err := document.ValidateItems(req.Items); err != nil {
		return quotedomain.Quote{}, err
	}

	var updated quotedomain.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := s.repo.FindForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return document.WrapStorage(err)
		}
		if quote == nil {
			return &document.NotFoundError{Kind: "quote", ID: id.String()}
		}
		if !quote.Status.Editable() {
			return &document.InvalidTransitionError{Status: string(quote.Status), Trigger: string(quotedomain.TriggerReplaceItems)}
		}

		now := s.clock.Now()
		items := buildItems(s.genID, quote.ID, req.Items, now)
		if err := s.repo.ReplaceItems(ctx, tx, quote.ID, items); err != nil {
			return document.WrapStorage(err)
		}

		totals := money.ComputeTotals(document.MoneyItems(req.Items), req.Discount, req.GST)
		quote.Discount = req.Discount
		quote.GST = req.GST
		quote.Amount = totals.GrandTotal
		quote.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, quote); err != nil {
			return document.WrapStorage(err)
		}
		quote.Items = items
		updated = *quote
		return nil
	})
	if err != nil {
		return quotedomain.Quote{}, err
	}

	s.audit(ctx, orgID, "quote.replace_items", updated.ID, map[string]any{
		"item_count": len(updated.Items),
		"amount":     updated.Amount.String(),
	})
	return updated, nil
}

func (s *Service) MarkAsSent(ctx context.Context, orgID, id snowflake.ID) (quotedomain.Quote, error) {
	return s.transition(ctx, orgID, id, transition{
		trigger: quotedomain.TriggerMarkAsSent,
		event:   events.EventQuoteSent,
	})
}

func (s *Service) MarkAsAccepted(ctx context.Context, orgID, id snowflake.ID) (quotedomain.Quote, error) {
	return s.transition(ctx, orgID, id, transition{
		trigger: quotedomain.TriggerMarkAsAccepted,
		event:   events.EventQuoteAccepted,
		apply: func(q *quotedomain.Quote, now time.Time) {
			q.AcceptedDate = &now
		},
	})
}

func (s *Service) MarkAsRejected(ctx context.Context, orgID, id snowflake.ID, reason string) (quotedomain.Quote, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return quotedomain.Quote{}, document.NewValidationError("reason", "required", "a rejection reason is required")
	}
	return s.transition(ctx, orgID, id, transition{
		trigger: quotedomain.TriggerMarkAsRejected,
		event:   events.EventQuoteRejected,
		note:    &reason,
		apply: func(q *quotedomain.Quote, now time.Time) {
			q.RejectedDate = &now
			q.RejectReason = &reason
		},
	})
}

func (s *Service) MarkAsOnHold(ctx context.Context, orgID, id snowflake.ID, note string) (quotedomain.Quote, error) {
	spec := transition{
		trigger: quotedomain.TriggerMarkAsOnHold,
		event:   events.EventQuoteOnHold,
	}
	if note = strings.TrimSpace(note); note != "" {
		spec.note = &note
	}
	return s.transition(ctx, orgID, id, spec)
}

func (s *Service) MarkAsCancelled(ctx context.Context, orgID, id snowflake.ID, reason string) (quotedomain.Quote, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return quotedomain.Quote{}, document.NewValidationError("reason", "required", "a cancellation reason is required")
	}
	return s.transition(ctx, orgID, id, transition{
		trigger: quotedomain.TriggerMarkAsCancelled,
		event:   events.EventQuoteCancelled,
		note:    &reason,
	})
}

func (s *Service) MarkAsExpired(ctx context.Context, orgID, id snowflake.ID) (quotedomain.Quote, error) {
	return s.transition(ctx, orgID, id, transition{
		trigger: quotedomain.TriggerMarkAsExpired,
		event:   events.EventQuoteExpired,
	})
}

func (s *Service) History(ctx context.Context, orgID, id snowflake.ID) ([]quotedomain.QuoteStatusHistory, error) {
	quote, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, document.WrapStorage(err)
	}
	if quote == nil {
		return nil, &document.NotFoundError{Kind: "quote", ID: id.String()}
	}
	entries, err := s.repo.ListHistory(ctx, s.db, orgID, id)
	if err != nil {
		return nil, document.WrapStorage(err)
	}
	return entries, nil
}

// transition describes one status change: the trigger to validate, the
// outbox event to emit, an optional history note, and extra field mutations
// applied atomically with the status write.
type transition struct {
	trigger quotedomain.Trigger
	event   string
	note    *string
	apply   func(q *quotedomain.Quote, now time.Time)
}

func (s *Service) transition(ctx context.Context, orgID, id snowflake.ID, spec transition) (quotedomain.Quote, error) {
	var updated quotedomain.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := s.repo.FindForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return document.WrapStorage(err)
		}
		if quote == nil {
			return &document.NotFoundError{Kind: "quote", ID: id.String()}
		}
		next, err := quotedomain.Next(quote.Status, spec.trigger)
		if err != nil {
			return err
		}

		previous := quote.Status
		now := s.clock.Now()
		quote.Status = next
		quote.UpdatedAt = now
		if spec.apply != nil {
			spec.apply(quote, now)
		}
		if err := s.repo.Update(ctx, tx, quote); err != nil {
			return document.WrapStorage(err)
		}
		if err := s.repo.InsertHistory(ctx, tx, &quotedomain.QuoteStatusHistory{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			QuoteID:        quote.ID,
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
			Payload: events.QuotePayload{
				QuoteID:     quote.ID.String(),
				QuoteNumber: quote.QuoteNumber,
				Status:      string(next),
			}.ToMap(),
		}); err != nil {
			return document.WrapStorage(err)
		}
		updated = *quote
		return nil
	})
	if err != nil {
		return quotedomain.Quote{}, err
	}

	s.audit(ctx, orgID, "quote."+string(spec.trigger), updated.ID, map[string]any{
		"status": string(updated.Status),
	})
	return updated, nil
}

// audit writes a best-effort audit row after the transaction committed; a
// failed audit write never rolls back a completed operation.
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
	_ = s.auditSvc.AuditLog(ctx, &orgID, actorType, actor, action, "quote", &target, metadata)
}

func buildItems(genID *snowflake.Node, quoteID snowflake.ID, inputs []document.ItemInput, now time.Time) []quotedomain.QuoteItem {
	items := make([]quotedomain.QuoteItem, 0, len(inputs))
	for position, input := range inputs {
		items = append(items, quotedomain.QuoteItem{
			ID:          genID.Generate(),
			QuoteID:     quoteID,
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
