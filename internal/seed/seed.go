// Package seed loads a small demo data set through the public quote and
// invoice services, for local development and walkthroughs.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	clockpkg "github.com/smallbiznis/quoteflow/internal/clock"
	"github.com/smallbiznis/quoteflow/internal/document"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
)

const (
	demoOrgID      = snowflake.ID(1)
	demoCustomerID = snowflake.ID(1001)
)

// Seeder drives the demo data load.
type Seeder struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clockpkg.Clock
	quotes   quotedomain.Service
	invoices invoicedomain.Service
}

func New(db *gorm.DB, log *zap.Logger, clk clockpkg.Clock, quotes quotedomain.Service, invoices invoicedomain.Service) *Seeder {
	return &Seeder{
		db:       db,
		log:      log.Named("seed"),
		clock:    clk,
		quotes:   quotes,
		invoices: invoices,
	}
}

// Run loads the demo set once. It goes through the same service operations
// the API uses, so every seeded document carries real history, events, and
// derived amounts. A partial failure logs a warning and continues.
func (s *Seeder) Run(ctx context.Context) error {
	if s.db == nil {
		return errors.New("seed database handle is required")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&quotedomain.Quote{}).Where("org_id = ?", demoOrgID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		s.log.Info("demo data already present, skipping seed")
		return nil
	}

	s.seedAcceptedAndConverted(ctx)
	s.seedOpenQuote(ctx)
	s.seedRejectedQuote(ctx)
	return nil
}

// seedAcceptedAndConverted walks one quote through the full happy path:
// sent, accepted, converted, issued, and settled in two installments.
func (s *Seeder) seedAcceptedAndConverted(ctx context.Context) {
	validUntil := s.clock.Now().AddDate(0, 1, 0)
	quote, err := s.quotes.Create(ctx, quotedomain.CreateQuoteRequest{
		OrgID:      demoOrgID,
		CustomerID: demoCustomerID,
		Currency:   "AUD",
		Discount:   decimal.NewFromInt(50),
		GST:        decimal.NewFromInt(10),
		ValidUntil: &validUntil,
		Items: []document.ItemInput{
			{Description: "Custom joinery design", Quantity: 1, UnitPrice: decimal.NewFromInt(500)},
			{Description: "Hardwood panels", Quantity: 12, UnitPrice: decimal.RequireFromString("85.50"), Colors: []string{"walnut"}},
			{Description: "Installation", Quantity: 1, UnitPrice: decimal.NewFromInt(300), Notes: "metro area only"},
		},
	})
	if err != nil {
		s.log.Warn("seed quote failed", zap.Error(err))
		return
	}
	if _, err := s.quotes.MarkAsSent(ctx, demoOrgID, quote.ID); err != nil {
		s.log.Warn("seed send failed", zap.Error(err))
		return
	}
	if _, err := s.quotes.MarkAsAccepted(ctx, demoOrgID, quote.ID); err != nil {
		s.log.Warn("seed accept failed", zap.Error(err))
		return
	}
	converted, err := s.quotes.ConvertToInvoice(ctx, demoOrgID, quote.ID, quotedomain.ConvertToInvoiceRequest{
		Discount: quote.Discount,
		GST:      quote.GST,
		DueDate:  s.clock.Now().AddDate(0, 0, 30),
	})
	if err != nil {
		s.log.Warn("seed conversion failed", zap.Error(err))
		return
	}
	invoiceID := converted.Invoice.ID
	if _, err := s.invoices.MarkAsPending(ctx, demoOrgID, invoiceID); err != nil {
		s.log.Warn("seed issue failed", zap.Error(err))
		return
	}

	half := converted.Invoice.Amount.Div(decimal.NewFromInt(2)).Round(2)
	rest := converted.Invoice.Amount.Sub(half)
	for _, amount := range []decimal.Decimal{half, rest} {
		if _, err := s.invoices.AddPayment(ctx, demoOrgID, invoiceID, invoicedomain.AddPaymentRequest{
			Amount: amount,
			Method: "EFT",
		}); err != nil {
			s.log.Warn("seed payment failed", zap.Error(err))
			return
		}
	}
	s.log.Info("seeded settled invoice",
		zap.String("quote", quote.QuoteNumber),
		zap.String("invoice", converted.Invoice.InvoiceNumber),
	)
}

func (s *Seeder) seedOpenQuote(ctx context.Context) {
	quote, err := s.quotes.Create(ctx, quotedomain.CreateQuoteRequest{
		OrgID:      demoOrgID,
		CustomerID: demoCustomerID,
		Currency:   "AUD",
		GST:        decimal.NewFromInt(10),
		Items: []document.ItemInput{
			{Description: "Office fit-out consultation", Quantity: 2, UnitPrice: decimal.NewFromInt(180)},
		},
	})
	if err != nil {
		s.log.Warn("seed open quote failed", zap.Error(err))
		return
	}
	if _, err := s.quotes.MarkAsSent(ctx, demoOrgID, quote.ID); err != nil {
		s.log.Warn("seed open quote send failed", zap.Error(err))
	}
}

func (s *Seeder) seedRejectedQuote(ctx context.Context) {
	quote, err := s.quotes.Create(ctx, quotedomain.CreateQuoteRequest{
		OrgID:      demoOrgID,
		CustomerID: demoCustomerID,
		Currency:   "AUD",
		GST:        decimal.NewFromInt(10),
		Items: []document.ItemInput{
			{Description: "Reception counter rebuild", Quantity: 1, UnitPrice: decimal.NewFromInt(4200)},
		},
	})
	if err != nil {
		s.log.Warn("seed rejected quote failed", zap.Error(err))
		return
	}
	if _, err := s.quotes.MarkAsSent(ctx, demoOrgID, quote.ID); err != nil {
		s.log.Warn("seed rejected quote send failed", zap.Error(err))
		return
	}
	if _, err := s.quotes.MarkAsRejected(ctx, demoOrgID, quote.ID, "went with another supplier"); err != nil {
		s.log.Warn("seed rejection failed", zap.Error(err))
	}
}

