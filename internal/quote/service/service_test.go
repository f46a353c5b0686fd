package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/quoteflow/internal/audit/domain"
	auditrepository "github.com/smallbiznis/quoteflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/quoteflow/internal/audit/service"
	"github.com/smallbiznis/quoteflow/internal/clock"
	"github.com/smallbiznis/quoteflow/internal/docnumber"
	"github.com/smallbiznis/quoteflow/internal/document"
	"github.com/smallbiznis/quoteflow/internal/events"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/quoteflow/internal/invoice/repository"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
	quoterepository "github.com/smallbiznis/quoteflow/internal/quote/repository"
)

func setupQuoteTest(t *testing.T) (quotedomain.Service, *gorm.DB, *clock.Fake) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&quotedomain.Quote{},
		&quotedomain.QuoteItem{},
		&quotedomain.QuoteStatusHistory{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceStatusHistory{},
		&docnumber.DocumentCounter{},
		&events.DocumentEvent{},
		&auditdomain.AuditLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fake := clock.NewFake(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	numbers := docnumber.NewService(docnumber.Params{Log: log, GenID: node, Clock: fake})
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditrepository.Provide()})
	svc := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fake,
		Numbers:     numbers,
		Repo:        quoterepository.Provide(),
		InvoiceRepo: invoicerepository.Provide(),
		Outbox:      events.NewOutbox(node),
		AuditSvc:    auditSvc,
	})
	return svc, db, fake
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func createQuote(t *testing.T, svc quotedomain.Service, org snowflake.ID) quotedomain.Quote {
	t.Helper()
	quote, err := svc.Create(context.Background(), quotedomain.CreateQuoteRequest{
		OrgID:      org,
		CustomerID: snowflake.ID(7),
		Currency:   "AUD",
		Discount:   dec("50"),
		GST:        dec("10"),
		Items: []document.ItemInput{
			{Description: "Widget", Quantity: 2, UnitPrice: dec("100")},
		},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	return quote
}

func TestCreateQuoteComputesAmountAndNumber(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	quote := createQuote(t, svc, snowflake.ID(1))

	if quote.QuoteNumber != "Q-2026-000001" {
		t.Fatalf("quote number = %q, want Q-2026-000001", quote.QuoteNumber)
	}
	if quote.Status != quotedomain.StatusDraft {
		t.Fatalf("status = %s, want DRAFT", quote.Status)
	}
	// (200 - 50) * 1.10 = 165.00
	if !quote.Amount.Equal(dec("165")) {
		t.Fatalf("amount = %s, want 165", quote.Amount)
	}
	if len(quote.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(quote.Items))
	}
	if !quote.Items[0].Total.Equal(dec("200")) {
		t.Fatalf("line total = %s, want 200", quote.Items[0].Total)
	}

	history, err := svc.History(context.Background(), quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history rows = %d, want 1", len(history))
	}
	if history[0].PreviousStatus != nil {
		t.Fatalf("creation row previous = %v, want nil", *history[0].PreviousStatus)
	}
}

func TestQuoteLifecycleWritesLinkedHistory(t *testing.T) {
	svc, _, fake := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))

	steps := []func() (quotedomain.Quote, error){
		func() (quotedomain.Quote, error) { return svc.MarkAsSent(ctx, quote.OrgID, quote.ID) },
		func() (quotedomain.Quote, error) { return svc.MarkAsOnHold(ctx, quote.OrgID, quote.ID, "awaiting po") },
		func() (quotedomain.Quote, error) { return svc.MarkAsSent(ctx, quote.OrgID, quote.ID) },
		func() (quotedomain.Quote, error) { return svc.MarkAsAccepted(ctx, quote.OrgID, quote.ID) },
	}
	for i, step := range steps {
		fake.Advance(time.Minute)
		if _, err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	got, err := svc.GetByID(ctx, quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != quotedomain.StatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", got.Status)
	}
	if got.AcceptedDate == nil {
		t.Fatal("accepted date not set")
	}

	history, err := svc.History(ctx, quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(steps)+1 {
		t.Fatalf("history rows = %d, want %d", len(history), len(steps)+1)
	}
	for i := 1; i < len(history); i++ {
		if history[i].PreviousStatus == nil {
			t.Fatalf("row %d has no previous status", i)
		}
		if *history[i].PreviousStatus != history[i-1].Status {
			t.Fatalf("row %d previous = %s, want %s", i, *history[i].PreviousStatus, history[i-1].Status)
		}
	}
}

func TestInvalidTransitionLeavesQuoteUntouched(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))

	// A draft cannot be accepted before it is sent.
	_, err := svc.MarkAsAccepted(ctx, quote.OrgID, quote.ID)
	if !errors.Is(err, document.ErrInvalidTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
	var invalid *document.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %T, want *InvalidTransitionError", err)
	}
	if invalid.Status != string(quotedomain.StatusDraft) {
		t.Fatalf("error names status %s, want DRAFT", invalid.Status)
	}

	got, err := svc.GetByID(ctx, quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != quotedomain.StatusDraft {
		t.Fatalf("status = %s, want DRAFT unchanged", got.Status)
	}
	history, err := svc.History(ctx, quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history rows = %d, want only the creation row", len(history))
	}
}

func TestRejectionRequiresReason(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))
	if _, err := svc.MarkAsSent(ctx, quote.OrgID, quote.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := svc.MarkAsRejected(ctx, quote.OrgID, quote.ID, "  "); !errors.Is(err, document.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	rejected, err := svc.MarkAsRejected(ctx, quote.OrgID, quote.ID, "price too high")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectReason == nil || *rejected.RejectReason != "price too high" {
		t.Fatalf("reject reason = %v, want recorded", rejected.RejectReason)
	}

	history, err := svc.History(ctx, quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	last := history[len(history)-1]
	if last.Note == nil || *last.Note != "price too high" {
		t.Fatalf("history note = %v, want the rejection reason", last.Note)
	}
}

func TestReplaceItemsRecomputesAmount(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))

	updated, err := svc.ReplaceItems(ctx, quote.OrgID, quote.ID, quotedomain.ReplaceItemsRequest{
		Discount: dec("0"),
		GST:      dec("10"),
		Items: []document.ItemInput{
			{Description: "Widget", Quantity: 1, UnitPrice: dec("100")},
			{Description: "Gadget", Quantity: 3, UnitPrice: dec("25.50")},
		},
	})
	if err != nil {
		t.Fatalf("replace items: %v", err)
	}
	// (100 + 76.50) * 1.10 = 194.15
	if !updated.Amount.Equal(dec("194.15")) {
		t.Fatalf("amount = %s, want 194.15", updated.Amount)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(updated.Items))
	}
	if updated.Items[1].Position != 1 {
		t.Fatalf("second item position = %d, want 1", updated.Items[1].Position)
	}
}

func TestReplaceItemsRejectedAfterAcceptance(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))
	if _, err := svc.MarkAsSent(ctx, quote.OrgID, quote.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.MarkAsAccepted(ctx, quote.OrgID, quote.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := svc.ReplaceItems(ctx, quote.OrgID, quote.ID, quotedomain.ReplaceItemsRequest{
		Items: []document.ItemInput{{Description: "Widget", Quantity: 1, UnitPrice: dec("1")}},
	})
	if !errors.Is(err, document.ErrInvalidTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

func TestCreateVersionLinksParent(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	ctx := context.Background()
	parent := createQuote(t, svc, snowflake.ID(1))

	revision, err := svc.Create(ctx, quotedomain.CreateQuoteRequest{
		OrgID:         parent.OrgID,
		CustomerID:    parent.CustomerID,
		Currency:      parent.Currency,
		Discount:      dec("0"),
		GST:           dec("10"),
		ParentQuoteID: &parent.ID,
		Items: []document.ItemInput{
			{Description: "Widget", Quantity: 2, UnitPrice: dec("95")},
		},
	})
	if err != nil {
		t.Fatalf("create revision: %v", err)
	}
	if revision.VersionNumber != parent.VersionNumber+1 {
		t.Fatalf("version = %d, want %d", revision.VersionNumber, parent.VersionNumber+1)
	}
	if revision.ParentQuoteID == nil || *revision.ParentQuoteID != parent.ID {
		t.Fatal("revision does not reference its parent")
	}
	if revision.QuoteNumber == parent.QuoteNumber {
		t.Fatal("revision reused the parent quote number")
	}
}

func TestConversionCopiesItemsAndLinksBothSides(t *testing.T) {
	svc, db, _ := setupQuoteTest(t)
	ctx := context.Background()
	org := snowflake.ID(1)

	quote, err := svc.Create(ctx, quotedomain.CreateQuoteRequest{
		OrgID:      org,
		CustomerID: snowflake.ID(7),
		Currency:   "AUD",
		Discount:   dec("0"),
		GST:        dec("10"),
		Items: []document.ItemInput{
			{Description: "Design", Quantity: 1, UnitPrice: dec("500"), Colors: []string{"black", "gold"}},
			{Description: "Print run", Quantity: 200, UnitPrice: dec("1.25")},
			{Description: "Delivery", Quantity: 1, UnitPrice: dec("40"), Notes: "metro only"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.MarkAsSent(ctx, org, quote.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.MarkAsAccepted(ctx, org, quote.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	resp, err := svc.ConvertToInvoice(ctx, org, quote.ID, quotedomain.ConvertToInvoiceRequest{
		Discount: dec("0"),
		GST:      dec("15"),
		DueDate:  time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if resp.Quote.Status != quotedomain.StatusConverted {
		t.Fatalf("quote status = %s, want CONVERTED", resp.Quote.Status)
	}
	if resp.Quote.InvoiceID == nil || *resp.Quote.InvoiceID != resp.Invoice.ID {
		t.Fatal("quote does not reference the new invoice")
	}
	if resp.Invoice.QuoteID == nil || *resp.Invoice.QuoteID != quote.ID {
		t.Fatal("invoice does not reference its quote")
	}
	if resp.Invoice.Status != invoicedomain.StatusDraft {
		t.Fatalf("invoice status = %s, want DRAFT", resp.Invoice.Status)
	}
	if resp.Invoice.InvoiceNumber != "INV-2026-000001" {
		t.Fatalf("invoice number = %q, want INV-2026-000001", resp.Invoice.InvoiceNumber)
	}

	if len(resp.Invoice.Items) != 3 {
		t.Fatalf("invoice items = %d, want 3", len(resp.Invoice.Items))
	}
	for i, item := range resp.Invoice.Items {
		want := resp.Quote.Items[i]
		if item.Description != want.Description || item.Quantity != want.Quantity || !item.UnitPrice.Equal(want.UnitPrice) || item.Position != want.Position {
			t.Fatalf("item %d differs from quote line: %+v vs %+v", i, item, want)
		}
	}
	if len(resp.Invoice.Items[0].Colors) != 2 {
		t.Fatalf("colors = %v, want copied", resp.Invoice.Items[0].Colors)
	}

	// The invoice keeps its own rate: (500 + 250 + 40) * 1.15 = 908.50.
	if !resp.Invoice.Amount.Equal(dec("908.50")) {
		t.Fatalf("invoice amount = %s, want 908.50", resp.Invoice.Amount)
	}

	var eventCount int64
	if err := db.Model(&events.DocumentEvent{}).Where("event_type = ?", events.EventQuoteConverted).Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 1 {
		t.Fatalf("converted events = %d, want 1", eventCount)
	}
}

func TestConversionOfUnacceptedQuoteCreatesNothing(t *testing.T) {
	svc, db, _ := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))
	if _, err := svc.MarkAsSent(ctx, quote.OrgID, quote.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	_, err := svc.ConvertToInvoice(ctx, quote.OrgID, quote.ID, quotedomain.ConvertToInvoiceRequest{
		GST:     dec("10"),
		DueDate: time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, document.ErrInvalidTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}

	var invoiceCount int64
	if err := db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if invoiceCount != 0 {
		t.Fatalf("invoices = %d, want none after failed conversion", invoiceCount)
	}
	got, err := svc.GetByID(ctx, quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != quotedomain.StatusSent {
		t.Fatalf("status = %s, want SENT unchanged", got.Status)
	}
}

func TestQuoteNotVisibleAcrossOrgs(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))

	_, err := svc.GetByID(ctx, snowflake.ID(2), quote.ID)
	if !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("err = %v, want not found for a different org", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	ctx := context.Background()
	org := snowflake.ID(1)
	first := createQuote(t, svc, org)
	createQuote(t, svc, org)
	if _, err := svc.MarkAsSent(ctx, org, first.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	resp, err := svc.List(ctx, quotedomain.ListQuotesRequest{OrgID: org, Status: quotedomain.StatusSent})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.PageInfo.TotalCount != 1 || len(resp.Quotes) != 1 {
		t.Fatalf("got %d/%d quotes, want exactly the sent one", len(resp.Quotes), resp.PageInfo.TotalCount)
	}
	if resp.Quotes[0].ID != first.ID {
		t.Fatalf("listed quote = %d, want %d", resp.Quotes[0].ID, first.ID)
	}
}

func TestHeldQuoteCanExpire(t *testing.T) {
	svc, _, _ := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))

	if _, err := svc.MarkAsSent(ctx, quote.OrgID, quote.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.MarkAsOnHold(ctx, quote.OrgID, quote.ID, "awaiting po"); err != nil {
		t.Fatalf("hold: %v", err)
	}

	// A hold does not stop the validity clock.
	expired, err := svc.MarkAsExpired(ctx, quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("expire held quote: %v", err)
	}
	if expired.Status != quotedomain.StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", expired.Status)
	}

	history, err := svc.History(ctx, quote.OrgID, quote.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	last := history[len(history)-1]
	if last.Status != quotedomain.StatusExpired || last.PreviousStatus == nil || *last.PreviousStatus != quotedomain.StatusOnHold {
		t.Fatalf("last history row = %s from %v, want EXPIRED from ON_HOLD", last.Status, last.PreviousStatus)
	}
}

func TestConversionFallsBackWhenInvoiceNumberTaken(t *testing.T) {
	svc, db, _ := setupQuoteTest(t)
	ctx := context.Background()
	quote := createQuote(t, svc, snowflake.ID(1))

	// Occupy the number the invoice counter would hand out first.
	occupied := invoicedomain.Invoice{
		ID:            snowflake.ID(90001),
		OrgID:         quote.OrgID,
		InvoiceNumber: "INV-2026-000001",
		CustomerID:    snowflake.ID(7),
		Currency:      "AUD",
		IssuedDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		Status:        invoicedomain.StatusDraft,
	}
	if err := db.Create(&occupied).Error; err != nil {
		t.Fatalf("seed occupied number: %v", err)
	}

	if _, err := svc.MarkAsSent(ctx, quote.OrgID, quote.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.MarkAsAccepted(ctx, quote.OrgID, quote.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	resp, err := svc.ConvertToInvoice(ctx, quote.OrgID, quote.ID, quotedomain.ConvertToInvoiceRequest{
		GST:     dec("10"),
		DueDate: time.Date(2026, time.April, 9, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if resp.Invoice.InvoiceNumber == occupied.InvoiceNumber {
		t.Fatalf("conversion reused occupied number %q", occupied.InvoiceNumber)
	}
	if !strings.HasPrefix(resp.Invoice.InvoiceNumber, "INV-") {
		t.Fatalf("invoice number = %q, want INV- prefix", resp.Invoice.InvoiceNumber)
	}
	if resp.Quote.Status != quotedomain.StatusConverted {
		t.Fatalf("quote status = %s, want CONVERTED", resp.Quote.Status)
	}
}
