package docnumber

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quoteflow/internal/clock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupNumberingTest(t *testing.T) (*Service, *gorm.DB, *clock.Fake) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&DocumentCounter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fake := clock.NewFake(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{Log: zap.NewNop(), GenID: node, Clock: fake})
	return svc, db, fake
}

func TestNextQuoteNumberSequence(t *testing.T) {
	svc, db, _ := setupNumberingTest(t)
	ctx := context.Background()
	org := snowflake.ID(42)

	first, err := svc.NextQuoteNumber(ctx, db, org)
	if err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	if first != "Q-2026-000001" {
		t.Fatalf("first = %q, want Q-2026-000001", first)
	}

	second, err := svc.NextQuoteNumber(ctx, db, org)
	if err != nil {
		t.Fatalf("second allocation: %v", err)
	}
	if second != "Q-2026-000002" {
		t.Fatalf("second = %q, want Q-2026-000002", second)
	}
}

func TestQuoteAndInvoiceCountersAreIndependent(t *testing.T) {
	svc, db, _ := setupNumberingTest(t)
	ctx := context.Background()
	org := snowflake.ID(42)

	if _, err := svc.NextQuoteNumber(ctx, db, org); err != nil {
		t.Fatalf("quote allocation: %v", err)
	}
	inv, err := svc.NextInvoiceNumber(ctx, db, org)
	if err != nil {
		t.Fatalf("invoice allocation: %v", err)
	}
	if inv != "INV-2026-000001" {
		t.Fatalf("invoice = %q, want INV-2026-000001", inv)
	}
}

func TestCounterResetsPerYear(t *testing.T) {
	svc, db, fake := setupNumberingTest(t)
	ctx := context.Background()
	org := snowflake.ID(7)

	if _, err := svc.NextQuoteNumber(ctx, db, org); err != nil {
		t.Fatalf("allocation: %v", err)
	}
	fake.Set(time.Date(2027, time.January, 2, 0, 0, 0, 0, time.UTC))
	next, err := svc.NextQuoteNumber(ctx, db, org)
	if err != nil {
		t.Fatalf("allocation after year change: %v", err)
	}
	if next != "Q-2027-000001" {
		t.Fatalf("next = %q, want Q-2027-000001", next)
	}
}

func TestCountersScopedToOrg(t *testing.T) {
	svc, db, _ := setupNumberingTest(t)
	ctx := context.Background()

	if _, err := svc.NextQuoteNumber(ctx, db, snowflake.ID(1)); err != nil {
		t.Fatalf("org 1 allocation: %v", err)
	}
	other, err := svc.NextQuoteNumber(ctx, db, snowflake.ID(2))
	if err != nil {
		t.Fatalf("org 2 allocation: %v", err)
	}
	if other != "Q-2026-000001" {
		t.Fatalf("other org = %q, want Q-2026-000001", other)
	}
}

func TestFallbackIsUniqueAndPrefixed(t *testing.T) {
	svc, _, _ := setupNumberingTest(t)

	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		number := svc.Fallback(DocTypeInvoice)
		if !strings.HasPrefix(number, "INV-") {
			t.Fatalf("fallback %q missing prefix", number)
		}
		if _, dup := seen[number]; dup {
			t.Fatalf("fallback produced duplicate %q", number)
		}
		seen[number] = struct{}{}
	}
}
