package events

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOutboxTest(t *testing.T) (*Outbox, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&DocumentEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewOutbox(node), db
}

func TestPublishTxStoresEvent(t *testing.T) {
	outbox, db := setupOutboxTest(t)
	ctx := context.Background()

	err := outbox.PublishTx(ctx, db, Event{
		OrgID:   snowflake.ID(5),
		Type:    EventQuoteSent,
		Payload: QuotePayload{QuoteID: "1", QuoteNumber: "Q-2026-000001", Status: "SENT"}.ToMap(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	var rows []DocumentEvent
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rows))
	}
	if rows[0].EventType != EventQuoteSent || rows[0].Published {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
	if rows[0].Payload["quote_number"] != "Q-2026-000001" {
		t.Fatalf("payload not persisted: %+v", rows[0].Payload)
	}
}

func TestPublishTxDedupes(t *testing.T) {
	outbox, db := setupOutboxTest(t)
	ctx := context.Background()

	event := Event{
		OrgID:     snowflake.ID(5),
		Type:      EventInvoicePaid,
		Payload:   map[string]any{"invoice_id": "9"},
		DedupeKey: "invoice.paid:9",
	}
	if err := outbox.PublishTx(ctx, db, event); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := outbox.PublishTx(ctx, db, event); err != nil {
		t.Fatalf("duplicate publish should be dropped silently: %v", err)
	}

	var count int64
	if err := db.Model(&DocumentEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event after dedupe, got %d", count)
	}
}

func TestPublishTxValidates(t *testing.T) {
	outbox, db := setupOutboxTest(t)
	ctx := context.Background()

	if err := outbox.PublishTx(ctx, db, Event{OrgID: 0, Type: EventQuoteSent}); err == nil {
		t.Fatalf("expected error for missing org id")
	}
	if err := outbox.PublishTx(ctx, db, Event{OrgID: 1, Type: "  "}); err == nil {
		t.Fatalf("expected error for missing event type")
	}
}
