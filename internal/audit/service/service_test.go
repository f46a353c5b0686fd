package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/quoteflow/internal/audit/domain"
	auditrepository "github.com/smallbiznis/quoteflow/internal/audit/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuditTest(t *testing.T) auditdomain.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepository.Provide()})
}

func TestAuditLogRoundTrip(t *testing.T) {
	svc := setupAuditTest(t)
	ctx := context.Background()
	org := snowflake.ID(9)
	target := "12345"

	err := svc.AuditLog(ctx, &org, string(auditdomain.ActorTypeUser), nil, "quote.sent", "quote", &target, map[string]any{
		"quote_number": "Q-2026-000001",
	})
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}

	entries, err := svc.List(ctx, auditdomain.ListFilter{OrgID: org, Action: "quote.sent"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].TargetType != "quote" || entries[0].TargetID == nil || *entries[0].TargetID != target {
		t.Fatalf("unexpected target: %+v", entries[0])
	}
	if entries[0].Metadata["quote_number"] != "Q-2026-000001" {
		t.Fatalf("metadata not persisted: %+v", entries[0].Metadata)
	}
}

func TestAuditLogSkipsEmptyAction(t *testing.T) {
	svc := setupAuditTest(t)

	if err := svc.AuditLog(context.Background(), nil, "", nil, "  ", "quote", nil, nil); err != nil {
		t.Fatalf("empty action should be a no-op, got %v", err)
	}
	entries, err := svc.List(context.Background(), auditdomain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
