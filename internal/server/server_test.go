package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/quoteflow/internal/audit/domain"
	auditrepository "github.com/smallbiznis/quoteflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/quoteflow/internal/audit/service"
	"github.com/smallbiznis/quoteflow/internal/clock"
	"github.com/smallbiznis/quoteflow/internal/config"
	"github.com/smallbiznis/quoteflow/internal/docnumber"
	"github.com/smallbiznis/quoteflow/internal/events"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/quoteflow/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/quoteflow/internal/invoice/service"
	paymentdomain "github.com/smallbiznis/quoteflow/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/quoteflow/internal/payment/repository"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
	quoterepository "github.com/smallbiznis/quoteflow/internal/quote/repository"
	quoteservice "github.com/smallbiznis/quoteflow/internal/quote/service"
	"github.com/smallbiznis/quoteflow/internal/render"
)

func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		&paymentdomain.Payment{},
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
	outbox := events.NewOutbox(node)
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditrepository.Provide()})
	quoteSvc := quoteservice.NewService(quoteservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Numbers: numbers,
		Repo: quoterepository.Provide(), InvoiceRepo: invoicerepository.Provide(),
		Outbox: outbox, AuditSvc: auditSvc,
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Numbers: numbers,
		Repo: invoicerepository.Provide(), PaymentRepo: paymentrepository.Provide(),
		Outbox: outbox, AuditSvc: auditSvc,
	})

	cfg := config.Config{Environment: "test", Brand: config.BrandConfig{CompanyName: "Acme Joinery"}}
	srv := NewServer(Params{
		Cfg: cfg, Log: log, DB: db,
		QuoteSvc: quoteSvc, InvoiceSvc: invoiceSvc,
		Renderer: render.NewRenderer(),
	})
	engine := NewEngine(cfg, log)
	srv.RegisterRoutes(engine)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-Id", "1001")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func createQuoteHTTP(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/v1/quotes", map[string]any{
		"customer_id": "77",
		"currency":    "AUD",
		"discount":    "50",
		"gst":         "10",
		"items": []map[string]any{
			{"description": "Widget", "quantity": 2, "unit_price": "100"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create quote = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			ID     json.Number `json:"ID"`
			Amount string      `json:"Amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Data.ID.String()
}

func TestCreateQuoteEndpoint(t *testing.T) {
	engine := setupTestServer(t)
	id := createQuoteHTTP(t, engine)
	if id == "" || id == "0" {
		t.Fatalf("quote id = %q", id)
	}

	rec := doJSON(t, engine, http.MethodGet, "/v1/quotes/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get quote = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Q-2026-000001") {
		t.Fatalf("quote number missing from response: %s", rec.Body.String())
	}
}

func TestMissingOrgHeaderRejected(t *testing.T) {
	engine := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/quotes", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without org header", rec.Code)
	}
}

func TestInvalidTransitionReturnsConflict(t *testing.T) {
	engine := setupTestServer(t)
	id := createQuoteHTTP(t, engine)

	// A draft cannot be accepted before it is sent.
	rec := doJSON(t, engine, http.MethodPost, "/v1/quotes/"+id+"/accept", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid_transition") {
		t.Fatalf("error code missing: %s", rec.Body.String())
	}
}

func TestUnknownQuoteReturnsNotFound(t *testing.T) {
	engine := setupTestServer(t)
	rec := doJSON(t, engine, http.MethodGet, "/v1/quotes/999999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestQuoteLifecycleOverHTTP(t *testing.T) {
	engine := setupTestServer(t)
	id := createQuoteHTTP(t, engine)

	for _, step := range []struct {
		path string
		body any
	}{
		{path: "/send"},
		{path: "/reject", body: map[string]any{"reason": "budget cut"}},
	} {
		rec := doJSON(t, engine, http.MethodPost, "/v1/quotes/"+id+step.path, step.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d: %s", step.path, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, engine, http.MethodGet, "/v1/quotes/"+id+"/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d: %s", rec.Code, rec.Body.String())
	}
	var history struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Data) != 3 {
		t.Fatalf("history rows = %d, want 3", len(history.Data))
	}
}

func TestConvertAndPayOverHTTP(t *testing.T) {
	engine := setupTestServer(t)
	id := createQuoteHTTP(t, engine)

	for _, path := range []string{"/send", "/accept"} {
		rec := doJSON(t, engine, http.MethodPost, "/v1/quotes/"+id+path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d: %s", path, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, engine, http.MethodPost, "/v1/quotes/"+id+"/convert", map[string]any{
		"gst":      "10",
		"due_date": "2026-04-09T00:00:00Z",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("convert = %d: %s", rec.Code, rec.Body.String())
	}
	var converted struct {
		Data struct {
			Invoice struct {
				ID     json.Number `json:"ID"`
				Amount string      `json:"Amount"`
			} `json:"Invoice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &converted); err != nil {
		t.Fatalf("decode conversion: %v", err)
	}
	invoiceID := converted.Data.Invoice.ID.String()

	rec = doJSON(t, engine, http.MethodPost, "/v1/invoices/"+invoiceID+"/issue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("issue = %d: %s", rec.Code, rec.Body.String())
	}

	// (200 - 0) * 1.10 = 220 for the converted invoice.
	rec = doJSON(t, engine, http.MethodPost, "/v1/invoices/"+invoiceID+"/payments", map[string]any{
		"amount": "220",
		"method": "EFT",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("payment = %d: %s", rec.Code, rec.Body.String())
	}
	var paid struct {
		Data struct {
			Settled bool `json:"Settled"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &paid); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if !paid.Data.Settled {
		t.Fatalf("payment did not settle: %s", rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodGet, "/v1/invoices/"+invoiceID+"/html", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("render = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Acme Joinery") {
		t.Fatal("rendered invoice missing company name")
	}
	if !strings.Contains(rec.Body.String(), "INV-2026-000001") {
		t.Fatal("rendered invoice missing number")
	}
}

func TestWriteRateLimitKicksIn(t *testing.T) {
	engine := setupTestServer(t)

	var limited bool
	for i := 0; i < 130; i++ {
		rec := doJSON(t, engine, http.MethodPost, "/v1/quotes", map[string]any{
			"customer_id": "77",
			"items": []map[string]any{
				{"description": fmt.Sprintf("line %d", i), "quantity": 1, "unit_price": "1"},
			},
		})
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("write burst was never rate limited")
	}
}
