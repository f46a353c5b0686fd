// Package server exposes the quote and invoice lifecycle over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/quoteflow/internal/config"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	obscontext "github.com/smallbiznis/quoteflow/internal/observability/context"
	"github.com/smallbiznis/quoteflow/internal/observability/logger"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
	"github.com/smallbiznis/quoteflow/internal/render"
)

const orgIDHeader = "X-Org-Id"

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	QuoteSvc   quotedomain.Service
	InvoiceSvc invoicedomain.Service
	Renderer   render.Renderer
}

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	db         *gorm.DB
	quoteSvc   quotedomain.Service
	invoiceSvc invoicedomain.Service
	renderer   render.Renderer
	limiter    *writeLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		db:         p.DB,
		quoteSvc:   p.QuoteSvc,
		invoiceSvc: p.InvoiceSvc,
		renderer:   p.Renderer,
		limiter:    newWriteLimiter(120, time.Minute),
	}
}

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Logger:    log,
		SkipPaths: []string{"/healthz"},
	}))
	return engine
}

// RegisterRoutes mounts the public API.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)

	api := engine.Group("/v1")
	api.Use(s.orgScope())
	api.Use(s.rateLimit())

	quotes := api.Group("/quotes")
	{
		quotes.POST("", s.CreateQuote)
		quotes.GET("", s.ListQuotes)
		quotes.GET("/:id", s.GetQuote)
		quotes.PUT("/:id/items", s.ReplaceQuoteItems)
		quotes.POST("/:id/send", s.MarkQuoteAsSent)
		quotes.POST("/:id/accept", s.MarkQuoteAsAccepted)
		quotes.POST("/:id/reject", s.MarkQuoteAsRejected)
		quotes.POST("/:id/hold", s.MarkQuoteAsOnHold)
		quotes.POST("/:id/cancel", s.MarkQuoteAsCancelled)
		quotes.POST("/:id/expire", s.MarkQuoteAsExpired)
		quotes.POST("/:id/convert", s.ConvertQuote)
		quotes.GET("/:id/history", s.QuoteHistory)
		quotes.GET("/:id/html", s.RenderQuote)
	}

	invoices := api.Group("/invoices")
	{
		invoices.POST("", s.CreateInvoice)
		invoices.GET("", s.ListInvoices)
		invoices.GET("/:id", s.GetInvoice)
		invoices.PUT("/:id/items", s.ReplaceInvoiceItems)
		invoices.POST("/:id/issue", s.MarkInvoiceAsPending)
		invoices.POST("/:id/payments", s.AddInvoicePayment)
		invoices.POST("/:id/cancel", s.CancelInvoice)
		invoices.POST("/:id/overdue", s.MarkInvoiceAsOverdue)
		invoices.GET("/:id/history", s.InvoiceHistory)
		invoices.GET("/:id/payments", s.ListInvoicePayments)
		invoices.GET("/:id/html", s.RenderInvoice)
	}
}

func (s *Server) Healthz(c *gin.Context) {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			if err := sqlDB.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// orgScope requires the org header on every API call and stores the scope
// on the request context for handlers, services, and audit attribution.
func (s *Server) orgScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(orgIDHeader))
		if raw == "" {
			AbortWithError(c, newValidationError("org_id", "required", "the "+orgIDHeader+" header is required"))
			return
		}
		if _, err := snowflake.ParseString(raw); err != nil {
			AbortWithError(c, newValidationError("org_id", "invalid", "the "+orgIDHeader+" header is not a valid id"))
			return
		}
		c.Set("org_id", raw)
		c.Request = c.Request.WithContext(obscontext.WithOrgID(c.Request.Context(), raw))
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		scope := obscontext.OrgIDFromGin(c)
		if scope == "" {
			scope = c.ClientIP()
		}
		if !s.limiter.AllowScope(scope) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
				"code":    "rate_limited",
				"message": "too many write requests, slow down",
			}})
			return
		}
		c.Next()
	}
}

func (s *Server) orgID(c *gin.Context) (snowflake.ID, bool) {
	raw := obscontext.OrgIDFromGin(c)
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError("org_id", "invalid", "missing or invalid org scope"))
		return 0, false
	}
	return id, true
}

func (s *Server) pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid", "invalid "+name))
		return 0, false
	}
	return id, true
}

func (s *Server) brand() render.BrandView {
	return render.BrandView{
		CompanyName:  s.cfg.Brand.CompanyName,
		LogoURL:      s.cfg.Brand.LogoURL,
		FooterNotes:  s.cfg.Brand.FooterNotes,
		FooterLegal:  s.cfg.Brand.FooterLegal,
		PrimaryColor: s.cfg.Brand.PrimaryColor,
		FontFamily:   s.cfg.Brand.FontFamily,
	}
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, engine *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(render.NewRenderer),
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)
