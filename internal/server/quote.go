package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/quoteflow/internal/document"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
	"github.com/smallbiznis/quoteflow/internal/render"
	"github.com/smallbiznis/quoteflow/pkg/db/pagination"
)

type createQuoteRequest struct {
	CustomerID    string               `json:"customer_id"`
	QuoteNumber   string               `json:"quote_number"`
	Currency      string               `json:"currency"`
	Discount      decimal.Decimal      `json:"discount"`
	GST           decimal.Decimal      `json:"gst"`
	IssuedDate    *time.Time           `json:"issued_date"`
	ValidUntil    *time.Time           `json:"valid_until"`
	ParentQuoteID string               `json:"parent_quote_id"`
	Items         []document.ItemInput `json:"items"`
}

func (s *Server) CreateQuote(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid", "invalid customer id"))
		return
	}
	var parentID *snowflake.ID
	if raw := strings.TrimSpace(req.ParentQuoteID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("parent_quote_id", "invalid", "invalid parent quote id"))
			return
		}
		parentID = &parsed
	}

	resp, err := s.quoteSvc.Create(c.Request.Context(), quotedomain.CreateQuoteRequest{
		OrgID:         orgID,
		CustomerID:    customerID,
		QuoteNumber:   strings.TrimSpace(req.QuoteNumber),
		Currency:      req.Currency,
		Discount:      req.Discount,
		GST:           req.GST,
		IssuedDate:    req.IssuedDate,
		ValidUntil:    req.ValidUntil,
		ParentQuoteID: parentID,
		Items:         req.Items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListQuotes(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	var query struct {
		pagination.Request
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	var customerID snowflake.ID
	if raw := strings.TrimSpace(query.CustomerID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("customer_id", "invalid", "invalid customer id"))
			return
		}
		customerID = parsed
	}

	resp, err := s.quoteSvc.List(c.Request.Context(), quotedomain.ListQuotesRequest{
		OrgID:      orgID,
		CustomerID: customerID,
		Status:     quotedomain.Status(strings.ToUpper(strings.TrimSpace(query.Status))),
		Page:       query.Request,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Quotes, "page_info": resp.PageInfo})
}

func (s *Server) GetQuote(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.quoteSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type replaceItemsRequest struct {
	Discount decimal.Decimal      `json:"discount"`
	GST      decimal.Decimal      `json:"gst"`
	Items    []document.ItemInput `json:"items"`
}

func (s *Server) ReplaceQuoteItems(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	var req replaceItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.quoteSvc.ReplaceItems(c.Request.Context(), orgID, id, quotedomain.ReplaceItemsRequest{
		Items:    req.Items,
		Discount: req.Discount,
		GST:      req.GST,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type noteRequest struct {
	Note string `json:"note"`
}

func (s *Server) MarkQuoteAsSent(c *gin.Context) {
	s.quoteTransition(c, func(orgID, id snowflake.ID) (quotedomain.Quote, error) {
		return s.quoteSvc.MarkAsSent(c.Request.Context(), orgID, id)
	})
}

func (s *Server) MarkQuoteAsAccepted(c *gin.Context) {
	s.quoteTransition(c, func(orgID, id snowflake.ID) (quotedomain.Quote, error) {
		return s.quoteSvc.MarkAsAccepted(c.Request.Context(), orgID, id)
	})
}

func (s *Server) MarkQuoteAsRejected(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.quoteTransition(c, func(orgID, id snowflake.ID) (quotedomain.Quote, error) {
		return s.quoteSvc.MarkAsRejected(c.Request.Context(), orgID, id, req.Reason)
	})
}

func (s *Server) MarkQuoteAsOnHold(c *gin.Context) {
	var req noteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	s.quoteTransition(c, func(orgID, id snowflake.ID) (quotedomain.Quote, error) {
		return s.quoteSvc.MarkAsOnHold(c.Request.Context(), orgID, id, req.Note)
	})
}

func (s *Server) MarkQuoteAsCancelled(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.quoteTransition(c, func(orgID, id snowflake.ID) (quotedomain.Quote, error) {
		return s.quoteSvc.MarkAsCancelled(c.Request.Context(), orgID, id, req.Reason)
	})
}

func (s *Server) MarkQuoteAsExpired(c *gin.Context) {
	s.quoteTransition(c, func(orgID, id snowflake.ID) (quotedomain.Quote, error) {
		return s.quoteSvc.MarkAsExpired(c.Request.Context(), orgID, id)
	})
}

func (s *Server) quoteTransition(c *gin.Context, op func(orgID, id snowflake.ID) (quotedomain.Quote, error)) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := op(orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type convertQuoteRequest struct {
	InvoiceNumber string          `json:"invoice_number"`
	Discount      decimal.Decimal `json:"discount"`
	GST           decimal.Decimal `json:"gst"`
	DueDate       time.Time       `json:"due_date"`
}

func (s *Server) ConvertQuote(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	var req convertQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.quoteSvc.ConvertToInvoice(c.Request.Context(), orgID, id, quotedomain.ConvertToInvoiceRequest{
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Discount:      req.Discount,
		GST:           req.GST,
		DueDate:       req.DueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) QuoteHistory(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.quoteSvc.History(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RenderQuote(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	quote, err := s.quoteSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	html, err := s.renderer.RenderHTML(render.QuoteInput(s.brand(), quote))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
