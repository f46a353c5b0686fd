package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/quoteflow/internal/document"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	"github.com/smallbiznis/quoteflow/internal/render"
	"github.com/smallbiznis/quoteflow/pkg/db/pagination"
)

type createInvoiceRequest struct {
	CustomerID    string               `json:"customer_id"`
	InvoiceNumber string               `json:"invoice_number"`
	Currency      string               `json:"currency"`
	Discount      decimal.Decimal      `json:"discount"`
	GST           decimal.Decimal      `json:"gst"`
	IssuedDate    *time.Time           `json:"issued_date"`
	DueDate       time.Time            `json:"due_date"`
	Items         []document.ItemInput `json:"items"`
	FileName      *string              `json:"file_name"`
	FileSize      *int64               `json:"file_size"`
	FileLocation  *string              `json:"file_location"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid", "invalid customer id"))
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		OrgID:         orgID,
		CustomerID:    customerID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Currency:      req.Currency,
		Discount:      req.Discount,
		GST:           req.GST,
		IssuedDate:    req.IssuedDate,
		DueDate:       req.DueDate,
		Items:         req.Items,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		FileLocation:  req.FileLocation,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
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

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoicesRequest{
		OrgID:      orgID,
		CustomerID: customerID,
		Status:     invoicedomain.Status(strings.ToUpper(strings.TrimSpace(query.Status))),
		Page:       query.Request,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoice(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReplaceInvoiceItems(c *gin.Context) {
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
	resp, err := s.invoiceSvc.ReplaceItems(c.Request.Context(), orgID, id, invoicedomain.ReplaceItemsRequest{
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

func (s *Server) MarkInvoiceAsPending(c *gin.Context) {
	s.invoiceTransition(c, func(orgID, id snowflake.ID) (invoicedomain.Invoice, error) {
		return s.invoiceSvc.MarkAsPending(c.Request.Context(), orgID, id)
	})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.invoiceTransition(c, func(orgID, id snowflake.ID) (invoicedomain.Invoice, error) {
		return s.invoiceSvc.Cancel(c.Request.Context(), orgID, id, req.Reason)
	})
}

func (s *Server) MarkInvoiceAsOverdue(c *gin.Context) {
	s.invoiceTransition(c, func(orgID, id snowflake.ID) (invoicedomain.Invoice, error) {
		return s.invoiceSvc.MarkAsOverdue(c.Request.Context(), orgID, id)
	})
}

func (s *Server) invoiceTransition(c *gin.Context, op func(orgID, id snowflake.ID) (invoicedomain.Invoice, error)) {
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

type addPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	Date   *time.Time      `json:"date"`
	Note   *string         `json:"note"`
}

func (s *Server) AddInvoicePayment(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	var req addPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.invoiceSvc.AddPayment(c.Request.Context(), orgID, id, invoicedomain.AddPaymentRequest{
		Amount: req.Amount,
		Method: req.Method,
		Date:   req.Date,
		Note:   req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) InvoiceHistory(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.invoiceSvc.History(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	payments, total, err := s.invoiceSvc.Payments(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments, "total_paid": total})
}

func (s *Server) RenderInvoice(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	html, err := s.renderer.RenderHTML(render.InvoiceInput(s.brand(), invoice))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
