// Package events defines the document event types written to the
// transactional outbox for downstream delivery, rendering, and reminder
// systems.
package events

// Document event types.
const (
	EventQuoteCreated   = "quote.created"
	EventQuoteSent      = "quote.sent"
	EventQuoteAccepted  = "quote.accepted"
	EventQuoteRejected  = "quote.rejected"
	EventQuoteOnHold    = "quote.on_hold"
	EventQuoteCancelled = "quote.cancelled"
	EventQuoteExpired   = "quote.expired"
	EventQuoteConverted = "quote.converted"

	EventInvoiceCreated   = "invoice.created"
	EventInvoicePending   = "invoice.pending"
	EventInvoicePaid      = "invoice.paid"
	EventInvoiceCancelled = "invoice.cancelled"
	EventInvoiceOverdue   = "invoice.overdue"

	EventPaymentRecorded = "payment.recorded"
)

// QuotePayload captures the minimal data downstream consumers need for a
// quote event.
type QuotePayload struct {
	QuoteID     string `json:"quote_id"`
	QuoteNumber string `json:"quote_number"`
	Status      string `json:"status"`
	InvoiceID   string `json:"invoice_id,omitempty"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p QuotePayload) ToMap() map[string]any {
	payload := map[string]any{
		"quote_id":     p.QuoteID,
		"quote_number": p.QuoteNumber,
		"status":       p.Status,
	}
	if p.InvoiceID != "" {
		payload["invoice_id"] = p.InvoiceID
	}
	return payload
}

// InvoicePayload captures the minimal data downstream consumers need for an
// invoice event.
type InvoicePayload struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	Status        string `json:"status"`
	QuoteID       string `json:"quote_id,omitempty"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p InvoicePayload) ToMap() map[string]any {
	payload := map[string]any{
		"invoice_id":     p.InvoiceID,
		"invoice_number": p.InvoiceNumber,
		"status":         p.Status,
	}
	if p.QuoteID != "" {
		payload["quote_id"] = p.QuoteID
	}
	return payload
}

// PaymentPayload captures the minimal data downstream consumers need for a
// recorded payment.
type PaymentPayload struct {
	PaymentID string `json:"payment_id"`
	InvoiceID string `json:"invoice_id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Settled   bool   `json:"settled"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	return map[string]any{
		"payment_id": p.PaymentID,
		"invoice_id": p.InvoiceID,
		"amount":     p.Amount,
		"method":     p.Method,
		"settled":    p.Settled,
	}
}
