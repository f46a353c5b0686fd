package render

import (
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	"github.com/smallbiznis/quoteflow/internal/money"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
)

// QuoteInput maps a quote onto the render model.
func QuoteInput(brand BrandView, quote quotedomain.Quote) RenderInput {
	items := make([]LineItemView, 0, len(quote.Items))
	moneyItems := make([]money.Item, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, LineItemView{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
			Notes:       item.Notes,
		})
		moneyItems = append(moneyItems, money.Item{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	totals := money.ComputeTotals(moneyItems, quote.Discount, quote.GST)
	issued := quote.IssuedDate
	return RenderInput{
		Brand: brand,
		Document: DocumentView{
			Kind:       "Quote",
			Number:     quote.QuoteNumber,
			Status:     string(quote.Status),
			Currency:   quote.Currency,
			IssuedDate: &issued,
			ClosesDate: quote.ValidUntil,
			ClosesName: "Valid until",
			Subtotal:   totals.Subtotal,
			Discount:   quote.Discount,
			GSTRate:    quote.GST,
			TaxAmount:  totals.TaxAmount,
			Total:      quote.Amount,
		},
		Items: items,
	}
}

// InvoiceInput maps an invoice onto the render model.
func InvoiceInput(brand BrandView, invoice invoicedomain.Invoice) RenderInput {
	items := make([]LineItemView, 0, len(invoice.Items))
	moneyItems := make([]money.Item, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		items = append(items, LineItemView{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
			Notes:       item.Notes,
		})
		moneyItems = append(moneyItems, money.Item{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	totals := money.ComputeTotals(moneyItems, invoice.Discount, invoice.GST)
	issued := invoice.IssuedDate
	due := invoice.DueDate
	return RenderInput{
		Brand: brand,
		Document: DocumentView{
			Kind:       "Invoice",
			Number:     invoice.InvoiceNumber,
			Status:     string(invoice.Status),
			Currency:   invoice.Currency,
			IssuedDate: &issued,
			ClosesDate: &due,
			ClosesName: "Due",
			Subtotal:   totals.Subtotal,
			Discount:   invoice.Discount,
			GSTRate:    invoice.GST,
			TaxAmount:  totals.TaxAmount,
			Total:      invoice.Amount,
		},
		Items: items,
	}
}
