// Package render produces printable HTML for quotes and invoices.
package render

import (
	"time"

	"github.com/shopspring/decimal"
)

// RenderInput is the deterministic input used for document rendering.
type RenderInput struct {
	Brand    BrandView
	Document DocumentView
	Items    []LineItemView
}

// BrandView carries presentation settings for the issuing business.
type BrandView struct {
	CompanyName  string
	LogoURL      string
	FooterNotes  string
	FooterLegal  string
	PrimaryColor string
	FontFamily   string
}

// DocumentView is the common shape of a rendered quote or invoice.
type DocumentView struct {
	Kind       string
	Number     string
	Status     string
	Currency   string
	IssuedDate *time.Time
	ClosesDate *time.Time
	ClosesName string
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	GSTRate    decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
}

// LineItemView is one rendered document line.
type LineItemView struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	Notes       string
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}
