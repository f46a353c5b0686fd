package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const documentHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>{{.Document.Kind}} {{.Document.Number}}</title>
  <style>
    :root {
      --primary: {{.Brand.PrimaryColor}};
      --font: "{{.Brand.FontFamily}}";
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 32px;
      font-family: var(--font), "Helvetica Neue", Arial, sans-serif;
      color: #111827;
      background: #ffffff;
    }
    .document {
      max-width: 820px;
      margin: 0 auto;
    }
    .header {
      display: flex;
      justify-content: space-between;
      align-items: flex-start;
      border-bottom: 2px solid var(--primary);
      padding-bottom: 16px;
      margin-bottom: 24px;
    }
    .brand {
      display: flex;
      align-items: center;
      gap: 12px;
    }
    .brand img {
      max-height: 48px;
    }
    .meta {
      text-align: right;
      font-size: 14px;
    }
    .meta .label {
      color: #6b7280;
      text-transform: uppercase;
      letter-spacing: 0.04em;
      font-size: 11px;
    }
    table {
      width: 100%;
      border-collapse: collapse;
      font-size: 14px;
    }
    th, td {
      padding: 10px;
      border-bottom: 1px solid #e5e7eb;
      text-align: left;
    }
    th {
      text-transform: uppercase;
      font-size: 11px;
      letter-spacing: 0.04em;
      color: #6b7280;
    }
    .totals {
      margin-top: 16px;
      margin-left: auto;
      width: 280px;
      font-size: 14px;
    }
    .totals div {
      display: flex;
      justify-content: space-between;
      padding: 4px 0;
    }
    .totals .grand {
      border-top: 1px solid #e5e7eb;
      font-size: 16px;
      font-weight: 600;
    }
    .footer {
      margin-top: 24px;
      border-top: 1px solid #e5e7eb;
      padding-top: 16px;
      font-size: 12px;
      color: #6b7280;
    }
  </style>
</head>
<body>
  <div class="document">
    <div class="header">
      <div class="brand">
        {{if .Brand.LogoURL}}
        <img src="{{.Brand.LogoURL}}" alt="Company logo" />
        {{end}}
        <div><strong>{{.Brand.CompanyName}}</strong></div>
      </div>
      <div class="meta">
        <div class="label">{{.Document.Kind}}</div>
        <div><strong>{{.Document.Number}}</strong></div>
        <div>Status: {{.Document.Status}}</div>
        <div>Issued: {{formatDate .Document.IssuedDate}}</div>
        {{if .Document.ClosesName}}<div>{{.Document.ClosesName}}: {{formatDate .Document.ClosesDate}}</div>{{end}}
      </div>
    </div>

    <table>
      <thead>
        <tr>
          <th>Description</th>
          <th>Quantity</th>
          <th>Unit Price</th>
          <th>Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Description}}{{if .Notes}}<br /><small>{{.Notes}}</small>{{end}}</td>
          <td>{{.Quantity}}</td>
          <td>{{formatMoney .UnitPrice $.Document.Currency}}</td>
          <td>{{formatMoney .Total $.Document.Currency}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    <div class="totals">
      <div><span>Subtotal</span><span>{{formatMoney .Document.Subtotal .Document.Currency}}</span></div>
      {{if not .Document.Discount.IsZero}}<div><span>Discount</span><span>-{{formatMoney .Document.Discount .Document.Currency}}</span></div>{{end}}
      <div><span>GST ({{formatRate .Document.GSTRate}}%)</span><span>{{formatMoney .Document.TaxAmount .Document.Currency}}</span></div>
      <div class="grand"><span>Total</span><span>{{formatMoney .Document.Total .Document.Currency}}</span></div>
    </div>

    <div class="footer">
      {{if .Brand.FooterNotes}}<div>{{.Brand.FooterNotes}}</div>{{end}}
      {{if .Brand.FooterLegal}}<div>{{.Brand.FooterLegal}}</div>{{end}}
    </div>
  </div>
</body>
</html>
`

var (
	hexColorPattern  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	fontFamilyFilter = regexp.MustCompile(`^[A-Za-z0-9 \-]+$`)
)

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney": formatMoney,
		"formatDate":  formatDate,
		"formatRate":  formatRate,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("document").Funcs(funcs).Parse(documentHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	input.Brand.PrimaryColor = sanitizeColor(input.Brand.PrimaryColor)
	input.Brand.FontFamily = sanitizeFont(input.Brand.FontFamily)
	if input.Brand.CompanyName == "" {
		input.Brand.CompanyName = input.Document.Kind
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "AUD"
	}
	return fmt.Sprintf("%s %s", currency, amount.StringFixed(2))
}

func formatDate(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}

func formatRate(rate decimal.Decimal) string {
	return rate.String()
}

func sanitizeColor(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "#111827"
	}
	if hexColorPattern.MatchString(trimmed) {
		return trimmed
	}
	return "#111827"
}

func sanitizeFont(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Space Grotesk"
	}
	if fontFamilyFilter.MatchString(trimmed) {
		return trimmed
	}
	return "Space Grotesk"
}
