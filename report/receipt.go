package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/settings"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// SettingsReader supplies the pharmacy header printed on receipts.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// PDFRenderer turns HTML into PDF bytes.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Receipts renders committed sales as printable receipts.
type Receipts struct {
	renderer PDFRenderer
	settings SettingsReader
	logger   *slog.Logger
	tag      language.Tag
}

// NewReceipts wires a receipt renderer. settings may be nil.
func NewReceipts(renderer PDFRenderer, settings SettingsReader, logger *slog.Logger) *Receipts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receipts{renderer: renderer, settings: settings, logger: logger, tag: language.English}
}

type receiptLine struct {
	Name     string
	Quantity int
	Unit     string
	Price    string
	Amount   string
}

type receiptView struct {
	Pharmacy settings.General
	Invoice  string
	Date     string
	Payment  string
	Customer string
	Lines    []receiptLine
	Subtotal string
	Discount string
	TaxRate  string
	Tax      string
	Total    string
}

var paymentLabels = map[string]string{
	sales.PaymentCash:   "Cash",
	sales.PaymentCard:   "Card",
	sales.PaymentCredit: "Credit sale",
}

// HTML renders the receipt markup for s.
func (r *Receipts) HTML(ctx context.Context, s sales.Sale) (string, error) {
	header := settings.Defaults().General
	if r.settings != nil {
		doc, err := r.settings.Get(ctx)
		if err != nil {
			r.logger.Warn("receipt header falls back to defaults", slog.Any("error", err))
		} else {
			header = doc.General
		}
	}
	money := func(m shared.Money) string { return m.Format(r.tag, header.Currency) }

	view := receiptView{
		Pharmacy: header,
		Invoice:  s.InvoiceNumber,
		Date:     s.CreatedAt.Format("2006-01-02 15:04"),
		Payment:  paymentLabels[s.PaymentMethod],
		Customer: s.CustomerID,
		Subtotal: money(s.Subtotal),
		TaxRate:  s.TaxRate.String(),
		Tax:      money(s.Tax),
		Total:    money(s.Total),
	}
	if s.Discount > 0 {
		view.Discount = money(s.Discount)
	}
	for _, l := range s.Lines {
		view.Lines = append(view.Lines, receiptLine{
			Name:     l.Name,
			Quantity: l.Quantity,
			Unit:     l.Unit,
			Price:    money(l.UnitPrice),
			Amount:   money(l.UnitPrice.Mul(l.Quantity)),
		})
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render receipt template: %w", err)
	}
	return buf.String(), nil
}

// RenderReceipt produces the receipt PDF for s.
func (r *Receipts) RenderReceipt(ctx context.Context, s sales.Sale) ([]byte, error) {
	html, err := r.HTML(ctx, s)
	if err != nil {
		return nil, err
	}
	pdf, err := r.renderer.RenderHTML(ctx, html)
	if err != nil {
		r.logger.Error("render receipt pdf", slog.String("invoice", s.InvoiceNumber), slog.Any("error", err))
		return nil, err
	}
	return pdf, nil
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Invoice}}</title>
<style>
body{font-family:monospace;font-size:11px;margin:0}
h1{font-size:14px;text-align:center;margin:0 0 4px}
.center{text-align:center}
table{width:100%;border-collapse:collapse}
td.num{text-align:right}
.total{font-weight:bold;border-top:1px dashed #000}
</style></head><body>
<h1>{{.Pharmacy.PharmacyName}}</h1>
{{with .Pharmacy.Address}}<div class="center">{{.}}</div>{{end}}
{{with .Pharmacy.Phone}}<div class="center">{{.}}</div>{{end}}
<p>Invoice: {{.Invoice}}<br>Date: {{.Date}}<br>Payment: {{.Payment}}{{with .Customer}}<br>Customer: {{.}}{{end}}</p>
<table>
{{range .Lines}}<tr><td>{{.Name}}<br>{{.Quantity}} {{.Unit}} x {{.Price}}</td><td class="num">{{.Amount}}</td></tr>
{{end}}<tr class="total"><td>Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
{{with .Discount}}<tr><td>Discount</td><td class="num">-{{.}}</td></tr>{{end}}
<tr><td>Tax ({{.TaxRate}}%)</td><td class="num">{{.Tax}}</td></tr>
<tr class="total"><td>Total</td><td class="num">{{.Total}}</td></tr>
</table>
<p class="center">Thank you</p>
</body></html>
`))
