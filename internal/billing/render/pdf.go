// Package render produces PDF documents for invoices.
package render

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/nockworks/revenue-engine/internal/billing/domain"
)

// Renderer turns an invoice and its line items into a PDF.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

func (r *Renderer) Render(invoice *domain.Invoice, items []*domain.InvoiceLineItem) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+invoice.CreatedAt.Format("Jan 2, 2006"), props.Text{Top: 4}),
			text.New("Date due: "+invoice.DueDate.Format("Jan 2, 2006"), props.Text{Top: 8}),
			text.New("Payment terms: "+invoice.PaymentTerms, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Status: "+string(invoice.Status), props.Text{Top: 0, Align: align.Right}),
		),
	)

	m.AddRow(8,
		text.NewCol(7, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range items {
		m.AddRow(7,
			text.NewCol(7, item.Description, props.Text{Size: 9}),
			text.NewCol(1, fmt.Sprintf("%.0f", item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatAmount(item.UnitPrice, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatAmount(item.TotalPrice, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(2, line.NewCol(12))

	m.AddRow(6,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, formatAmount(invoice.Amount, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(6,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, formatAmount(invoice.TaxAmount, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total due", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, formatAmount(invoice.TotalAmount, invoice.Currency), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	if invoice.PaidAt != nil {
		m.AddRow(8,
			text.NewCol(12, "Paid on "+invoice.PaidAt.In(time.UTC).Format("Jan 2, 2006"), props.Text{Size: 9}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func formatAmount(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}
