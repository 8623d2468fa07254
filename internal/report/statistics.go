// Package report renders bill data as PDF documents.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/smallbiznis/billorder/internal/bill/domain"
	"github.com/smallbiznis/billorder/pkg/money"
)

// Generator renders PDF reports.
type Generator interface {
	GenerateStatistics(ctx context.Context, stats domain.Statistics, generatedAt time.Time) (io.Reader, error)
	GenerateBill(ctx context.Context, bill *domain.Bill) (io.Reader, error)
}

type pdfGenerator struct{}

func NewGenerator() Generator {
	return &pdfGenerator{}
}

// GenerateStatistics renders one row per lifecycle state plus a grand
// total line.
func (g *pdfGenerator) GenerateStatistics(_ context.Context, stats domain.Statistics, generatedAt time.Time) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Bill Statistics", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Generated "+generatedAt.Format("2006-01-02 15:04"), props.Text{
			Size:  9,
			Align: align.Right,
			Top:   8,
		}),
	)

	m.AddRow(10,
		text.NewCol(4, "Status", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Bills", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(4, "Total amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	var (
		grandCount int64
		grandTotal = money.Zero()
	)
	for _, status := range domain.AllBillStatuses() {
		row := stats[status]
		m.AddRow(10,
			text.NewCol(4, string(status), props.Text{Size: 9}),
			text.NewCol(4, fmt.Sprintf("%d", row.Count), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(4, row.TotalAmount.String(), props.Text{Size: 9, Align: align.Right}),
		)
		grandCount += row.Count
		grandTotal = grandTotal.Add(row.TotalAmount)
	}

	m.AddRow(12,
		text.NewCol(4, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, fmt.Sprintf("%d", grandCount), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(4, grandTotal.String(), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

// GenerateBill renders a single bill with its item lines.
func (g *pdfGenerator) GenerateBill(_ context.Context, bill *domain.Bill) (io.Reader, error) {
	if bill == nil {
		return nil, fmt.Errorf("bill is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Bill "+bill.BillNumber, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, string(bill.Status), props.Text{
			Size:  12,
			Align: align.Right,
			Top:   6,
		}),
	)

	meta := []string{
		"Created: " + bill.CreatedAt.Format("2006-01-02 15:04"),
	}
	if bill.Title != "" {
		meta = append(meta, "Title: "+bill.Title)
	}
	if bill.PayTime != nil {
		meta = append(meta, "Paid: "+bill.PayTime.Format("2006-01-02 15:04"))
	}
	metaCol := col.New(12)
	for i, line := range meta {
		metaCol.Add(text.New(line, props.Text{Size: 9, Top: float64(i * 4)}))
	}
	m.AddRow(float64(6+len(meta)*4), metaCol)

	m.AddRow(10,
		text.NewCol(5, "Product", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Subtotal", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range bill.Items {
		m.AddRow(10,
			text.NewCol(5, item.ProductName, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Price.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, item.Subtotal.String(), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(7),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, bill.TotalAmount.String(), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
