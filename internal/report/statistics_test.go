package report

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/billorder/internal/bill/domain"
	"github.com/smallbiznis/billorder/pkg/money"
)

func TestGenerateStatisticsProducesPDF(t *testing.T) {
	g := NewGenerator()

	stats := domain.Statistics{
		domain.BillStatusDraft:   {Count: 2, TotalAmount: money.MustParse("31.00")},
		domain.BillStatusPending: {Count: 1, TotalAmount: money.MustParse("9.99")},
	}

	reader, err := g.GenerateStatistics(context.Background(), stats, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	doc, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NotEmpty(t, doc)
	assert.Equal(t, "%PDF", string(doc[:4]))
}

func TestGenerateBillProducesPDF(t *testing.T) {
	g := NewGenerator()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	bill := &domain.Bill{
		ID:          snowflake.ID(1),
		BillNumber:  "BILL20260301abcd1234",
		Status:      domain.BillStatusPaid,
		Title:       "march order",
		TotalAmount: money.MustParse("21.00"),
		PayTime:     &now,
		CreatedAt:   now,
		Items: []*domain.BillItem{
			{
				ID:          snowflake.ID(2),
				BillID:      snowflake.ID(1),
				ProductID:   "P1",
				ProductName: "Widget",
				Price:       money.MustParse("10.50"),
				Quantity:    2,
				Subtotal:    money.MustParse("21.00"),
				Status:      domain.BillItemStatusPending,
			},
		},
	}

	reader, err := g.GenerateBill(context.Background(), bill)
	require.NoError(t, err)

	doc, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(doc[:4]))

	_, err = g.GenerateBill(context.Background(), nil)
	assert.Error(t, err)
}
