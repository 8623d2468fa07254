package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/billorder/pkg/money"
)

type CreateBillRequest struct {
	Title  string `json:"title"`
	Remark string `json:"remark"`
}

type AddItemRequest struct {
	BillID      string `json:"bill_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
	Remark      string `json:"remark"`
}

// UpdateItemRequest applies only the non-nil fields. All nil means the
// item is returned unchanged.
type UpdateItemRequest struct {
	ItemID   string          `json:"item_id"`
	Price    *string         `json:"price,omitempty"`
	Quantity *int64          `json:"quantity,omitempty"`
	Status   *BillItemStatus `json:"status,omitempty"`
}

type ListBillsRequest struct {
	Status      *BillStatus `json:"status,omitempty"`
	Keyword     *string     `json:"keyword,omitempty"`
	CreatedFrom *time.Time  `json:"created_from,omitempty"`
	CreatedTo   *time.Time  `json:"created_to,omitempty"`
}

type ListBillsResponse struct {
	Bills []*Bill `json:"bills"`
}

// StatusStatistics is the per-status row of the statistics report.
type StatusStatistics struct {
	Count       int64       `json:"count"`
	TotalAmount money.Money `json:"total_amount"`
}

// Statistics maps every lifecycle state to its bill count and exact
// total. All five statuses are always present.
type Statistics map[BillStatus]StatusStatistics

// Service orchestrates bill lifecycle operations. Every mutating call
// is one transaction: item mutation and total recomputation commit
// together or not at all.
type Service interface {
	CreateBill(ctx context.Context, req CreateBillRequest) (*Bill, error)
	GetByID(ctx context.Context, id string) (*Bill, error)
	GetByNumber(ctx context.Context, billNumber string) (*Bill, error)
	List(ctx context.Context, req ListBillsRequest) (ListBillsResponse, error)

	AddItem(ctx context.Context, req AddItemRequest) (*BillItem, error)
	UpdateItem(ctx context.Context, req UpdateItemRequest) (*BillItem, error)
	RemoveItem(ctx context.Context, billID, itemID string) (bool, error)

	Submit(ctx context.Context, billID string) (*Bill, error)
	Pay(ctx context.Context, billID string) (*Bill, error)
	Complete(ctx context.Context, billID string) (*Bill, error)
	Cancel(ctx context.Context, billID string, reason string) (*Bill, error)

	Statistics(ctx context.Context) (Statistics, error)
	PopularProducts(ctx context.Context, limit int) ([]ProductStat, error)
}
