// Package domain contains the bill order aggregate: the Bill root, its
// BillItem lines and the invariants tying item subtotals to the bill
// total.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/smallbiznis/billorder/pkg/money"
)

// BillStatus represents bill lifecycle states.
type BillStatus string

const (
	BillStatusDraft     BillStatus = "DRAFT"
	BillStatusPending   BillStatus = "PENDING"
	BillStatusPaid      BillStatus = "PAID"
	BillStatusCompleted BillStatus = "COMPLETED"
	BillStatusCancelled BillStatus = "CANCELLED"
)

// AllBillStatuses lists every lifecycle state in reporting order.
func AllBillStatuses() []BillStatus {
	return []BillStatus{
		BillStatusDraft,
		BillStatusPending,
		BillStatusPaid,
		BillStatusCompleted,
		BillStatusCancelled,
	}
}

// Terminal reports whether no further transitions are permitted.
func (s BillStatus) Terminal() bool {
	return s == BillStatusCompleted || s == BillStatusCancelled
}

// Valid reports whether s is a known lifecycle state.
func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusDraft, BillStatusPending, BillStatusPaid, BillStatusCompleted, BillStatusCancelled:
		return true
	}
	return false
}

// BillItemStatus represents item-level states. Items carry no state
// machine of their own; their status reflects bill-level actions.
type BillItemStatus string

const (
	BillItemStatusPending   BillItemStatus = "PENDING"
	BillItemStatusProcessed BillItemStatus = "PROCESSED"
	BillItemStatusRefunded  BillItemStatus = "REFUNDED"
	BillItemStatusCancelled BillItemStatus = "CANCELLED"
)

// Valid reports whether s is a known item state.
func (s BillItemStatus) Valid() bool {
	switch s {
	case BillItemStatusPending, BillItemStatusProcessed, BillItemStatusRefunded, BillItemStatusCancelled:
		return true
	}
	return false
}

const (
	MaxProductIDLen   = 20
	MaxProductNameLen = 255
	MaxTitleLen       = 255
	MaxRemarkLen      = 2000
	MaxQuantity       = 999999
)

// Bill is the aggregate root for one invoiceable order. TotalAmount is
// derived: after any lifecycle operation it equals the exact sum of
// the owned items' subtotals.
type Bill struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	BillNumber  string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"bill_number"`
	Status      BillStatus   `gorm:"type:text;not null;default:'DRAFT';index" json:"status"`
	Title       string       `gorm:"type:varchar(255)" json:"title"`
	Remark      string       `gorm:"type:text" json:"remark"`
	TotalAmount money.Money  `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	PayTime     *time.Time   `gorm:"" json:"pay_time,omitempty"`
	Items       []*BillItem  `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bill_orders" }

// BillItem is a single product line owned exclusively by one Bill.
// Subtotal is derived, always Price × Quantity at scale two.
type BillItem struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	BillID      snowflake.ID   `gorm:"not null;index;uniqueIndex:ux_bill_item_product" json:"bill_id"`
	ProductID   string         `gorm:"type:varchar(20);not null;uniqueIndex:ux_bill_item_product" json:"product_id"`
	ProductName string         `gorm:"type:varchar(255);not null" json:"product_name"`
	Price       money.Money    `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Quantity    int64          `gorm:"not null;default:1" json:"quantity"`
	Subtotal    money.Money    `gorm:"type:decimal(10,2);not null;default:0" json:"subtotal"`
	Status      BillItemStatus `gorm:"type:text;not null;default:'PENDING';index" json:"status"`
	Remark      string         `gorm:"type:text" json:"remark"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BillItem) TableName() string { return "bill_items" }

// NewBillItem validates line input and builds a pending item. The
// caller assigns identity and attaches the item to a bill.
func NewBillItem(productID, productName string, price money.Money, quantity int64, remark string) (*BillItem, error) {
	if err := validateItemInput(productID, productName, quantity, remark); err != nil {
		return nil, err
	}
	item := &BillItem{
		ProductID:   strings.TrimSpace(productID),
		ProductName: strings.TrimSpace(productName),
		Price:       price,
		Quantity:    quantity,
		Status:      BillItemStatusPending,
		Remark:      remark,
	}
	item.calculateSubtotal()
	return item, nil
}

func validateItemInput(productID, productName string, quantity int64, remark string) error {
	productID = strings.TrimSpace(productID)
	productName = strings.TrimSpace(productName)
	if productID == "" || len(productID) > MaxProductIDLen {
		return ErrInvalidProductID
	}
	if productName == "" || len(productName) > MaxProductNameLen {
		return ErrInvalidProductName
	}
	if quantity < 1 || quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	if len(remark) > MaxRemarkLen {
		return ErrInvalidRemark
	}
	return nil
}

// SetPrice updates the unit price and recomputes the subtotal.
func (i *BillItem) SetPrice(price money.Money) {
	i.Price = price
	i.calculateSubtotal()
}

// SetQuantity updates the quantity and recomputes the subtotal. An
// out-of-range quantity leaves the item untouched.
func (i *BillItem) SetQuantity(quantity int64) error {
	if quantity < 1 || quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	i.Quantity = quantity
	i.calculateSubtotal()
	return nil
}

func (i *BillItem) calculateSubtotal() {
	i.Subtotal = i.Price.MulInt(i.Quantity)
}

// NewBillNumber builds a practically-unique bill number:
// BILL + YYYYMMDD + the first eight hex characters of a random UUID.
func NewBillNumber(now time.Time) string {
	return "BILL" + now.Format("20060102") + uuid.NewString()[:8]
}

// FindItemByProduct returns the owned item for productID, or nil.
// A bill holds at most one item per distinct product.
func (b *Bill) FindItemByProduct(productID string) *BillItem {
	productID = strings.TrimSpace(productID)
	for _, item := range b.Items {
		if item.ProductID == productID {
			return item
		}
	}
	return nil
}

// AddItem attaches an item to the bill and sets its back-reference.
// Total recomputation is the caller's responsibility.
func (b *Bill) AddItem(item *BillItem) {
	for _, existing := range b.Items {
		if existing == item {
			return
		}
	}
	item.BillID = b.ID
	b.Items = append(b.Items, item)
}

// RemoveItem detaches an item from the bill. It returns false without
// mutating anything when the item belongs to a different bill.
func (b *Bill) RemoveItem(item *BillItem) bool {
	if item.BillID != b.ID {
		return false
	}
	for idx, existing := range b.Items {
		if existing.ID == item.ID {
			b.Items = append(b.Items[:idx], b.Items[idx+1:]...)
			item.BillID = 0
			return true
		}
	}
	return false
}

// CalculateTotalAmount recomputes the derived total as the exact sum
// of all item subtotals. Idempotent; summation order is immaterial at
// fixed scale.
func (b *Bill) CalculateTotalAmount() {
	total := money.Zero()
	for _, item := range b.Items {
		total = total.Add(item.Subtotal)
	}
	b.TotalAmount = total
}
