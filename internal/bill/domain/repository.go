package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ProductStat is a rollup row for the most frequently ordered products.
type ProductStat struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	OrderCount    int64  `json:"order_count"`
	TotalQuantity int64  `json:"total_quantity"`
}

// Repository loads and stores bill aggregates. Every method takes the
// *gorm.DB it should run on so the lifecycle service can pass its
// transaction handle; concurrent writes on one bill serialize on the
// row lock taken by the caller. Lookup misses return (nil, nil); the
// service maps them to ErrBillNotFound.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	// FindByIDForUpdate locks the bill row for the duration of the
	// surrounding transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindByNumber(ctx context.Context, db *gorm.DB, billNumber string) (*Bill, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]*Bill, error)
	FindByStatus(ctx context.Context, db *gorm.DB, status BillStatus) ([]*Bill, error)
	FindByDateRange(ctx context.Context, db *gorm.DB, from, to time.Time, status *BillStatus) ([]*Bill, error)
	// FindExpiredPending returns pending bills created before cutoff,
	// oldest first. The cleanup job feeds these into Cancel.
	FindExpiredPending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]*Bill, error)
	Search(ctx context.Context, db *gorm.DB, keyword string) ([]*Bill, error)
	CountByStatus(ctx context.Context, db *gorm.DB, status BillStatus) (int64, error)

	FindItemByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BillItem, error)
	PopularProducts(ctx context.Context, db *gorm.DB, limit int) ([]ProductStat, error)

	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	Save(ctx context.Context, db *gorm.DB, bill *Bill) error
	InsertItem(ctx context.Context, db *gorm.DB, item *BillItem) error
	SaveItem(ctx context.Context, db *gorm.DB, item *BillItem) error
	DeleteItem(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
