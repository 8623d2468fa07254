// Package repository implements bill aggregate persistence over gorm.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/billorder/internal/bill/domain"
)

type billRepository struct{}

// New returns the gorm-backed bill repository.
func New() domain.Repository {
	return &billRepository{}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	})
}

func (r *billRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	var bill domain.Bill
	err := preloadItems(db.WithContext(ctx)).First(&bill, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}

// FindByIDForUpdate locks the bill row before loading the aggregate.
// SQLite serializes writers on its own and rejects FOR UPDATE syntax.
func (r *billRepository) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	if db.Dialector.Name() != "sqlite" {
		var lockedID snowflake.ID
		err := db.WithContext(ctx).Raw(
			`SELECT id FROM bill_orders WHERE id = ? FOR UPDATE`,
			id,
		).Scan(&lockedID).Error
		if err != nil {
			return nil, err
		}
		if lockedID == 0 {
			return nil, nil
		}
	}
	return r.FindByID(ctx, db, id)
}

func (r *billRepository) FindByNumber(ctx context.Context, db *gorm.DB, billNumber string) (*domain.Bill, error) {
	var bill domain.Bill
	err := preloadItems(db.WithContext(ctx)).First(&bill, "bill_number = ?", billNumber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}

func (r *billRepository) FindAll(ctx context.Context, db *gorm.DB) ([]*domain.Bill, error) {
	var bills []*domain.Bill
	err := preloadItems(db.WithContext(ctx)).
		Order("created_at DESC").
		Find(&bills).Error
	return bills, err
}

func (r *billRepository) FindByStatus(ctx context.Context, db *gorm.DB, status domain.BillStatus) ([]*domain.Bill, error) {
	var bills []*domain.Bill
	err := preloadItems(db.WithContext(ctx)).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&bills).Error
	return bills, err
}

func (r *billRepository) FindByDateRange(ctx context.Context, db *gorm.DB, from, to time.Time, status *domain.BillStatus) ([]*domain.Bill, error) {
	stmt := preloadItems(db.WithContext(ctx)).
		Where("created_at >= ? AND created_at <= ?", from, to)
	if status != nil {
		stmt = stmt.Where("status = ?", *status)
	}

	var bills []*domain.Bill
	err := stmt.Order("created_at DESC").Find(&bills).Error
	return bills, err
}

func (r *billRepository) FindExpiredPending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]*domain.Bill, error) {
	stmt := preloadItems(db.WithContext(ctx)).
		Where("status = ? AND created_at < ?", domain.BillStatusPending, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var bills []*domain.Bill
	err := stmt.Find(&bills).Error
	return bills, err
}

func (r *billRepository) Search(ctx context.Context, db *gorm.DB, keyword string) ([]*domain.Bill, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}

	var bills []*domain.Bill
	pattern := "%" + keyword + "%"
	err := preloadItems(db.WithContext(ctx)).
		Where("bill_number LIKE ? OR title LIKE ?", pattern, pattern).
		Order("created_at DESC").
		Find(&bills).Error
	return bills, err
}

func (r *billRepository) CountByStatus(ctx context.Context, db *gorm.DB, status domain.BillStatus) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *billRepository) FindItemByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.BillItem, error) {
	var item domain.BillItem
	err := db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *billRepository) PopularProducts(ctx context.Context, db *gorm.DB, limit int) ([]domain.ProductStat, error) {
	if limit <= 0 {
		limit = 10
	}
	var stats []domain.ProductStat
	err := db.WithContext(ctx).Raw(
		`SELECT product_id, product_name,
		        COUNT(id) AS order_count,
		        SUM(quantity) AS total_quantity
		 FROM bill_items
		 GROUP BY product_id, product_name
		 ORDER BY order_count DESC
		 LIMIT ?`,
		limit,
	).Scan(&stats).Error
	return stats, err
}

func (r *billRepository) Insert(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Omit("Items").Create(bill).Error
}

// Save persists the bill's own columns. Items are saved individually
// so a lifecycle operation controls exactly which rows change.
func (r *billRepository) Save(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Omit("Items").Save(bill).Error
}

func (r *billRepository) InsertItem(ctx context.Context, db *gorm.DB, item *domain.BillItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *billRepository) SaveItem(ctx context.Context, db *gorm.DB, item *domain.BillItem) error {
	return db.WithContext(ctx).Save(item).Error
}

func (r *billRepository) DeleteItem(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&domain.BillItem{}, "id = ?", id).Error
}
