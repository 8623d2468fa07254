// Package service implements the bill lifecycle: status transitions,
// item mutation and total recomputation, each inside one transaction.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/billorder/internal/bill/domain"
	"github.com/smallbiznis/billorder/internal/clock"
	obsmetrics "github.com/smallbiznis/billorder/internal/observability/metrics"
	"github.com/smallbiznis/billorder/pkg/db"
	"github.com/smallbiznis/billorder/pkg/money"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Events domain.Publisher `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository

	events domain.Publisher
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("bill.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		events: p.Events,
	}
}

func (s *Service) CreateBill(ctx context.Context, req domain.CreateBillRequest) (*domain.Bill, error) {
	if len(req.Title) > domain.MaxTitleLen {
		return nil, domain.ErrInvalidTitle
	}
	if len(req.Remark) > domain.MaxRemarkLen {
		return nil, domain.ErrInvalidRemark
	}

	now := s.clock.Now()
	bill := &domain.Bill{
		ID:          s.genID.Generate(),
		BillNumber:  domain.NewBillNumber(now),
		Status:      domain.BillStatusDraft,
		Title:       strings.TrimSpace(req.Title),
		Remark:      req.Remark,
		TotalAmount: money.Zero(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, bill); err != nil {
		return nil, err
	}

	s.log.Info("bill created",
		zap.String("bill_id", bill.ID.String()),
		zap.String("bill_number", bill.BillNumber),
	)
	s.emit(ctx, domain.EventBillCreated, bill, nil)
	return bill, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Bill, error) {
	billID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	bill, err := s.repo.FindByID(ctx, s.db, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, domain.ErrBillNotFound
	}
	return bill, nil
}

func (s *Service) GetByNumber(ctx context.Context, billNumber string) (*domain.Bill, error) {
	billNumber = strings.TrimSpace(billNumber)
	if billNumber == "" {
		return nil, fmt.Errorf("%w: bill number is required", domain.ErrInvalidBillData)
	}

	bill, err := s.repo.FindByNumber(ctx, s.db, billNumber)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, domain.ErrBillNotFound
	}
	return bill, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBillsRequest) (domain.ListBillsResponse, error) {
	var (
		bills []*domain.Bill
		err   error
	)

	switch {
	case req.Keyword != nil:
		bills, err = s.repo.Search(ctx, s.db, *req.Keyword)
	case req.CreatedFrom != nil && req.CreatedTo != nil:
		bills, err = s.repo.FindByDateRange(ctx, s.db, *req.CreatedFrom, *req.CreatedTo, req.Status)
	case req.Status != nil:
		bills, err = s.repo.FindByStatus(ctx, s.db, *req.Status)
	default:
		bills, err = s.repo.FindAll(ctx, s.db)
	}
	if err != nil {
		return domain.ListBillsResponse{}, err
	}

	return domain.ListBillsResponse{Bills: bills}, nil
}

// AddItem appends a product line or, when the bill already carries the
// product, merges by incrementing the existing quantity. The supplied
// price, name and remark are ignored on merge. The bill total is
// recomputed in the same transaction.
func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (*domain.BillItem, error) {
	billID, err := parseID(req.BillID)
	if err != nil {
		return nil, err
	}
	price, err := money.Parse(req.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBillData, err)
	}
	if req.Quantity < 1 || req.Quantity > domain.MaxQuantity {
		return nil, domain.ErrInvalidQuantity
	}

	var (
		item   *domain.BillItem
		bill   *domain.Bill
		merged bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err = s.loadBillForUpdate(ctx, tx, billID)
		if err != nil {
			return err
		}

		if existing := bill.FindItemByProduct(req.ProductID); existing != nil {
			if err := existing.SetQuantity(existing.Quantity + req.Quantity); err != nil {
				return err
			}
			if err := s.repo.SaveItem(ctx, tx, existing); err != nil {
				return err
			}
			item = existing
			merged = true
		} else {
			created, err := domain.NewBillItem(req.ProductID, req.ProductName, price, req.Quantity, req.Remark)
			if err != nil {
				return err
			}
			created.ID = s.genID.Generate()
			created.CreatedAt = s.clock.Now()
			created.UpdatedAt = created.CreatedAt
			bill.AddItem(created)
			if err := s.repo.InsertItem(ctx, tx, created); err != nil {
				// concurrent insert of the same product races past the
				// in-memory merge check and lands on ux_bill_item_product
				if db.IsDuplicateKeyErr(err) {
					return fmt.Errorf("%w: product %s already on bill", domain.ErrInvalidBillData, created.ProductID)
				}
				return err
			}
			item = created
		}

		bill.CalculateTotalAmount()
		return s.repo.Save(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	action := domain.EventItemAdded
	if merged {
		action = domain.EventItemMerged
	}
	s.log.Info("bill item added",
		zap.String("bill_id", bill.ID.String()),
		zap.String("product_id", item.ProductID),
		zap.Int64("quantity", item.Quantity),
		zap.Bool("merged", merged),
	)
	s.emit(ctx, action, bill, map[string]any{
		"item_id":    item.ID.String(),
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
		"subtotal":   item.Subtotal.String(),
	})
	return item, nil
}

// UpdateItem applies the non-nil fields of req. A price or quantity
// change cascades into the owning bill's total within the transaction.
func (s *Service) UpdateItem(ctx context.Context, req domain.UpdateItemRequest) (*domain.BillItem, error) {
	itemID, err := parseID(req.ItemID)
	if err != nil {
		return nil, err
	}

	var price *money.Money
	if req.Price != nil {
		parsed, err := money.Parse(*req.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBillData, err)
		}
		price = &parsed
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown item status %q", domain.ErrInvalidBillData, *req.Status)
	}

	var (
		item *domain.BillItem
		bill *domain.Bill
	)
	changes := map[string]any{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindItemByID(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrItemNotFound
		}

		bill, err = s.loadBillForUpdate(ctx, tx, found.BillID)
		if err != nil {
			return err
		}
		item = findOwnedItem(bill, itemID)
		if item == nil {
			return domain.ErrItemNotFound
		}

		if price != nil {
			changes["price"] = map[string]string{"from": item.Price.String(), "to": price.String()}
			item.SetPrice(*price)
		}
		if req.Quantity != nil {
			old := item.Quantity
			if err := item.SetQuantity(*req.Quantity); err != nil {
				return err
			}
			changes["quantity"] = map[string]int64{"from": old, "to": *req.Quantity}
		}
		if req.Status != nil {
			changes["status"] = map[string]string{"from": string(item.Status), "to": string(*req.Status)}
			item.Status = *req.Status
		}

		if len(changes) == 0 {
			return nil
		}

		if err := s.repo.SaveItem(ctx, tx, item); err != nil {
			return err
		}
		bill.CalculateTotalAmount()
		return s.repo.Save(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.log.Info("bill item updated",
			zap.String("bill_id", bill.ID.String()),
			zap.String("item_id", item.ID.String()),
			zap.Any("changes", changes),
		)
		s.emit(ctx, domain.EventItemUpdated, bill, map[string]any{
			"item_id": item.ID.String(),
			"changes": changes,
		})
	}
	return item, nil
}

// RemoveItem detaches an item and recomputes the total. It returns
// false without error when the item belongs to a different bill.
func (s *Service) RemoveItem(ctx context.Context, billID, itemID string) (bool, error) {
	parsedBillID, err := parseID(billID)
	if err != nil {
		return false, err
	}
	parsedItemID, err := parseID(itemID)
	if err != nil {
		return false, err
	}

	var (
		bill    *domain.Bill
		removed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err = s.loadBillForUpdate(ctx, tx, parsedBillID)
		if err != nil {
			return err
		}

		item, err := s.repo.FindItemByID(ctx, tx, parsedItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemNotFound
		}

		if !bill.RemoveItem(item) {
			s.log.Warn("attempted to remove item from foreign bill",
				zap.String("bill_id", bill.ID.String()),
				zap.String("item_id", item.ID.String()),
				zap.String("item_bill_id", item.BillID.String()),
			)
			return nil
		}
		removed = true

		if err := s.repo.DeleteItem(ctx, tx, parsedItemID); err != nil {
			return err
		}
		bill.CalculateTotalAmount()
		return s.repo.Save(ctx, tx, bill)
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.emit(ctx, domain.EventItemRemoved, bill, map[string]any{
			"item_id": itemID,
		})
	}
	return removed, nil
}

// Submit moves a draft bill with at least one item to pending.
func (s *Service) Submit(ctx context.Context, billID string) (*domain.Bill, error) {
	return s.transition(ctx, billID, domain.EventBillSubmitted, func(bill *domain.Bill) error {
		if bill.Status != domain.BillStatusDraft {
			return fmt.Errorf("%w: only draft bills can be submitted, current status %s",
				domain.ErrInvalidBillStatus, bill.Status)
		}
		if len(bill.Items) == 0 {
			return fmt.Errorf("%w: a bill needs at least one item before submission", domain.ErrEmptyBill)
		}
		s.updateStatus(bill, domain.BillStatusPending)
		return nil
	})
}

// Pay moves a pending bill to paid and stamps the pay time exactly
// once. Repeat calls fail and leave the stamp untouched.
func (s *Service) Pay(ctx context.Context, billID string) (*domain.Bill, error) {
	return s.transition(ctx, billID, domain.EventBillPaid, func(bill *domain.Bill) error {
		if bill.Status != domain.BillStatusPending {
			return fmt.Errorf("%w: only pending bills can be paid, current status %s",
				domain.ErrInvalidBillStatus, bill.Status)
		}
		s.updateStatus(bill, domain.BillStatusPaid)
		return nil
	})
}

// Complete moves a paid bill to completed and marks every item
// processed.
func (s *Service) Complete(ctx context.Context, billID string) (*domain.Bill, error) {
	return s.transition(ctx, billID, domain.EventBillCompleted, func(bill *domain.Bill) error {
		if bill.Status != domain.BillStatusPaid {
			return fmt.Errorf("%w: only paid bills can be completed, current status %s",
				domain.ErrInvalidBillStatus, bill.Status)
		}
		for _, item := range bill.Items {
			item.Status = domain.BillItemStatusProcessed
		}
		s.updateStatus(bill, domain.BillStatusCompleted)
		return nil
	})
}

// Cancel moves a draft or pending bill to cancelled, marks every item
// cancelled and, when a reason is given, appends it to the remark.
func (s *Service) Cancel(ctx context.Context, billID string, reason string) (*domain.Bill, error) {
	return s.transition(ctx, billID, domain.EventBillCancelled, func(bill *domain.Bill) error {
		if bill.Status != domain.BillStatusDraft && bill.Status != domain.BillStatusPending {
			return fmt.Errorf("%w: only draft or pending bills can be cancelled, current status %s",
				domain.ErrInvalidBillStatus, bill.Status)
		}
		if reason != "" {
			bill.Remark = bill.Remark + "\n取消原因: " + reason
		}
		for _, item := range bill.Items {
			item.Status = domain.BillItemStatusCancelled
		}
		s.updateStatus(bill, domain.BillStatusCancelled)
		return nil
	})
}

// Statistics counts bills and sums totals per lifecycle state with
// exact decimal accumulation. Every status is present, zero or not.
func (s *Service) Statistics(ctx context.Context) (domain.Statistics, error) {
	stats := domain.Statistics{}

	for _, status := range domain.AllBillStatuses() {
		count, err := s.repo.CountByStatus(ctx, s.db, status)
		if err != nil {
			return nil, err
		}

		bills, err := s.repo.FindByStatus(ctx, s.db, status)
		if err != nil {
			return nil, err
		}
		total := money.Zero()
		for _, bill := range bills {
			total = total.Add(bill.TotalAmount)
		}

		stats[status] = domain.StatusStatistics{
			Count:       count,
			TotalAmount: total,
		}
	}

	return stats, nil
}

func (s *Service) PopularProducts(ctx context.Context, limit int) ([]domain.ProductStat, error) {
	return s.repo.PopularProducts(ctx, s.db, limit)
}

// transition runs one status-gated operation inside a transaction with
// the bill row locked, persisting the bill and its items on success.
func (s *Service) transition(ctx context.Context, billID string, action string, apply func(*domain.Bill) error) (*domain.Bill, error) {
	id, err := parseID(billID)
	if err != nil {
		return nil, err
	}

	var bill *domain.Bill
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err = s.loadBillForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		fromStatus := bill.Status

		if err := apply(bill); err != nil {
			s.log.Warn("bill transition rejected",
				zap.String("bill_id", bill.ID.String()),
				zap.String("operation", action),
				zap.String("status", string(fromStatus)),
				zap.Error(err),
			)
			obsmetrics.Bill().IncLifecycleOp(action, "rejected")
			return err
		}

		for _, item := range bill.Items {
			if err := s.repo.SaveItem(ctx, tx, item); err != nil {
				return err
			}
		}
		return s.repo.Save(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	obsmetrics.Bill().IncLifecycleOp(action, "success")
	s.log.Info("bill transitioned",
		zap.String("bill_id", bill.ID.String()),
		zap.String("bill_number", bill.BillNumber),
		zap.String("operation", action),
		zap.String("status", string(bill.Status)),
	)
	s.emit(ctx, action, bill, map[string]any{
		"status":       string(bill.Status),
		"total_amount": bill.TotalAmount.String(),
	})
	return bill, nil
}

// updateStatus is the internal primitive behind every transition: a
// no-op on the current status, and stamps PayTime the first time the
// bill turns paid.
func (s *Service) updateStatus(bill *domain.Bill, target domain.BillStatus) {
	if bill.Status == target {
		return
	}
	bill.Status = target
	if target == domain.BillStatusPaid && bill.PayTime == nil {
		now := s.clock.Now()
		bill.PayTime = &now
	}
	bill.UpdatedAt = s.clock.Now()
}

func (s *Service) loadBillForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	bill, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, domain.ErrBillNotFound
	}
	return bill, nil
}

func (s *Service) emit(ctx context.Context, action string, bill *domain.Bill, metadata map[string]any) {
	if s.events == nil || bill == nil {
		return
	}
	s.events.Publish(ctx, domain.Event{
		Action:     action,
		BillID:     bill.ID.String(),
		BillNumber: bill.BillNumber,
		Metadata:   metadata,
	})
}

func findOwnedItem(bill *domain.Bill, itemID snowflake.ID) *domain.BillItem {
	for _, item := range bill.Items {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, domain.ErrMissingBillID
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed id %q", domain.ErrInvalidBillData, raw)
	}
	return id, nil
}
