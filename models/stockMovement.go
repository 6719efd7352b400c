package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"bitbucket.org/mmdatafocus/stockflow_backend/workflow"
	"gorm.io/gorm"
)

// StockMovement is append-only: rows are written inside the transaction
// that moves the cached counter and never updated or deleted afterwards.
// Quantity is signed, so SUM(quantity) per product equals the counter.
type StockMovement struct {
	ID              int          `gorm:"primaryKey" json:"id"`
	ProductId       int          `gorm:"not null;index" json:"productId"`
	Product         *Product     `json:"product,omitempty"`
	UserId          int          `json:"userId"`
	CustomerOrderId *int         `gorm:"index" json:"customerOrderId"`
	SupplierOrderId *int         `gorm:"index" json:"supplierOrderId"`
	MovementType    MovementType `gorm:"size:12;not null" json:"movementType"`
	Quantity        int          `gorm:"not null" json:"quantity"`
	Reason          string       `gorm:"size:500" json:"reason"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// LowStockAlert is raised when a debit leaves a product at or below its
// alert threshold. It is a signal for the caller, not a failure.
type LowStockAlert struct {
	ProductId      int    `json:"productId"`
	Reference      string `json:"reference"`
	Designation    string `json:"designation"`
	StockQuantity  int    `json:"stockQuantity"`
	AlertThreshold int    `json:"alertThreshold"`
}

// ReserveAndDebitStock debits every aggregated line or none of them.
//
// Phase one locks all products in ascending id order (two transactions
// debiting overlapping sets meet on the lowest shared id, so no deadlock)
// and re-checks availability under the lock. Phase two moves the counters
// and writes one OUT movement per product. Any failure leaves the caller's
// transaction to roll back with nothing debited.
func ReserveAndDebitStock(tx *gorm.DB, ctx context.Context, orderId int, userId int, lines []AggregatedLine) ([]LowStockAlert, error) {
	sorted := make([]AggregatedLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductId < sorted[j].ProductId })

	locked := make(map[int]*Product, len(sorted))
	for _, line := range sorted {
		product, err := LockProductForUpdate(tx, line.ProductId)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, NewValidationError("product %q is not active", product.Designation)
		}
		if product.StockQuantity < line.Quantity {
			return nil, &StockInsufficientError{
				ProductId:   product.ID,
				Designation: product.Designation,
				Available:   product.StockQuantity,
				Requested:   line.Quantity,
			}
		}
		locked[line.ProductId] = product
	}

	var alerts []LowStockAlert
	for _, line := range sorted {
		product := locked[line.ProductId]

		if err := AdjustProductStock(tx, product.ID, -line.Quantity); err != nil {
			return nil, err
		}
		movement := StockMovement{
			ProductId:       product.ID,
			UserId:          userId,
			CustomerOrderId: &orderId,
			MovementType:    MovementTypeOut,
			Quantity:        -line.Quantity,
			Reason:          "direct sale",
		}
		if err := tx.Create(&movement).Error; err != nil {
			return nil, err
		}

		newStock := product.StockQuantity - line.Quantity
		if newStock <= product.AlertThreshold {
			alerts = append(alerts, LowStockAlert{
				ProductId:      product.ID,
				Reference:      product.Reference,
				Designation:    product.Designation,
				StockQuantity:  newStock,
				AlertThreshold: product.AlertThreshold,
			})
		}
	}
	return alerts, nil
}

type InboundItem struct {
	ProductId int
	Quantity  int
	Reason    string
}

// ReceiveStock credits products and writes IN movements inside the caller's
// transaction. Locking follows the same ascending-id discipline as debits.
func ReceiveStock(tx *gorm.DB, ctx context.Context, supplierOrderId *int, userId int, items []InboundItem) error {
	sorted := make([]InboundItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductId < sorted[j].ProductId })

	for _, item := range sorted {
		if item.Quantity <= 0 {
			return NewValidationError("inbound quantity must be positive, got %d", item.Quantity)
		}
		if _, err := LockProductForUpdate(tx, item.ProductId); err != nil {
			return err
		}
		if err := AdjustProductStock(tx, item.ProductId, item.Quantity); err != nil {
			return err
		}
		reason := item.Reason
		if reason == "" {
			reason = "supplier delivery"
		}
		movement := StockMovement{
			ProductId:       item.ProductId,
			UserId:          userId,
			SupplierOrderId: supplierOrderId,
			MovementType:    MovementTypeIn,
			Quantity:        item.Quantity,
			Reason:          reason,
		}
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}
	}
	return nil
}

type NewStockAdjustment struct {
	ProductId int    `json:"productId"`
	Quantity  int    `json:"quantity"` // signed delta
	Reason    string `json:"reason"`
}

func (input *NewStockAdjustment) validate() error {
	if input.Quantity == 0 {
		return NewValidationError("adjustment quantity must not be zero")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return NewValidationError("adjustment reason is required")
	}
	return nil
}

// CreateStockAdjustment is the explicit manual correction path. A negative
// delta may not take the counter below zero.
func CreateStockAdjustment(ctx context.Context, input *NewStockAdjustment) (*StockMovement, error) {
	logger := config.GetLogger()

	if err := input.validate(); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	product, err := LockProductForUpdate(tx, input.ProductId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if product.StockQuantity+input.Quantity < 0 {
		tx.Rollback()
		return nil, &StockInsufficientError{
			ProductId:   product.ID,
			Designation: product.Designation,
			Available:   product.StockQuantity,
			Requested:   -input.Quantity,
		}
	}

	if err := AdjustProductStock(tx, product.ID, input.Quantity); err != nil {
		tx.Rollback()
		return nil, err
	}
	movement := StockMovement{
		ProductId:    product.ID,
		UserId:       userId,
		MovementType: MovementTypeAdjustment,
		Quantity:     input.Quantity,
		Reason:       strings.TrimSpace(input.Reason),
	}
	if err := tx.Create(&movement).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "models", "CreateStockAdjustment", "insert movement", input, err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, wrapConflict(err)
	}

	workflow.RunAfterCommit(ctx, EventStatisticsDirty)
	return &movement, nil
}

func ListStockMovements(ctx context.Context, productId int, limit int) ([]*StockMovement, error) {
	db := config.GetDB()
	if limit <= 0 {
		limit = 50
	}
	var movements []*StockMovement
	dbCtx := db.WithContext(ctx).Order("id DESC").Limit(limit)
	if productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", productId)
	}
	if err := dbCtx.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func StockMovementCountBetween(ctx context.Context, from time.Time, to time.Time) (int64, error) {
	return utils.ResourceCountWhere[StockMovement](ctx, "created_at >= ? AND created_at < ?", from, to)
}
