package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"bitbucket.org/mmdatafocus/stockflow_backend/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SupplierOrder struct {
	ID          int                 `gorm:"primaryKey" json:"id"`
	Code        string              `gorm:"size:32;uniqueIndex;not null" json:"code"`
	SupplierId  int                 `gorm:"not null" json:"supplierId"`
	Supplier    *Supplier           `json:"supplier,omitempty"`
	UserId      int                 `gorm:"not null" json:"userId"`
	ProductType string              `gorm:"size:200" json:"productType"`
	Status      SupplierOrderStatus `gorm:"size:12;not null;default:DRAFT" json:"status"`
	Notes       string              `gorm:"size:1000" json:"notes"`
	ValidatedAt *time.Time          `json:"validatedAt"`
	CreatedAt   time.Time           `json:"createdAt"`
	Lines       []SupplierOrderLine `gorm:"foreignKey:SupplierOrderId;constraint:OnDelete:CASCADE" json:"lines"`
}

type SupplierOrderLine struct {
	ID              int             `gorm:"primaryKey" json:"id"`
	SupplierOrderId int             `gorm:"not null;index" json:"supplierOrderId"`
	ProductId       int             `gorm:"not null" json:"productId"`
	Product         *Product        `json:"product,omitempty"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
	LineDiscount    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"lineDiscount"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"lineTotal"`
	ExpectedDate    *time.Time      `json:"expectedDate"`
	IsDelivered     bool            `gorm:"not null;default:false" json:"isDelivered"`
}

type NewSupplierOrderLine struct {
	ProductId    int             `json:"productId"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineDiscount decimal.Decimal `json:"lineDiscount"`
	ExpectedDate *time.Time      `json:"expectedDate"`
}

type NewSupplierOrder struct {
	SupplierId  int                    `json:"supplierId"`
	ProductType string                 `json:"productType"`
	Notes       string                 `json:"notes"`
	Lines       []NewSupplierOrderLine `json:"lines"`
}

func (input *NewSupplierOrder) validate() error {
	if input.SupplierId <= 0 {
		return NewValidationError("supplier is required")
	}
	if len(input.Lines) == 0 {
		return NewValidationError("supplier order must contain at least one line")
	}
	for _, line := range input.Lines {
		if line.Quantity < 1 {
			return NewValidationError("line quantity must be at least 1, got %d (product %d)", line.Quantity, line.ProductId)
		}
		if line.UnitPrice.IsNegative() {
			return NewValidationError("line unit price must not be negative (product %d)", line.ProductId)
		}
		if line.LineDiscount.IsNegative() || line.LineDiscount.GreaterThan(decimalHundred) {
			return NewValidationError("line discount must be between 0 and 100 (product %d)", line.ProductId)
		}
	}
	return nil
}

func newSupplierOrderCode() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("PO-%s-%s", time.Now().Format("20060102"), suffix)
}

func CreateSupplierOrder(ctx context.Context, input *NewSupplierOrder) (*SupplierOrder, error) {
	logger := config.GetLogger()

	if err := input.validate(); err != nil {
		return nil, err
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, NewValidationError("missing authenticated user")
	}
	if err := utils.ValidateResourceId[Supplier](ctx, input.SupplierId); err != nil {
		return nil, &NotFoundError{Resource: "supplier", Id: input.SupplierId}
	}
	productIds := make([]int, 0, len(input.Lines))
	for _, line := range input.Lines {
		productIds = append(productIds, line.ProductId)
	}
	if err := utils.ValidateResourcesId[Product](ctx, productIds); err != nil {
		return nil, NewValidationError("supplier order references an unknown product")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	order := SupplierOrder{
		Code:        newSupplierOrderCode(),
		SupplierId:  input.SupplierId,
		UserId:      userId,
		ProductType: input.ProductType,
		Status:      SupplierOrderStatusDraft,
		Notes:       input.Notes,
	}
	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "models", "CreateSupplierOrder", "insert order", input, err)
		return nil, err
	}

	for _, l := range input.Lines {
		line := SupplierOrderLine{
			SupplierOrderId: order.ID,
			ProductId:       l.ProductId,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			LineDiscount:    l.LineDiscount,
			LineTotal:       utils.CalculateLineTotal(l.Quantity, l.UnitPrice, l.LineDiscount).Round(2),
			ExpectedDate:    l.ExpectedDate,
		}
		if err := tx.Create(&line).Error; err != nil {
			tx.Rollback()
			config.LogError(logger, "models", "CreateSupplierOrder", "insert line", l, err)
			return nil, err
		}
		order.Lines = append(order.Lines, line)
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, wrapConflict(err)
	}

	workflow.RunAfterCommit(ctx, EventStatisticsDirty)
	LogActivity(ctx, "create", "supplier_order", order.ID, order.Code)
	return &order, nil
}

func GetSupplierOrder(ctx context.Context, id int) (*SupplierOrder, error) {
	order, err := utils.FetchModel[SupplierOrder](ctx, id, "Lines", "Lines.Product", "Supplier")
	if err != nil {
		return nil, &NotFoundError{Resource: "supplier order", Id: id}
	}
	return order, nil
}

func lockSupplierOrder(tx *gorm.DB, id int) (*SupplierOrder, error) {
	var order SupplierOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "supplier order", Id: id}
		}
		return nil, wrapConflict(err)
	}
	return &order, nil
}

func ValidateSupplierOrder(ctx context.Context, id int) (*SupplierOrder, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	order, err := lockSupplierOrder(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.Status != SupplierOrderStatusDraft {
		tx.Rollback()
		return nil, NewValidationError("cannot validate supplier order in status %s", order.Status)
	}

	now := time.Now()
	order.Status = SupplierOrderStatusValidated
	order.ValidatedAt = &now
	if err := tx.Save(order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, wrapConflict(err)
	}

	LogActivity(ctx, "validate", "supplier_order", order.ID, order.Code)
	return order, nil
}

// ReceiveSupplierOrder marks a validated order delivered and credits stock:
// one IN movement per line, in the same transaction as the status change.
func ReceiveSupplierOrder(ctx context.Context, id int) (*SupplierOrder, error) {
	logger := config.GetLogger()
	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	order, err := lockSupplierOrder(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.Status != SupplierOrderStatusValidated {
		tx.Rollback()
		return nil, NewValidationError("cannot receive supplier order in status %s", order.Status)
	}

	var lines []SupplierOrderLine
	if err := tx.Where("supplier_order_id = ?", order.ID).Find(&lines).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	items := make([]InboundItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, InboundItem{
			ProductId: line.ProductId,
			Quantity:  line.Quantity,
			Reason:    fmt.Sprintf("supplier delivery %s", order.Code),
		})
	}
	orderId := order.ID
	if err := ReceiveStock(tx, ctx, &orderId, userId, items); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Model(&SupplierOrderLine{}).Where("supplier_order_id = ?", order.ID).
		Update("is_delivered", true).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	order.Status = SupplierOrderStatusDelivered
	if err := tx.Save(order).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "models", "ReceiveSupplierOrder", "save", id, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, wrapConflict(err)
	}

	workflow.RunAfterCommit(ctx, EventStatisticsDirty)
	LogActivity(ctx, "receive", "supplier_order", order.ID, order.Code)
	return order, nil
}

func CancelSupplierOrder(ctx context.Context, id int) (*SupplierOrder, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	order, err := lockSupplierOrder(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	switch order.Status {
	case SupplierOrderStatusCancelled:
		tx.Rollback()
		return nil, ErrAlreadyCancelled
	case SupplierOrderStatusDelivered:
		tx.Rollback()
		return nil, NewValidationError("cannot cancel a delivered supplier order")
	}

	order.Status = SupplierOrderStatusCancelled
	if err := tx.Save(order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, wrapConflict(err)
	}

	LogActivity(ctx, "cancel", "supplier_order", order.ID, order.Code)
	return order, nil
}
