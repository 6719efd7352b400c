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

type CustomerOrder struct {
	ID              int                 `gorm:"primaryKey" json:"id"`
	OrderNumber     string              `gorm:"size:32;uniqueIndex;not null" json:"orderNumber"`
	CustomerId      *int                `json:"customerId"`
	Customer        *Customer           `json:"customer,omitempty"`
	UserId          int                 `gorm:"not null" json:"userId"`
	User            *User               `json:"user,omitempty"`
	TaxId           *int                `json:"taxId"`
	Tax             *Tax                `json:"tax,omitempty"`
	FulfillmentMode FulfillmentMode     `gorm:"size:12;not null;default:IN_STORE" json:"fulfillmentMode"`
	DeliveryAddress string              `gorm:"size:500" json:"deliveryAddress"`
	Status          CustomerOrderStatus `gorm:"size:12;not null;default:DRAFT" json:"status"`
	IsDirectSale    bool                `gorm:"not null;default:false" json:"isDirectSale"`
	IsPaid          bool                `gorm:"not null;default:false" json:"isPaid"`
	Discount        decimal.Decimal     `gorm:"type:decimal(5,2);not null;default:0" json:"discount"`
	TotalAmount     decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0" json:"totalAmount"`
	Notes           string              `gorm:"size:1000" json:"notes"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Lines           []CustomerOrderLine `gorm:"foreignKey:CustomerOrderId;constraint:OnDelete:CASCADE" json:"lines"`
}

// CanBeDeleted: a validated or paid order stays on the books; the way out
// is cancellation, never deletion.
func (o *CustomerOrder) CanBeDeleted() bool {
	return o.Status != OrderStatusValidated && !o.IsPaid
}

type NewCustomerOrder struct {
	CustomerId      *int                   `json:"customerId"`
	TaxId           *int                   `json:"taxId"`
	FulfillmentMode FulfillmentMode        `json:"fulfillmentMode"`
	DeliveryAddress string                 `json:"deliveryAddress"`
	IsDirectSale    bool                   `json:"isDirectSale"`
	Discount        decimal.Decimal        `json:"discount"`
	Notes           string                 `json:"notes"`
	Lines           []NewCustomerOrderLine `json:"lines"`
}

func (input *NewCustomerOrder) validate() error {
	if len(input.Lines) == 0 {
		return NewValidationError("order must contain at least one line")
	}
	if input.Discount.IsNegative() || input.Discount.GreaterThan(decimalHundred) {
		return NewValidationError("order discount must be between 0 and 100")
	}
	if input.FulfillmentMode != "" && !input.FulfillmentMode.Valid() {
		return NewValidationError("unknown fulfillment mode %q", input.FulfillmentMode)
	}
	if !input.IsDirectSale && input.CustomerId == nil {
		return NewValidationError("customer orders require a customer reference")
	}
	if !input.IsDirectSale && input.FulfillmentMode == FulfillmentDelivery && strings.TrimSpace(input.DeliveryAddress) == "" {
		return NewValidationError("delivery orders require a delivery address")
	}
	return nil
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("CMD-%s-%s", time.Now().Format("20060102"), suffix)
}

// CreateCustomerOrder builds the order, its merged lines and the persisted
// total in one transaction. For a direct sale the server forces the
// terminal invariants (validated, paid, in-store) and debits stock before
// committing: the sale and its stock effect are atomic. The returned alerts
// list products the sale pushed to or below their threshold.
func CreateCustomerOrder(ctx context.Context, input *NewCustomerOrder) (*CustomerOrder, []LowStockAlert, error) {
	logger := config.GetLogger()

	if err := input.validate(); err != nil {
		return nil, nil, err
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, nil, NewValidationError("missing authenticated user")
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[Customer](ctx, *input.CustomerId); err != nil {
			return nil, nil, &NotFoundError{Resource: "customer", Id: *input.CustomerId}
		}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	// Snapshot unit prices for lines that did not bring their own.
	resolved := make([]NewCustomerOrderLine, len(input.Lines))
	copy(resolved, input.Lines)
	priceCache := map[int]decimal.Decimal{}
	for i, line := range resolved {
		if line.UnitPrice != nil {
			continue
		}
		price, cached := priceCache[line.ProductId]
		if !cached {
			var product Product
			if err := tx.First(&product, line.ProductId).Error; err != nil {
				tx.Rollback()
				if err == gorm.ErrRecordNotFound {
					return nil, nil, &NotFoundError{Resource: "product", Id: line.ProductId}
				}
				return nil, nil, err
			}
			price = product.SalePrice
			priceCache[line.ProductId] = price
		}
		p := price
		resolved[i].UnitPrice = &p
	}

	aggregated, err := AggregateOrderLines(resolved)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	for _, line := range aggregated {
		if err := utils.ValidateResourceId[Product](ctx, line.ProductId); err != nil {
			tx.Rollback()
			return nil, nil, &NotFoundError{Resource: "product", Id: line.ProductId}
		}
	}

	taxRate, err := ResolveTaxRate(ctx, tx, input.TaxId)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	lineTotals := make([]decimal.Decimal, len(aggregated))
	for i := range aggregated {
		lineTotals[i] = aggregated[i].LineTotal()
	}
	total := utils.CalculateOrderTotalWithTax(utils.CalculateOrderSubtotal(lineTotals), taxRate)

	order := CustomerOrder{
		OrderNumber:     newOrderNumber(),
		CustomerId:      input.CustomerId,
		UserId:          userId,
		TaxId:           input.TaxId,
		FulfillmentMode: input.FulfillmentMode,
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		Status:          OrderStatusDraft,
		IsDirectSale:    input.IsDirectSale,
		Discount:        input.Discount,
		TotalAmount:     total,
		Notes:           input.Notes,
	}
	if order.FulfillmentMode == "" {
		order.FulfillmentMode = FulfillmentInStore
	}
	if input.IsDirectSale {
		// Server-side overrides: a direct sale is settled at the counter,
		// whatever the client sent. A nil customer is the only direct-sale
		// marker downstream (statistics split on it), so any submitted
		// customer reference is dropped too.
		order.Status = OrderStatusValidated
		order.IsPaid = true
		order.FulfillmentMode = FulfillmentInStore
		order.DeliveryAddress = ""
		order.CustomerId = nil
	}

	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "models", "CreateCustomerOrder", "insert order", input, err)
		return nil, nil, err
	}

	for _, agg := range aggregated {
		productId := agg.ProductId
		line := CustomerOrderLine{
			CustomerOrderId: order.ID,
			ProductId:       &productId,
			Quantity:        agg.Quantity,
			UnitPrice:       agg.UnitPrice,
			LineDiscount:    agg.LineDiscount,
		}
		if err := tx.Create(&line).Error; err != nil {
			tx.Rollback()
			config.LogError(logger, "models", "CreateCustomerOrder", "insert line", agg, err)
			return nil, nil, err
		}
		order.Lines = append(order.Lines, line)
	}

	var alerts []LowStockAlert
	if input.IsDirectSale {
		alerts, err = ReserveAndDebitStock(tx, ctx, order.ID, userId, aggregated)
		if err != nil {
			tx.Rollback()
			return nil, nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, nil, wrapConflict(err)
	}

	workflow.RunAfterCommit(ctx, EventStatisticsDirty)
	LogActivity(ctx, "create", "customer_order", order.ID, order.OrderNumber)
	return &order, alerts, nil
}

func GetCustomerOrder(ctx context.Context, id int) (*CustomerOrder, error) {
	order, err := utils.FetchModel[CustomerOrder](ctx, id, "Lines", "Lines.Product", "Customer", "Tax", "User")
	if err != nil {
		return nil, &NotFoundError{Resource: "customer order", Id: id}
	}
	return order, nil
}

func ListCustomerOrders(ctx context.Context, status CustomerOrderStatus, limit int, offset int) ([]*CustomerOrder, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	dbCtx := db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset).Preload("Lines")
	if status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	var orders []*CustomerOrder
	if err := dbCtx.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// lockOrder loads the order under FOR UPDATE so concurrent transitions
// serialize on the row.
func lockOrder(tx *gorm.DB, id int) (*CustomerOrder, error) {
	var order CustomerOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "customer order", Id: id}
		}
		return nil, wrapConflict(err)
	}
	return &order, nil
}

func ValidateCustomerOrder(ctx context.Context, id int) (*CustomerOrder, error) {
	return transitionOrder(ctx, id, "ValidateCustomerOrder", "validate", func(order *CustomerOrder) error {
		if order.Status != OrderStatusDraft {
			return NewValidationError("cannot validate order in status %s", order.Status)
		}
		order.Status = OrderStatusValidated
		return nil
	})
}

func MarkCustomerOrderDelivered(ctx context.Context, id int) (*CustomerOrder, error) {
	return transitionOrder(ctx, id, "MarkCustomerOrderDelivered", "deliver", func(order *CustomerOrder) error {
		if order.Status != OrderStatusValidated {
			return NewValidationError("cannot deliver order in status %s", order.Status)
		}
		order.Status = OrderStatusDelivered
		return nil
	})
}

func MarkCustomerOrderPaid(ctx context.Context, id int) (*CustomerOrder, error) {
	return transitionOrder(ctx, id, "MarkCustomerOrderPaid", "mark_paid", func(order *CustomerOrder) error {
		if order.Status == OrderStatusCancelled {
			return ErrAlreadyCancelled
		}
		order.IsPaid = true
		return nil
	})
}

func transitionOrder(ctx context.Context, id int, funcName string, action string, mutate func(*CustomerOrder) error) (*CustomerOrder, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	order, err := lockOrder(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := mutate(order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Save(order).Error; err != nil {
		tx.Rollback()
		config.LogError(config.GetLogger(), "models", funcName, "save", id, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, wrapConflict(err)
	}

	workflow.RunAfterCommit(ctx, EventStatisticsDirty)
	LogActivity(ctx, action, "customer_order", order.ID, order.OrderNumber)
	return order, nil
}

// CancelCustomerOrder moves a draft or validated order to CANCELLED.
// Cancelling twice is its own failure, distinct from an invalid transition.
// When RESTOCK_ON_CANCEL is enabled, stock debited by this order is credited
// back with compensating IN movements; the original OUT rows stay untouched.
func CancelCustomerOrder(ctx context.Context, id int) (*CustomerOrder, error) {
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

	order, err := lockOrder(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	switch order.Status {
	case OrderStatusCancelled:
		tx.Rollback()
		return nil, ErrAlreadyCancelled
	case OrderStatusDelivered:
		tx.Rollback()
		return nil, NewValidationError("cannot cancel a delivered order")
	}

	order.Status = OrderStatusCancelled
	if err := tx.Save(order).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "models", "CancelCustomerOrder", "save", id, err)
		return nil, err
	}

	if config.RestockOnCancel() {
		if err := restockCancelledOrder(tx, order, userId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, wrapConflict(err)
	}

	workflow.RunAfterCommit(ctx, EventStatisticsDirty)
	LogActivity(ctx, "cancel", "customer_order", order.ID, order.OrderNumber)
	return order, nil
}

// restockCancelledOrder writes one compensating IN movement per OUT
// movement of the order. The ledger keeps both sides of the story.
func restockCancelledOrder(tx *gorm.DB, order *CustomerOrder, userId int) error {
	var debits []StockMovement
	err := tx.Where("customer_order_id = ? AND movement_type = ?", order.ID, MovementTypeOut).
		Order("product_id").
		Find(&debits).Error
	if err != nil {
		return err
	}

	for _, debit := range debits {
		qty := -debit.Quantity // OUT rows carry negative quantities
		if qty <= 0 {
			continue
		}
		if _, err := LockProductForUpdate(tx, debit.ProductId); err != nil {
			return err
		}
		if err := AdjustProductStock(tx, debit.ProductId, qty); err != nil {
			return err
		}
		orderId := order.ID
		movement := StockMovement{
			ProductId:       debit.ProductId,
			UserId:          userId,
			CustomerOrderId: &orderId,
			MovementType:    MovementTypeIn,
			Quantity:        qty,
			Reason:          "order cancelled",
		}
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}
	}
	return nil
}

func CanDeleteCustomerOrder(ctx context.Context, id int) (bool, error) {
	order, err := utils.FetchModel[CustomerOrder](ctx, id)
	if err != nil {
		return false, &NotFoundError{Resource: "customer order", Id: id}
	}
	return order.CanBeDeleted(), nil
}

// DeleteCustomerOrder hard-deletes a draft order and its lines. It never
// touches stock: deletion is for orders that had no stock effect. Anything
// validated or paid is NotDeletable.
func DeleteCustomerOrder(ctx context.Context, id int) error {
	logger := config.GetLogger()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	order, err := lockOrder(tx, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if !order.CanBeDeleted() {
		tx.Rollback()
		return ErrNotDeletable
	}

	if err := tx.Where("customer_order_id = ?", order.ID).Delete(&CustomerOrderLine{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(order).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "models", "DeleteCustomerOrder", "delete", id, err)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return wrapConflict(err)
	}

	LogActivity(ctx, "delete", "customer_order", id, order.OrderNumber)
	return nil
}

// RefreshCustomerOrderTotal recomputes the persisted total from the stored
// lines and tax reference. The total is always a pure function of those.
func RefreshCustomerOrderTotal(ctx context.Context, id int) (*CustomerOrder, error) {
	db := config.GetDB()

	order, err := GetCustomerOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	taxRate, err := ResolveTaxRate(ctx, db.WithContext(ctx), order.TaxId)
	if err != nil {
		return nil, err
	}

	lineTotals := make([]decimal.Decimal, len(order.Lines))
	for i := range order.Lines {
		lineTotals[i] = order.Lines[i].LineTotal()
	}
	total := utils.CalculateOrderTotalWithTax(utils.CalculateOrderSubtotal(lineTotals), taxRate)

	if err := db.WithContext(ctx).Model(&CustomerOrder{}).Where("id = ?", id).
		Update("total_amount", total).Error; err != nil {
		return nil, err
	}
	order.TotalAmount = total
	return order, nil
}
