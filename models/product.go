package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Product struct {
	ID             int             `gorm:"primaryKey" json:"id"`
	Reference      string          `gorm:"size:20;uniqueIndex;not null" json:"reference"`
	Designation    string          `gorm:"size:200;not null" json:"designation"`
	Description    string          `gorm:"size:1000" json:"description"`
	PurchasePrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"purchasePrice"`
	SalePrice      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"salePrice"`
	StockQuantity  int             `gorm:"not null;default:0" json:"stockQuantity"`
	AlertThreshold int             `gorm:"not null;default:5" json:"alertThreshold"`
	UnitOfMeasure  UnitOfMeasure   `gorm:"size:10;not null;default:UNIT" json:"unitOfMeasure"`
	IsActive       bool            `gorm:"not null;default:true" json:"isActive"`
	TaxId          *int            `json:"taxId"`
	Tax            *Tax            `json:"tax,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type NewProduct struct {
	Designation    string          `json:"designation"`
	Description    string          `json:"description"`
	PurchasePrice  decimal.Decimal `json:"purchasePrice"`
	SalePrice      decimal.Decimal `json:"salePrice"`
	StockQuantity  int             `json:"stockQuantity"`
	AlertThreshold *int            `json:"alertThreshold"`
	UnitOfMeasure  UnitOfMeasure   `json:"unitOfMeasure"`
	TaxId          *int            `json:"taxId"`
}

type UpdateProductInput struct {
	Designation    *string          `json:"designation"`
	Description    *string          `json:"description"`
	PurchasePrice  *decimal.Decimal `json:"purchasePrice"`
	SalePrice      *decimal.Decimal `json:"salePrice"`
	AlertThreshold *int             `json:"alertThreshold"`
	UnitOfMeasure  *UnitOfMeasure   `json:"unitOfMeasure"`
	TaxId          *int             `json:"taxId"`
}

func (input *NewProduct) validate() error {
	if strings.TrimSpace(input.Designation) == "" {
		return NewValidationError("product designation is required")
	}
	if input.PurchasePrice.IsNegative() || input.SalePrice.IsNegative() {
		return NewValidationError("product prices must not be negative")
	}
	if input.StockQuantity < 0 {
		return NewValidationError("initial stock must not be negative")
	}
	if input.AlertThreshold != nil && *input.AlertThreshold < 0 {
		return NewValidationError("alert threshold must not be negative")
	}
	if input.UnitOfMeasure != "" && !input.UnitOfMeasure.Valid() {
		return NewValidationError("unknown unit of measure %q", input.UnitOfMeasure)
	}
	return nil
}

// nextProductReference assigns the PRD code from the highest existing id.
// The MAX() runs under FOR UPDATE so two concurrent creates cannot pick the
// same code.
func nextProductReference(tx *gorm.DB) (string, error) {
	var maxId int
	err := tx.Raw("SELECT COALESCE(MAX(id), 0) FROM products FOR UPDATE").Scan(&maxId).Error
	if err != nil {
		return "", wrapConflict(err)
	}
	return fmt.Sprintf("PRD%05d", maxId+1), nil
}

// CreateProduct inserts the product with an explicitly assigned reference.
// An initial stock quantity also writes the opening IN movement so the
// ledger matches the cached counter from day one.
func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	logger := config.GetLogger()

	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.TaxId != nil {
		if err := utils.ValidateResourceId[Tax](ctx, *input.TaxId); err != nil {
			return nil, &NotFoundError{Resource: "tax", Id: *input.TaxId}
		}
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

	reference, err := nextProductReference(tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	threshold := 5
	if input.AlertThreshold != nil {
		threshold = *input.AlertThreshold
	}
	unit := input.UnitOfMeasure
	if unit == "" {
		unit = UnitPiece
	}

	product := Product{
		Reference:      reference,
		Designation:    strings.TrimSpace(input.Designation),
		Description:    input.Description,
		PurchasePrice:  input.PurchasePrice,
		SalePrice:      input.SalePrice,
		StockQuantity:  input.StockQuantity,
		AlertThreshold: threshold,
		UnitOfMeasure:  unit,
		IsActive:       true,
		TaxId:          input.TaxId,
	}
	if err := tx.Create(&product).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "models", "CreateProduct", "insert", input, err)
		return nil, err
	}

	if input.StockQuantity > 0 {
		movement := StockMovement{
			ProductId:    product.ID,
			UserId:       userId,
			MovementType: MovementTypeIn,
			Quantity:     input.StockQuantity,
			Reason:       "opening stock",
		}
		if err := tx.Create(&movement).Error; err != nil {
			tx.Rollback()
			config.LogError(logger, "models", "CreateProduct", "opening movement", product.ID, err)
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, wrapConflict(err)
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id, "Tax")
	if err != nil {
		return nil, &NotFoundError{Resource: "product", Id: id}
	}
	return product, nil
}

func ListProducts(ctx context.Context, activeOnly bool) ([]*Product, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Order("reference")
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	var products []*Product
	if err := dbCtx.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateProduct applies the non-nil fields. Reference and StockQuantity are
// immutable here: the reference is assigned once at creation, and stock only
// moves through the movement ledger.
func UpdateProduct(ctx context.Context, id int, input *UpdateProductInput) (*Product, error) {
	db := config.GetDB()

	var product Product
	if err := db.WithContext(ctx).First(&product, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "product", Id: id}
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Designation != nil {
		if strings.TrimSpace(*input.Designation) == "" {
			return nil, NewValidationError("product designation is required")
		}
		updates["designation"] = strings.TrimSpace(*input.Designation)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.PurchasePrice != nil {
		if input.PurchasePrice.IsNegative() {
			return nil, NewValidationError("product prices must not be negative")
		}
		updates["purchase_price"] = *input.PurchasePrice
	}
	if input.SalePrice != nil {
		if input.SalePrice.IsNegative() {
			return nil, NewValidationError("product prices must not be negative")
		}
		updates["sale_price"] = *input.SalePrice
	}
	if input.AlertThreshold != nil {
		if *input.AlertThreshold < 0 {
			return nil, NewValidationError("alert threshold must not be negative")
		}
		updates["alert_threshold"] = *input.AlertThreshold
	}
	if input.UnitOfMeasure != nil {
		if !input.UnitOfMeasure.Valid() {
			return nil, NewValidationError("unknown unit of measure %q", *input.UnitOfMeasure)
		}
		updates["unit_of_measure"] = *input.UnitOfMeasure
	}
	if input.TaxId != nil {
		if err := utils.ValidateResourceId[Tax](ctx, *input.TaxId); err != nil {
			return nil, &NotFoundError{Resource: "tax", Id: *input.TaxId}
		}
		updates["tax_id"] = *input.TaxId
	}

	if len(updates) == 0 {
		return &product, nil
	}
	if err := db.WithContext(ctx).Model(&product).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ArchiveProduct deactivates a product without touching its history. This
// is the safe alternative to DeleteProduct for anything already sold.
func ArchiveProduct(ctx context.Context, id int) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "product", Id: id}
	}
	return nil
}

// CanDeleteProduct reports whether a hard delete is allowed: only when no
// order line has ever referenced the product.
func CanDeleteProduct(ctx context.Context, id int) (bool, error) {
	lineCount, err := utils.ResourceCountWhere[CustomerOrderLine](ctx, "product_id = ?", id)
	if err != nil {
		return false, err
	}
	if lineCount > 0 {
		return false, nil
	}
	supplierLineCount, err := utils.ResourceCountWhere[SupplierOrderLine](ctx, "product_id = ?", id)
	if err != nil {
		return false, err
	}
	return supplierLineCount == 0, nil
}

func DeleteProduct(ctx context.Context, id int) error {
	if err := utils.ValidateResourceId[Product](ctx, id); err != nil {
		return &NotFoundError{Resource: "product", Id: id}
	}

	deletable, err := CanDeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	if !deletable {
		return ErrNotDeletable
	}

	db := config.GetDB()
	return db.WithContext(ctx).Delete(&Product{}, id).Error
}

// LockProductForUpdate loads the row under FOR UPDATE inside the caller's
// transaction. Callers locking several products must lock in ascending id
// order.
func LockProductForUpdate(tx *gorm.DB, id int) (*Product, error) {
	var product Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "product", Id: id}
		}
		return nil, wrapConflict(err)
	}
	return &product, nil
}

// AdjustProductStock moves the cached counter by delta inside the caller's
// transaction. The matching StockMovement must be written in the same
// transaction.
func AdjustProductStock(tx *gorm.DB, id int, delta int) error {
	return wrapConflict(tx.Exec("UPDATE products SET stock_quantity = stock_quantity + ? WHERE id = ?", delta, id).Error)
}

func ActiveProductCount(ctx context.Context) (int64, error) {
	return utils.ResourceCountWhere[Product](ctx, "is_active = ?", true)
}

func OutOfStockCount(ctx context.Context) (int64, error) {
	return utils.ResourceCountWhere[Product](ctx, "is_active = ? AND stock_quantity = 0", true)
}

func LowStockCount(ctx context.Context) (int64, error) {
	return utils.ResourceCountWhere[Product](ctx, "is_active = ? AND stock_quantity > 0 AND stock_quantity <= alert_threshold", true)
}

func LowStockProducts(ctx context.Context) ([]*Product, error) {
	db := config.GetDB()
	var products []*Product
	err := db.WithContext(ctx).
		Where("is_active = ? AND stock_quantity <= alert_threshold", true).
		Order("stock_quantity").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

type StockReconciliation struct {
	ProductId   int  `json:"productId"`
	LedgerSum   int  `json:"ledgerSum"`
	CachedStock int  `json:"cachedStock"`
	InSync      bool `json:"inSync"`
}

// ReconcileProductStock compares the movement ledger against the cached
// counter. The two must agree; a mismatch means a bug, not data to repair
// silently.
func ReconcileProductStock(ctx context.Context, id int) (*StockReconciliation, error) {
	db := config.GetDB()

	var product Product
	if err := db.WithContext(ctx).First(&product, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "product", Id: id}
		}
		return nil, err
	}

	var ledgerSum int
	err := db.WithContext(ctx).
		Raw("SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE product_id = ?", id).
		Scan(&ledgerSum).Error
	if err != nil {
		return nil, err
	}

	return &StockReconciliation{
		ProductId:   id,
		LedgerSum:   ledgerSum,
		CachedStock: product.StockQuantity,
		InSync:      ledgerSum == product.StockQuantity,
	}, nil
}
