package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Tax struct {
	ID        int             `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Rate      decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"rate"`
	CreatedAt time.Time       `json:"createdAt"`
}

type NewTax struct {
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

func (input *NewTax) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return NewValidationError("tax name is required")
	}
	if input.Rate.IsNegative() || input.Rate.GreaterThan(decimal.NewFromInt(100)) {
		return NewValidationError("tax rate must be between 0 and 100")
	}
	return nil
}

func CreateTax(ctx context.Context, input *NewTax) (*Tax, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tax := Tax{
		Name: strings.TrimSpace(input.Name),
		Rate: input.Rate,
	}
	if err := db.WithContext(ctx).Create(&tax).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "CreateTax", "insert", input, err)
		return nil, err
	}
	return &tax, nil
}

func ListTaxes(ctx context.Context) ([]*Tax, error) {
	return utils.FetchAllModels[Tax](ctx)
}

func GetTax(ctx context.Context, id int) (*Tax, error) {
	tax, err := utils.FetchModel[Tax](ctx, id)
	if err != nil {
		return nil, &NotFoundError{Resource: "tax", Id: id}
	}
	return tax, nil
}

// ResolveTaxRate returns the percentage rate for the given tax reference.
// A nil reference means the default rate; no database round trip happens.
func ResolveTaxRate(ctx context.Context, db *gorm.DB, taxId *int) (decimal.Decimal, error) {
	if taxId == nil {
		return utils.DefaultTaxRatePercent, nil
	}

	var tax Tax
	if err := db.WithContext(ctx).First(&tax, *taxId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, &NotFoundError{Resource: "tax", Id: *taxId}
		}
		return decimal.Zero, err
	}
	return tax.Rate, nil
}
