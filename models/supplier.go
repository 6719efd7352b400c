package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
)

type Supplier struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Email     string    `gorm:"size:200" json:"email"`
	Phone     string    `gorm:"size:40" json:"phone"`
	Address   string    `gorm:"size:500" json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewSupplier struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (input *NewSupplier) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return NewValidationError("supplier name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return NewValidationError("supplier email %q is invalid", input.Email)
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	supplier := Supplier{
		Name:    strings.TrimSpace(input.Name),
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
	}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "CreateSupplier", "insert", input, err)
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, &NotFoundError{Resource: "supplier", Id: id}
	}
	return supplier, nil
}
