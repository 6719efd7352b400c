package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
)

type Customer struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Email     string    `gorm:"size:200" json:"email"`
	Phone     string    `gorm:"size:40" json:"phone"`
	Address   string    `gorm:"size:500" json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewCustomer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (input *NewCustomer) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return NewValidationError("customer name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return NewValidationError("customer email %q is invalid", input.Email)
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	customer := Customer{
		Name:    strings.TrimSpace(input.Name),
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "CreateCustomer", "insert", input, err)
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, &NotFoundError{Resource: "customer", Id: id}
	}
	return customer, nil
}
