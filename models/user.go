package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID             int        `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"size:100;not null" json:"name"`
	Email          string     `gorm:"size:200;uniqueIndex;not null" json:"email"`
	Password       string     `gorm:"size:100;not null" json:"-"`
	Role           UserRole   `gorm:"size:20;not null;default:seller" json:"role"`
	IsActive       bool       `gorm:"not null;default:true" json:"isActive"`
	LastActivityAt *time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type NewUser struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
}

func (input *NewUser) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return NewValidationError("user name is required")
	}
	if !utils.IsValidEmail(input.Email) {
		return NewValidationError("user email %q is invalid", input.Email)
	}
	if len(input.Password) < 6 {
		return NewValidationError("password must be at least 6 characters")
	}
	if !input.Role.Valid() {
		return NewValidationError("unknown role %q", input.Role)
	}
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	if err := utils.ValidateUnique[User](ctx, "email", input.Email, 0); err != nil {
		return nil, NewValidationError("email %q is already registered", input.Email)
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	user := User{
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.ToLower(input.Email),
		Password: string(hashed),
		Role:     input.Role,
		IsActive: true,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "CreateUser", "insert", user.Email, err)
		return nil, err
	}
	return &user, nil
}

var errBadCredentials = errors.New("invalid email or password")

// AuthenticateUser verifies credentials and returns a signed token plus the
// user. The same opaque error covers unknown email and wrong password.
func AuthenticateUser(ctx context.Context, email string, password string) (string, *User, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return "", nil, errBadCredentials
	}
	if !user.IsActive {
		return "", nil, errBadCredentials
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return "", nil, errBadCredentials
	}

	token, err := utils.JwtGenerate(user.ID, user.Name, string(user.Role))
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	db.WithContext(ctx).Model(&user).Update("last_activity_at", now)
	user.LastActivityAt = &now

	return token, &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchModel[User](ctx, id)
	if err != nil {
		return nil, &NotFoundError{Resource: "user", Id: id}
	}
	return user, nil
}

func UpdateUserRole(ctx context.Context, id int, role UserRole) (*User, error) {
	if !role.Valid() {
		return nil, NewValidationError("unknown role %q", role)
	}

	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "user", Id: id}
		}
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&user).Update("role", role).Error; err != nil {
		return nil, err
	}
	user.Role = role
	return &user, nil
}

func ActiveUserCount(ctx context.Context) (int64, error) {
	return utils.ResourceCountWhere[User](ctx, "is_active = ?", true)
}
