package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
)

// ActivityLog is an append-only journal of operator actions. Writing it is
// best-effort: a failed audit row never fails the operation it describes.
type ActivityLog struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	UserId    int       `gorm:"index" json:"userId"`
	UserName  string    `gorm:"size:100" json:"userName"`
	Action    string    `gorm:"size:50;not null" json:"action"`
	Entity    string    `gorm:"size:50;not null" json:"entity"`
	EntityId  int       `json:"entityId"`
	Details   string    `gorm:"size:500" json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

func LogActivity(ctx context.Context, action string, entity string, entityId int, details string) {
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	db := config.GetDB()
	entry := ActivityLog{
		UserId:   userId,
		UserName: userName,
		Action:   action,
		Entity:   entity,
		EntityId: entityId,
		Details:  details,
	}
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "LogActivity", action+" "+entity, entityId, err)
	}
}

func RecentActivity(ctx context.Context, limit int) ([]*ActivityLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	db := config.GetDB()
	var entries []*ActivityLog
	err := db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
