package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"bitbucket.org/mmdatafocus/stockflow_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// EventStatisticsDirty fires after any commit that can change today's
// numbers. The registered hook recomputes the whole daily row, so firing
// more often than strictly needed is harmless.
const EventStatisticsDirty = "statistics_dirty"

type DailyStatistic struct {
	ID                   int             `gorm:"primaryKey" json:"id"`
	Date                 time.Time       `gorm:"type:date;uniqueIndex;not null" json:"date"`
	SupplierOrderCount   int             `gorm:"not null;default:0" json:"supplierOrderCount"`
	SaleCount            int             `gorm:"not null;default:0" json:"saleCount"`
	DirectSaleCount      int             `gorm:"not null;default:0" json:"directSaleCount"`
	CustomerOrderCount   int             `gorm:"not null;default:0" json:"customerOrderCount"`
	TotalRevenue         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"totalRevenue"`
	DirectSaleRevenue    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"directSaleRevenue"`
	CustomerOrderRevenue decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"customerOrderRevenue"`
	NewCustomerCount     int             `gorm:"not null;default:0" json:"newCustomerCount"`
	NewSupplierCount     int             `gorm:"not null;default:0" json:"newSupplierCount"`
	ActiveProductCount   int             `gorm:"not null;default:0" json:"activeProductCount"`
	OutOfStockCount      int             `gorm:"not null;default:0" json:"outOfStockCount"`
	LowStockCount        int             `gorm:"not null;default:0" json:"lowStockCount"`
	StockMovementCount   int             `gorm:"not null;default:0" json:"stockMovementCount"`
	ActiveUserCount      int             `gorm:"not null;default:0" json:"activeUserCount"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

func init() {
	workflow.RegisterAfterCommit(EventStatisticsDirty, func(ctx context.Context) error {
		return workflow.WithBestEffortLock(ctx, "stockflow:stats:daily", 30*time.Second, UpdateDailyStatistics)
	})
}

// Cached range responses live under these keys. 7 feeds the dashboard, 30
// the export; other windows just age out through the TTL.
const statisticsRangeCacheTTL = time.Minute

func statisticsRangeCacheKey(days int) string {
	return fmt.Sprintf("stockflow:stats:range:%d", days)
}

// UpdateDailyStatistics recomputes today's row from scratch.
func UpdateDailyStatistics(ctx context.Context) error {
	return UpdateDailyStatisticsFor(ctx, time.Now())
}

// UpdateDailyStatisticsFor recomputes the row for the given day. Every
// field is derived from the source tables and the whole row is overwritten
// on conflict, so running it any number of times converges on the same
// values.
func UpdateDailyStatisticsFor(ctx context.Context, day time.Time) error {
	db := config.GetDB()
	from := utils.ConvertToDate(day)
	to := from.AddDate(0, 0, 1)

	var stat DailyStatistic
	stat.Date = from

	type orderAgg struct {
		Count   int
		Revenue decimal.Decimal
	}
	var direct, customer orderAgg

	err := db.WithContext(ctx).Raw(`
SELECT COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue
FROM customer_orders
WHERE created_at >= ? AND created_at < ? AND status <> ? AND is_direct_sale = TRUE`,
		from, to, OrderStatusCancelled).Scan(&direct).Error
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Raw(`
SELECT COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue
FROM customer_orders
WHERE created_at >= ? AND created_at < ? AND status <> ? AND is_direct_sale = FALSE`,
		from, to, OrderStatusCancelled).Scan(&customer).Error
	if err != nil {
		return err
	}

	stat.DirectSaleCount = direct.Count
	stat.CustomerOrderCount = customer.Count
	stat.SaleCount = direct.Count + customer.Count
	stat.DirectSaleRevenue = direct.Revenue
	stat.CustomerOrderRevenue = customer.Revenue
	stat.TotalRevenue = direct.Revenue.Add(customer.Revenue)

	counts := []struct {
		dest  *int
		query func() (int64, error)
	}{
		{&stat.SupplierOrderCount, func() (int64, error) {
			return utils.ResourceCountWhere[SupplierOrder](ctx,
				"created_at >= ? AND created_at < ? AND status <> ?", from, to, SupplierOrderStatusCancelled)
		}},
		{&stat.NewCustomerCount, func() (int64, error) {
			return utils.ResourceCountWhere[Customer](ctx, "created_at >= ? AND created_at < ?", from, to)
		}},
		{&stat.NewSupplierCount, func() (int64, error) {
			return utils.ResourceCountWhere[Supplier](ctx, "created_at >= ? AND created_at < ?", from, to)
		}},
		{&stat.ActiveProductCount, func() (int64, error) { return ActiveProductCount(ctx) }},
		{&stat.OutOfStockCount, func() (int64, error) { return OutOfStockCount(ctx) }},
		{&stat.LowStockCount, func() (int64, error) { return LowStockCount(ctx) }},
		{&stat.StockMovementCount, func() (int64, error) { return StockMovementCountBetween(ctx, from, to) }},
		{&stat.ActiveUserCount, func() (int64, error) { return ActiveUserCount(ctx) }},
	}
	for _, c := range counts {
		n, err := c.query()
		if err != nil {
			return err
		}
		*c.dest = int(n)
	}

	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"supplier_order_count", "sale_count", "direct_sale_count",
			"customer_order_count", "total_revenue", "direct_sale_revenue",
			"customer_order_revenue", "new_customer_count", "new_supplier_count",
			"active_product_count", "out_of_stock_count", "low_stock_count",
			"stock_movement_count", "active_user_count", "updated_at",
		}),
	}).Create(&stat).Error
	if err != nil {
		return err
	}

	if err := config.RemoveRedisKey(statisticsRangeCacheKey(7), statisticsRangeCacheKey(30)); err != nil {
		config.LogError(config.GetLogger(), "models", "UpdateDailyStatisticsFor", "invalidate range cache", day, err)
	}
	return nil
}

// GetStatisticsRange returns the stored rows for the last `days` days,
// oldest first. Days without a row are simply absent. Results are cached in
// Redis for a minute; recomputes evict the dashboard and export windows.
func GetStatisticsRange(ctx context.Context, days int) ([]*DailyStatistic, error) {
	if days <= 0 {
		days = 7
	}

	cacheKey := statisticsRangeCacheKey(days)
	var stats []*DailyStatistic
	if hit, err := config.GetRedisObject(cacheKey, &stats); err == nil && hit {
		return stats, nil
	}

	from := utils.ConvertToDate(time.Now()).AddDate(0, 0, -(days - 1))

	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("date >= ?", from).
		Order("date").
		Find(&stats).Error
	if err != nil {
		return nil, err
	}

	if err := config.SetRedisObject(cacheKey, stats, statisticsRangeCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "models", "GetStatisticsRange", "cache range", days, err)
	}
	return stats, nil
}
