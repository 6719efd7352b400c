package models

import (
	"log"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
)

// MigrateTable creates or updates every table. Order matters only for
// readability; gorm resolves FK dependencies itself.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Tax{},
		&User{},
		&Customer{},
		&Supplier{},
		&Product{},
		&CustomerOrder{},
		&CustomerOrderLine{},
		&SupplierOrder{},
		&SupplierOrderLine{},
		&StockMovement{},
		&DailyStatistic{},
		&ActivityLog{},
	)
	if err != nil {
		log.Fatalf("failed to migrate tables: %v", err)
	}
}
