package models

import (
	"github.com/forkmetrics/resto_backend/config"
)

// MigrateTable runs gorm AutoMigrate for every table this service owns.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&IntegrationConnection{},
		&IntegrationSyncRun{},
		&IntegrationSyncError{},
		&DaypartSalesSummary{},
		&DailyTransactionSummary{},
	)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "MigrateTable", "auto migrate", nil, err)
	}
}
