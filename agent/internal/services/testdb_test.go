package services

import (
	"testing"

	"bidhub/agent/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Car{},
		&models.Photo{},
		&models.ConditionAssessment{},
		&models.CarSaleHistory{},
		&models.CarPart{},
		&models.Filter{},
		&models.Fee{},
		&models.ROI{},
		&models.CarInventory{},
		&models.CarInventoryInvestment{},
		&models.History{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
