package database

import (
	"errors"
	"testing"
	"time"

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
		&models.ROI{},
		&models.History{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedCar(t *testing.T, db *gorm.DB, vin string) *models.Car {
	t.Helper()
	car := &models.Car{VIN: vin, Auction: "copart", Make: "Toyota", Model: "Camry", Year: 2020}
	if err := db.Create(car).Error; err != nil {
		t.Fatalf("failed to seed car: %v", err)
	}
	return car
}

func TestGetCarByVIN(t *testing.T) {
	db := openTestDB(t)
	seedCar(t, db, "4T1BF1FK5HU123456")

	// Lookup normalizes case and whitespace.
	car, err := GetCarByVIN(db, "  4t1bf1fk5hu123456 ")
	if err != nil {
		t.Fatalf("GetCarByVIN: %v", err)
	}
	if car.VIN != "4T1BF1FK5HU123456" {
		t.Fatalf("unexpected VIN: %s", car.VIN)
	}

	if _, err := GetCarByVIN(db, "4T1BF1FK5HU999999"); !errors.Is(err, ErrCarNotFound) {
		t.Fatalf("expected ErrCarNotFound, got %v", err)
	}
}

func TestLockCarByVIN(t *testing.T) {
	db := openTestDB(t)
	seedCar(t, db, "4T1BF1FK5HU123457")

	err := db.Transaction(func(tx *gorm.DB) error {
		car, err := LockCarByVIN(tx, "4T1BF1FK5HU123457")
		if err != nil {
			return err
		}
		if car.VIN != "4T1BF1FK5HU123457" {
			t.Fatalf("unexpected VIN: %s", car.VIN)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("LockCarByVIN: %v", err)
	}
}

func TestReplacePhotos(t *testing.T) {
	db := openTestDB(t)
	car := seedCar(t, db, "4T1BF1FK5HU123458")

	if err := ReplacePhotos(db, car.ID, []string{"a.jpg"}, []string{"a_hd.jpg"}); err != nil {
		t.Fatalf("ReplacePhotos: %v", err)
	}
	if err := ReplacePhotos(db, car.ID, []string{"b.jpg", "c.jpg"}, nil); err != nil {
		t.Fatalf("ReplacePhotos: %v", err)
	}

	var photos []models.Photo
	if err := db.Where("car_id = ?", car.ID).Find(&photos).Error; err != nil {
		t.Fatalf("failed to load photos: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected photo set replaced, got %d rows", len(photos))
	}

	// Empty input keeps the previous set instead of wiping it.
	if err := ReplacePhotos(db, car.ID, nil, nil); err != nil {
		t.Fatalf("ReplacePhotos: %v", err)
	}
	var count int64
	db.Model(&models.Photo{}).Where("car_id = ?", car.ID).Count(&count)
	if count != 2 {
		t.Fatalf("expected photos kept on empty input, got %d", count)
	}
}

func TestAppendSaleHistoryDedupes(t *testing.T) {
	db := openTestDB(t)
	car := seedCar(t, db, "4T1BF1FK5HU123459")

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bid := 4200.0
	records := []models.CarSaleHistory{
		{SaleDate: &date, Status: "Sold", FinalBid: &bid},
		{Status: "Not sold"},
	}

	if err := AppendSaleHistory(db, car.ID, records); err != nil {
		t.Fatalf("AppendSaleHistory: %v", err)
	}
	// A second enrichment delivers the same records again.
	if err := AppendSaleHistory(db, car.ID, records); err != nil {
		t.Fatalf("AppendSaleHistory: %v", err)
	}

	count, err := CountSaleHistory(db, car.ID)
	if err != nil {
		t.Fatalf("CountSaleHistory: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 distinct records, got %d", count)
	}

	// A genuinely new appearance is appended.
	later := date.AddDate(0, 3, 0)
	if err := AppendSaleHistory(db, car.ID, []models.CarSaleHistory{{SaleDate: &later, Status: "Sold", FinalBid: &bid}}); err != nil {
		t.Fatalf("AppendSaleHistory: %v", err)
	}
	count, _ = CountSaleHistory(db, car.ID)
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}
}

func TestSumPartsCost(t *testing.T) {
	db := openTestDB(t)
	car := seedCar(t, db, "4T1BF1FK5HU123460")

	total, err := SumPartsCost(db, car.ID)
	if err != nil {
		t.Fatalf("SumPartsCost: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 with no parts, got %v", total)
	}

	parts := []models.CarPart{
		{CarID: car.ID, Description: "bumper", Cost: 350.5},
		{CarID: car.ID, Description: "headlight", Cost: 149.5},
	}
	if err := db.Create(&parts).Error; err != nil {
		t.Fatalf("failed to seed parts: %v", err)
	}

	total, err = SumPartsCost(db, car.ID)
	if err != nil {
		t.Fatalf("SumPartsCost: %v", err)
	}
	if total != 500 {
		t.Fatalf("expected 500, got %v", total)
	}
}

func TestLatestROI(t *testing.T) {
	db := openTestDB(t)

	if _, err := LatestROI(db); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected gorm.ErrRecordNotFound, got %v", err)
	}

	older := models.ROI{Roi: 20, ProfitMargin: 16.67, CreatedAt: time.Now().Add(-time.Hour)}
	newer := models.ROI{Roi: 25, ProfitMargin: 20, CreatedAt: time.Now()}
	if err := db.Create(&older).Error; err != nil {
		t.Fatalf("failed to seed roi: %v", err)
	}
	if err := db.Create(&newer).Error; err != nil {
		t.Fatalf("failed to seed roi: %v", err)
	}

	roi, err := LatestROI(db)
	if err != nil {
		t.Fatalf("LatestROI: %v", err)
	}
	if roi.Roi != 25 {
		t.Fatalf("expected most recent baseline, got %+v", roi)
	}
}
