package database

import (
	"errors"
	"log"
	"time"

	"bidhub/agent/internal/models"
	"bidhub/shared/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCarNotFound = errors.New("car not found")

// GetCarByVIN loads a car with its associations. Returns ErrCarNotFound
// when the VIN is unknown.
func GetCarByVIN(db *gorm.DB, vin string) (*models.Car, error) {
	var car models.Car
	err := db.Preload("Photos").
		Preload("ConditionAssessments").
		Preload("SaleHistory").
		Preload("Parts").
		Where("vin = ?", utils.NormalizeVIN(vin)).
		First(&car).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return &car, nil
}

// LockCarByVIN loads a car inside tx and takes a row lock on Postgres.
// SQLite serializes writers anyway, so the lock clause is skipped there.
func LockCarByVIN(tx *gorm.DB, vin string) (*models.Car, error) {
	var car models.Car
	q := tx.Where("vin = ?", utils.NormalizeVIN(vin))
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&car).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return &car, nil
}

// ReplacePhotos swaps a car's photo set for the given URLs.
func ReplacePhotos(tx *gorm.DB, carID uint, urls []string, hdURLs []string) error {
	if len(urls) == 0 && len(hdURLs) == 0 {
		return nil
	}
	if err := tx.Where("car_id = ?", carID).Delete(&models.Photo{}).Error; err != nil {
		return err
	}
	photos := make([]models.Photo, 0, len(urls)+len(hdURLs))
	for _, u := range urls {
		photos = append(photos, models.Photo{CarID: carID, URL: u})
	}
	for _, u := range hdURLs {
		photos = append(photos, models.Photo{CarID: carID, URL: u, IsHD: true})
	}
	return tx.Create(&photos).Error
}

// ReplaceConditionAssessments swaps a car's condition lines.
func ReplaceConditionAssessments(tx *gorm.DB, carID uint, lines []models.ConditionAssessment) error {
	if err := tx.Where("car_id = ?", carID).Delete(&models.ConditionAssessment{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].CarID = carID
		lines[i].ID = 0
	}
	return tx.Create(&lines).Error
}

// AppendSaleHistory inserts sale records that are not already present.
// A record is a duplicate when the same car already has an entry with
// the same date, status and final bid.
func AppendSaleHistory(tx *gorm.DB, carID uint, records []models.CarSaleHistory) error {
	var existing []models.CarSaleHistory
	if err := tx.Where("car_id = ?", carID).Find(&existing).Error; err != nil {
		return err
	}
	for _, rec := range records {
		if saleHistoryContains(existing, rec) {
			continue
		}
		rec.CarID = carID
		rec.ID = 0
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		existing = append(existing, rec)
	}
	return nil
}

func saleHistoryContains(existing []models.CarSaleHistory, rec models.CarSaleHistory) bool {
	for _, e := range existing {
		if e.Status != rec.Status {
			continue
		}
		if !equalTimePtr(e.SaleDate, rec.SaleDate) {
			continue
		}
		if !equalFloatPtr(e.FinalBid, rec.FinalBid) {
			continue
		}
		return true
	}
	return false
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// CountSaleHistory returns how many prior auction appearances are stored
// for a car.
func CountSaleHistory(db *gorm.DB, carID uint) (int64, error) {
	var count int64
	err := db.Model(&models.CarSaleHistory{}).Where("car_id = ?", carID).Count(&count).Error
	return count, err
}

// SumPartsCost totals the planned repair costs for a car.
func SumPartsCost(db *gorm.DB, carID uint) (float64, error) {
	var total float64
	err := db.Model(&models.CarPart{}).
		Where("car_id = ?", carID).
		Select("COALESCE(SUM(cost), 0)").
		Scan(&total).Error
	return total, err
}

// RecordHistory writes an audit line. Failures are logged and swallowed;
// the audit trail must never abort the operation it describes.
func RecordHistory(db *gorm.DB, carID uint, vin, action, details string) {
	entry := models.History{CarID: carID, VIN: vin, Action: action, Details: details}
	if err := db.Create(&entry).Error; err != nil {
		log.Printf("ERROR: Failed to record history for car %d (%s): %v", carID, action, err)
	}
}

// LatestROI returns the most recent ROI baseline row, or
// gorm.ErrRecordNotFound when none has been configured yet.
func LatestROI(db *gorm.DB) (*models.ROI, error) {
	var roi models.ROI
	err := db.Order("created_at DESC, id DESC").First(&roi).Error
	if err != nil {
		return nil, err
	}
	return &roi, nil
}
