package services

import (
	"time"

	"bidhub/agent/internal/models"
	"bidhub/shared/config"
	"bidhub/shared/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CheckVehicleProgress is the background enrichment loop. Each cycle it
// retires cars whose auction date has passed and works through the
// backlog of ACTIVE cars still waiting for a history answer.
func CheckVehicleProgress(db *gorm.DB, cfg config.RefreshConfig, appLogger *logger.Logger) {
	checkInterval := time.Duration(cfg.IntervalMinutes) * time.Minute

	appLogger.Info("Vehicle refresh routine started",
		zap.Duration("interval", checkInterval),
		zap.Int("maxAttempts", cfg.MaxAttempts),
		zap.Int("batchSize", cfg.BatchSize))

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for range ticker.C {
		appLogger.Debug("Running vehicle refresh cycle...")

		archived, err := ArchiveExpiredCars(db)
		if err != nil {
			appLogger.Error("Failed to archive expired cars", zap.Error(err))
		} else if archived > 0 {
			appLogger.Info("Archived cars past their auction date", zap.Int("count", archived))
		}

		var backlog []models.Car
		err = db.Where("relevance_status = ? AND is_checked = ? AND attempts < ?",
			models.RelevanceActive, false, cfg.MaxAttempts).
			Order("updated_at ASC").
			Limit(cfg.BatchSize).
			Find(&backlog).Error
		if err != nil {
			appLogger.Error("Failed to load enrichment backlog", zap.Error(err))
			continue
		}

		if len(backlog) == 0 {
			appLogger.Debug("No cars waiting for enrichment.")
			continue
		}
		appLogger.Info("Enriching cars from backlog", zap.Int("count", len(backlog)))

		for i := range backlog {
			if err := EnrichVehicle(db, appLogger, backlog[i].VIN); err != nil {
				appLogger.Debug("Backlog enrichment failed, will retry next cycle",
					zap.String("vin", backlog[i].VIN), zap.Error(err))
			}
			time.Sleep(200 * time.Millisecond)
		}

		appLogger.Debug("Vehicle refresh cycle finished.")
	}
}

// ArchiveExpiredCars moves ACTIVE cars whose auction date has passed
// into the ARCHIVAL bucket.
func ArchiveExpiredCars(db *gorm.DB) (int, error) {
	res := db.Model(&models.Car{}).
		Where("relevance_status = ? AND auction_date IS NOT NULL AND auction_date < ?",
			models.RelevanceActive, time.Now()).
		Update("relevance_status", models.RelevanceArchival)
	return int(res.RowsAffected), res.Error
}

// PollListingsFeed pulls the listings feed on a fixed cadence for
// deployments without a push webhook.
func PollListingsFeed(db *gorm.DB, interval time.Duration, appLogger *logger.Logger) {
	appLogger.Info("Listings feed polling routine started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		listings, err := FetchListingsFeed()
		if err != nil {
			appLogger.Warn("Listings feed poll failed", zap.Error(err))
			continue
		}
		appLogger.Info("Listings feed polled", zap.Int("count", len(listings)))
		for i := range listings {
			if _, err := ProcessListing(db, appLogger, &listings[i]); err != nil {
				appLogger.Debug("Failed to process polled listing",
					zap.String("vin", listings[i].VIN), zap.Error(err))
			}
		}
	}
}
