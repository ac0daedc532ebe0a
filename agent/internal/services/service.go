package services

import (
	"context"
	"log"

	"bidhub/agent/internal/models"
	"bidhub/shared/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LogHealth logs the /health API activity
func LogHealth() {
	log.Println("Health API called")
}

// LogIngest logs the listings webhook activity
func LogIngest() {
	log.Println("Listings webhook called")
}

// KickoffRelevanceRecalc runs a guarded relevance recalculation for a
// filter change in the background. Only one recalculation runs at a
// time across all instances; callers get ErrKickoffBusy when another
// one is in flight.
func KickoffRelevanceRecalc(db *gorm.DB, lock *KickoffLock, oldFilter, newFilter *models.Filter, appLogger *logger.Logger) error {
	ctx := context.Background()
	token, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}

	go func() {
		defer lock.Release(ctx, token)

		activated, deactivated, err := ApplyFilterChange(db, oldFilter, newFilter)
		if err != nil {
			appLogger.Error("Relevance recalculation failed", zap.Error(err))
			return
		}
		appLogger.Info("Relevance recalculation finished",
			zap.Int("activated", activated),
			zap.Int("deactivated", deactivated))
	}()
	return nil
}
