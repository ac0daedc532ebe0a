package handlers

import (
	"errors"
	"net/http"

	"bidhub/agent/database"
	"bidhub/agent/internal/models"
	"bidhub/shared/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func RegisterBiddingHubRoutes(apiGroup *gin.RouterGroup, appLogger *logger.Logger, db *gorm.DB) {
	hub := apiGroup.Group("/bidding-hub")
	{
		hub.GET("", handleListBiddingHub(appLogger, db))
		hub.DELETE("/:vin", handleDeleteFromBiddingHub(appLogger, db))
	}
}

// handleListBiddingHub lists cars that entered the bidding pipeline.
// NEW cars have not been picked yet and are excluded; soft-deleted cars
// appear only when show_deleted is set.
func handleListBiddingHub(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		excluded := []models.CarStatus{models.CarStatusNew}
		if c.Query("show_deleted") != "true" {
			excluded = append(excluded, models.CarStatusDeletedHub)
		}

		var cars []models.Car
		err := db.Where("car_status NOT IN ?", excluded).
			Order("updated_at DESC").
			Preload("Photos").
			Find(&cars).Error
		if err != nil {
			appLogger.Error("Failed to list bidding hub", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list bidding hub"})
			return
		}

		// Money rollups across the visible pipeline.
		var totalCurrent, totalSuggested, totalActual float64
		for i := range cars {
			totalCurrent += cars[i].CurrentBid
			if cars[i].SuggestedBid != nil {
				totalSuggested += float64(*cars[i].SuggestedBid)
			}
			if cars[i].ActualBid != nil {
				totalActual += *cars[i].ActualBid
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"items":               cars,
			"total":               len(cars),
			"total_current_bid":   totalCurrent,
			"total_suggested_bid": totalSuggested,
			"total_actual_bid":    totalActual,
		})
	}
}

// handleDeleteFromBiddingHub soft-deletes: the car stays in the database
// with a terminal hub status so its audit trail survives.
func handleDeleteFromBiddingHub(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		vin := c.Param("vin")
		car, err := database.GetCarByVIN(db, vin)
		if err != nil {
			if errors.Is(err, database.ErrCarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vehicle"})
			return
		}

		if car.CarStatus == models.CarStatusNew || car.CarStatus == models.CarStatusWon {
			c.JSON(http.StatusConflict, gin.H{"error": "Car is not removable from the bidding hub"})
			return
		}

		oldStatus := car.CarStatus
		if err := db.Model(car).Update("car_status", models.CarStatusDeletedHub).Error; err != nil {
			appLogger.Error("Failed to remove car from bidding hub", zap.String("vin", vin), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove car from bidding hub"})
			return
		}
		database.RecordHistory(db, car.ID, car.VIN, "STATUS_CHANGED",
			string(oldStatus)+" -> "+string(models.CarStatusDeletedHub))

		c.JSON(http.StatusOK, gin.H{"message": "Car removed from bidding hub"})
	}
}
