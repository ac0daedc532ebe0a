package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bidhub/agent/database"
	"bidhub/agent/internal/models"
	"bidhub/agent/internal/services"
	"bidhub/shared/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ordering is constrained to indexed or cheap columns.
var allowedOrderings = map[string]bool{
	"auction_date":     true,
	"current_bid":      true,
	"suggested_bid":    true,
	"avg_market_price": true,
	"year":             true,
	"odometer":         true,
	"created_at":       true,
}

type CarPartRequest struct {
	Description string  `json:"description" binding:"required"`
	Cost        float64 `json:"cost" binding:"required"`
}

type CarStatusRequest struct {
	Status    models.CarStatus `json:"status" binding:"required"`
	ActualBid *float64         `json:"actual_bid"`
}

func RegisterVehicleRoutes(apiGroup *gin.RouterGroup, appLogger *logger.Logger, db *gorm.DB) {
	vehicles := apiGroup.Group("/vehicles")
	{
		vehicles.GET("", handleListVehicles(appLogger, db))
		vehicles.GET("/:vin", handleGetVehicle(appLogger, db))
		vehicles.POST("/:vin/scrape", handleScrapeVehicle(appLogger, db))
		vehicles.PATCH("/:vin/status", handleVehicleStatus(appLogger, db))
		vehicles.GET("/:vin/parts", handleListParts(appLogger, db))
		vehicles.POST("/:vin/parts", handleAddPart(appLogger, db))
		vehicles.PUT("/:vin/parts/:partID", handleUpdatePart(appLogger, db))
		vehicles.DELETE("/:vin/parts/:partID", handleDeletePart(appLogger, db))
	}
}

func handleListVehicles(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Fresh query per use; gorm chains mutate their statement.
		filtered := func() *gorm.DB {
			q := db.Model(&models.Car{})

			relevance := c.DefaultQuery("relevance", string(models.RelevanceActive))
			q = q.Where("relevance_status = ?", relevance)

			if makeName := c.Query("make"); makeName != "" {
				q = q.Where("LOWER(make) = LOWER(?)", makeName)
			}
			if model := c.Query("model"); model != "" {
				q = q.Where("LOWER(model) = LOWER(?)", model)
			}
			if auction := c.Query("auction"); auction != "" {
				q = q.Where("auction = ?", auction)
			}
			if yearFrom, err := strconv.Atoi(c.Query("year_from")); err == nil {
				q = q.Where("year >= ?", yearFrom)
			}
			if yearTo, err := strconv.Atoi(c.Query("year_to")); err == nil {
				q = q.Where("year <= ?", yearTo)
			}
			if c.Query("recommended_only") == "true" {
				q = q.Where("recommendation_status = ?", models.Recommended)
			}
			return q
		}

		ordering := c.DefaultQuery("ordering", "-created_at")
		column := strings.TrimPrefix(ordering, "-")
		if !allowedOrderings[column] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported ordering: " + ordering})
			return
		}
		direction := "ASC"
		if strings.HasPrefix(ordering, "-") {
			direction = "DESC"
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
		if pageSize < 1 || pageSize > 100 {
			pageSize = 20
		}

		var total int64
		if err := filtered().Count(&total).Error; err != nil {
			appLogger.Error("Failed to count vehicles", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list vehicles"})
			return
		}

		var cars []models.Car
		err := filtered().Order(column + " " + direction).
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Preload("Photos").
			Find(&cars).Error
		if err != nil {
			appLogger.Error("Failed to list vehicles", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list vehicles"})
			return
		}

		resp := gin.H{
			"items":     cars,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		}

		// Aggregates describe the whole filtered set, so only the first
		// page pays for them.
		if page == 1 {
			var agg struct {
				TotalCurrentBid  float64
				TotalSuggested   float64
				RecommendedCount int64
			}
			err := filtered().
				Select("COALESCE(SUM(current_bid), 0) AS total_current_bid, "+
					"COALESCE(SUM(suggested_bid), 0) AS total_suggested, "+
					"COUNT(*) FILTER (WHERE recommendation_status = ?) AS recommended_count",
					models.Recommended).
				Scan(&agg).Error
			if err != nil {
				appLogger.Warn("Failed to compute bid aggregates", zap.Error(err))
			} else {
				resp["aggregates"] = gin.H{
					"total_current_bid": agg.TotalCurrentBid,
					"total_suggested":   agg.TotalSuggested,
					"recommended_count": agg.RecommendedCount,
				}
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

func handleGetVehicle(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		car, err := database.GetCarByVIN(db, c.Param("vin"))
		if err != nil {
			if errors.Is(err, database.ErrCarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
				return
			}
			appLogger.Error("Failed to load vehicle", zap.String("vin", c.Param("vin")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vehicle"})
			return
		}
		c.JSON(http.StatusOK, car)
	}
}

// handleScrapeVehicle kicks off enrichment for one VIN in the background.
func handleScrapeVehicle(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		vin := c.Param("vin")
		if _, err := database.GetCarByVIN(db, vin); err != nil {
			if errors.Is(err, database.ErrCarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vehicle"})
			return
		}

		go func() {
			if err := services.EnrichVehicle(db, appLogger, vin); err != nil {
				appLogger.Warn("Manual vehicle scrape failed", zap.String("vin", vin), zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Scrape initiated", "vin": vin})
	}
}

func handleVehicleStatus(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CarStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		car, err := services.ChangeCarStatus(db, c.Param("vin"), req.Status, req.ActualBid)
		if err != nil {
			switch {
			case errors.Is(err, database.ErrCarNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
			case errors.Is(err, services.ErrInvalidTransition):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, services.ErrActualBidRequired):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				appLogger.Error("Failed to change car status", zap.String("vin", c.Param("vin")), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change car status"})
			}
			return
		}
		c.JSON(http.StatusOK, car)
	}
}

func handleListParts(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		car, err := database.GetCarByVIN(db, c.Param("vin"))
		if err != nil {
			if errors.Is(err, database.ErrCarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vehicle"})
			return
		}

		var parts []models.CarPart
		if err := db.Where("car_id = ?", car.ID).Order("id ASC").Find(&parts).Error; err != nil {
			appLogger.Error("Failed to list parts", zap.String("vin", car.VIN), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list parts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": parts})
	}
}

func handleAddPart(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CarPartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		car, err := database.GetCarByVIN(db, c.Param("vin"))
		if err != nil {
			if errors.Is(err, database.ErrCarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vehicle"})
			return
		}

		part := models.CarPart{CarID: car.ID, Description: req.Description, Cost: req.Cost}
		if err := db.Create(&part).Error; err != nil {
			appLogger.Error("Failed to add part", zap.String("vin", car.VIN), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add part"})
			return
		}

		// Parts feed straight into the suggested bid.
		if err := services.RepriceCar(db, car); err != nil && !errors.Is(err, services.ErrNoBaseline) {
			appLogger.Error("Failed to reprice after part change", zap.String("vin", car.VIN), zap.Error(err))
		}
		if err := services.ReclassifyAndSave(db, car); err != nil {
			appLogger.Error("Failed to reclassify after part change", zap.String("vin", car.VIN), zap.Error(err))
		}
		c.JSON(http.StatusCreated, part)
	}
}

func handleUpdatePart(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CarPartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		car, err := database.GetCarByVIN(db, c.Param("vin"))
		if err != nil {
			if errors.Is(err, database.ErrCarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vehicle"})
			return
		}

		partID, err := strconv.Atoi(c.Param("partID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid part id"})
			return
		}

		var part models.CarPart
		if err := db.Where("id = ? AND car_id = ?", partID, car.ID).First(&part).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Part not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load part"})
			return
		}

		part.Description = req.Description
		part.Cost = req.Cost
		if err := db.Save(&part).Error; err != nil {
			appLogger.Error("Failed to update part", zap.String("vin", car.VIN), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update part"})
			return
		}

		if err := services.RepriceCar(db, car); err != nil && !errors.Is(err, services.ErrNoBaseline) {
			appLogger.Error("Failed to reprice after part change", zap.String("vin", car.VIN), zap.Error(err))
		}
		if err := services.ReclassifyAndSave(db, car); err != nil {
			appLogger.Error("Failed to reclassify after part change", zap.String("vin", car.VIN), zap.Error(err))
		}
		c.JSON(http.StatusOK, part)
	}
}

func handleDeletePart(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		car, err := database.GetCarByVIN(db, c.Param("vin"))
		if err != nil {
			if errors.Is(err, database.ErrCarNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vehicle"})
			return
		}

		partID, err := strconv.Atoi(c.Param("partID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid part id"})
			return
		}

		res := db.Where("id = ? AND car_id = ?", partID, car.ID).Delete(&models.CarPart{})
		if res.Error != nil {
			appLogger.Error("Failed to delete part", zap.String("vin", car.VIN), zap.Error(res.Error))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete part"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Part not found"})
			return
		}

		if err := services.RepriceCar(db, car); err != nil && !errors.Is(err, services.ErrNoBaseline) {
			appLogger.Error("Failed to reprice after part change", zap.String("vin", car.VIN), zap.Error(err))
		}
		if err := services.ReclassifyAndSave(db, car); err != nil {
			appLogger.Error("Failed to reclassify after part change", zap.String("vin", car.VIN), zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"message": "Part deleted"})
	}
}
