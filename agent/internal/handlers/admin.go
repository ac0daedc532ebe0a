package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bidhub/agent/database"
	"bidhub/agent/internal/models"
	"bidhub/agent/internal/services"
	"bidhub/shared/logger"
	"bidhub/shared/types"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FilterRequest struct {
	Make        string  `json:"make" binding:"required"`
	Model       *string `json:"model"`
	YearFrom    *int    `json:"year_from"`
	YearTo      *int    `json:"year_to"`
	OdometerMin *int    `json:"odometer_min"`
	OdometerMax *int    `json:"odometer_max"`
}

// ROIRequest carries the target ROI percentage. Zero is a legal target,
// so the field is validated by hand rather than with a binding tag.
type ROIRequest struct {
	Roi *float64 `json:"roi"`
}

type FeeScheduleRequest struct {
	Auction string         `json:"auction" binding:"required"`
	Rows    []types.FeeRow `json:"rows" binding:"required"`
}

func (r *FilterRequest) toModel() models.Filter {
	filter := models.Filter{
		Make:        r.Make,
		Model:       r.Model,
		YearFrom:    0,
		YearTo:      3000,
		OdometerMin: 0,
		OdometerMax: 10_000_000,
	}
	if r.YearFrom != nil {
		filter.YearFrom = *r.YearFrom
	}
	if r.YearTo != nil {
		filter.YearTo = *r.YearTo
	}
	if r.OdometerMin != nil {
		filter.OdometerMin = *r.OdometerMin
	}
	if r.OdometerMax != nil {
		filter.OdometerMax = *r.OdometerMax
	}
	return filter
}

func RegisterAdminRoutes(apiGroup *gin.RouterGroup, appLogger *logger.Logger, db *gorm.DB, lock *services.KickoffLock) {
	admin := apiGroup.Group("/admin")
	{
		admin.GET("/filters", handleListFilters(appLogger, db))
		admin.POST("/filters", handleCreateFilter(appLogger, db, lock))
		admin.PUT("/filters/:id", handleUpdateFilter(appLogger, db, lock))
		admin.DELETE("/filters/:id", handleDeleteFilter(appLogger, db, lock))

		admin.GET("/roi", handleListROI(appLogger, db))
		admin.GET("/roi/latest", handleGetROI(appLogger, db))
		admin.GET("/roi/calculate", handleCalculateROI())
		admin.POST("/roi", handleCreateROI(appLogger, db))

		admin.GET("/fees", handleListFees(appLogger, db))
		admin.PUT("/fees", handleReplaceFees(appLogger, db))
		admin.POST("/fees/refresh/:auction", handleRefreshFees(appLogger, db))

		admin.POST("/recommendations/reset", handleResetRecommendations(appLogger, db))
	}
}

func handleListFilters(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters []models.Filter
		if err := db.Order("id ASC").Find(&filters).Error; err != nil {
			appLogger.Error("Failed to list filters", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list filters"})
			return
		}
		c.JSON(http.StatusOK, filters)
	}
}

func handleCreateFilter(appLogger *logger.Logger, db *gorm.DB, lock *services.KickoffLock) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FilterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		filter := req.toModel()
		if err := db.Create(&filter).Error; err != nil {
			appLogger.Error("Failed to create filter", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create filter"})
			return
		}

		if err := services.KickoffRelevanceRecalc(db, lock, nil, &filter, appLogger); err != nil {
			respondKickoffError(c, appLogger, err)
			return
		}
		c.JSON(http.StatusCreated, filter)
	}
}

func handleUpdateFilter(appLogger *logger.Logger, db *gorm.DB, lock *services.KickoffLock) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter id"})
			return
		}

		var req FilterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		var existing models.Filter
		if err := db.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Filter not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load filter"})
			return
		}

		oldShape := existing
		updated := req.toModel()
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		if err := db.Save(&updated).Error; err != nil {
			appLogger.Error("Failed to update filter", zap.Int("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update filter"})
			return
		}

		if err := services.KickoffRelevanceRecalc(db, lock, &oldShape, &updated, appLogger); err != nil {
			respondKickoffError(c, appLogger, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleDeleteFilter(appLogger *logger.Logger, db *gorm.DB, lock *services.KickoffLock) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter id"})
			return
		}

		var existing models.Filter
		if err := db.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Filter not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load filter"})
			return
		}

		if err := db.Delete(&existing).Error; err != nil {
			appLogger.Error("Failed to delete filter", zap.Int("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete filter"})
			return
		}

		if err := services.KickoffRelevanceRecalc(db, lock, &existing, nil, appLogger); err != nil {
			respondKickoffError(c, appLogger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Filter deleted"})
	}
}

func respondKickoffError(c *gin.Context, appLogger *logger.Logger, err error) {
	if errors.Is(err, services.ErrKickoffBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "Relevance recalculation already in progress, try again shortly"})
		return
	}
	appLogger.Error("Failed to start relevance recalculation", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start relevance recalculation"})
}

func handleListROI(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rows []models.ROI
		if err := db.Order("created_at DESC").Find(&rows).Error; err != nil {
			appLogger.Error("Failed to list ROI baselines", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list ROI baselines"})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// handleCalculateROI previews the profit margin a given ROI would yield
// without persisting anything.
func handleCalculateROI() gin.HandlerFunc {
	return func(c *gin.Context) {
		roi, err := strconv.ParseFloat(c.Query("roi"), 64)
		if err != nil || roi < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'roi' must be a number >= 0"})
			return
		}
		roi = roundROI(roi)
		c.JSON(http.StatusOK, gin.H{"roi": roi, "profit_margin": services.DeriveProfitMargin(roi)})
	}
}

func roundROI(roi float64) float64 {
	return decimal.NewFromFloat(roi).Round(2).InexactFloat64()
}

func handleGetROI(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		roi, err := database.LatestROI(db)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "No ROI baseline configured"})
				return
			}
			appLogger.Error("Failed to load ROI baseline", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load ROI baseline"})
			return
		}
		c.JSON(http.StatusOK, roi)
	}
}

func handleCreateROI(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ROIRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Roi == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Field 'roi' is required"})
			return
		}
		if *req.Roi < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Field 'roi' must be >= 0"})
			return
		}

		rounded := roundROI(*req.Roi)
		roi := models.ROI{
			Roi:          rounded,
			ProfitMargin: services.DeriveProfitMargin(rounded),
		}
		if err := db.Create(&roi).Error; err != nil {
			appLogger.Error("Failed to create ROI baseline", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ROI baseline"})
			return
		}
		appLogger.Info("ROI baseline updated", zap.Float64("roi", roi.Roi), zap.Float64("profitMargin", roi.ProfitMargin))
		c.JSON(http.StatusCreated, roi)
	}
}

func handleListFees(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Model(&models.Fee{}).Order("auction ASC, price_from ASC")
		if auction := c.Query("auction"); auction != "" {
			q = q.Where("auction = ?", auction)
		}
		var fees []models.Fee
		if err := q.Find(&fees).Error; err != nil {
			appLogger.Error("Failed to list fees", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list fees"})
			return
		}
		c.JSON(http.StatusOK, fees)
	}
}

// handleReplaceFees swaps the fee schedule of one auction with the rows
// in the request body.
func handleReplaceFees(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FeeScheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		fees := services.ParseFeeRows(req.Auction, req.Rows)
		if err := services.ReplaceAuctionFees(db, req.Auction, fees); err != nil {
			appLogger.Error("Failed to replace fee schedule", zap.String("auction", req.Auction), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to replace fee schedule"})
			return
		}
		appLogger.Info("Fee schedule replaced", zap.String("auction", req.Auction),
			zap.Int("accepted", len(fees)), zap.Int("submitted", len(req.Rows)))
		c.JSON(http.StatusOK, gin.H{"auction": req.Auction, "accepted": len(fees), "submitted": len(req.Rows)})
	}
}

// handleRefreshFees re-pulls the published fee table from the parsers
// service and swaps it in.
func handleRefreshFees(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		auction := c.Param("auction")

		rows, err := services.FetchAuctionFees(auction)
		if err != nil {
			appLogger.Error("Failed to fetch fee table", zap.String("auction", auction), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch fee table from parsers"})
			return
		}

		fees := services.ParseFeeRows(auction, rows)
		if err := services.ReplaceAuctionFees(db, auction, fees); err != nil {
			appLogger.Error("Failed to store refreshed fee schedule", zap.String("auction", auction), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store fee schedule"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"auction": auction, "accepted": len(fees), "fetched": len(rows)})
	}
}

func handleResetRecommendations(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reclassified, err := services.ResetRecommendations(db)
		if err != nil {
			appLogger.Error("Failed to reset recommendations", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset recommendations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reclassified": reclassified})
	}
}
