package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bidhub/agent/internal/models"
	"bidhub/agent/internal/services"
	"bidhub/shared/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type InvestmentRequest struct {
	Description string  `json:"description" binding:"required"`
	Cost        float64 `json:"cost" binding:"required"`
}

type InventoryUpdateRequest struct {
	Status    *models.InventoryStatus `json:"status"`
	SalePrice *float64                `json:"sale_price"`
}

func RegisterInventoryRoutes(apiGroup *gin.RouterGroup, appLogger *logger.Logger, db *gorm.DB) {
	inventories := apiGroup.Group("/inventories")
	{
		inventories.GET("", handleListInventories(appLogger, db))
		inventories.GET("/:id", handleGetInventory(appLogger, db))
		inventories.PATCH("/:id", handleUpdateInventory(appLogger, db))
		inventories.POST("/:id/investments", handleAddInvestment(appLogger, db))
		inventories.DELETE("/:id/investments/:investmentID", handleRemoveInvestment(appLogger, db))
	}
}

func handleListInventories(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Model(&models.CarInventory{}).Preload("Car").Preload("Investments")
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}

		var inventories []models.CarInventory
		if err := q.Order("created_at DESC").Find(&inventories).Error; err != nil {
			appLogger.Error("Failed to list inventories", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list inventories"})
			return
		}
		c.JSON(http.StatusOK, inventories)
	}
}

func inventoryID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid inventory id"})
		return 0, false
	}
	return uint(id), true
}

func handleGetInventory(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := inventoryID(c)
		if !ok {
			return
		}

		inventory, err := services.GetInventory(db, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Inventory not found"})
				return
			}
			appLogger.Error("Failed to load inventory", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load inventory"})
			return
		}
		c.JSON(http.StatusOK, inventory)
	}
}

func handleUpdateInventory(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := inventoryID(c)
		if !ok {
			return
		}

		var req InventoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		inventory, err := services.UpdateInventory(db, id, req.Status, req.SalePrice)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Inventory not found"})
				return
			}
			appLogger.Error("Failed to update inventory", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update inventory"})
			return
		}
		c.JSON(http.StatusOK, inventory)
	}
}

func handleAddInvestment(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := inventoryID(c)
		if !ok {
			return
		}

		var req InvestmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if _, err := services.GetInventory(db, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Inventory not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load inventory"})
			return
		}

		investment, err := services.AddInvestment(db, id, req.Description, req.Cost)
		if err != nil {
			appLogger.Error("Failed to add investment", zap.Uint("inventoryID", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add investment"})
			return
		}
		c.JSON(http.StatusCreated, investment)
	}
}

func handleRemoveInvestment(appLogger *logger.Logger, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := inventoryID(c)
		if !ok {
			return
		}

		investmentID, err := strconv.Atoi(c.Param("investmentID"))
		if err != nil || investmentID < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid investment id"})
			return
		}

		if err := services.RemoveInvestment(db, id, uint(investmentID)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Investment not found"})
				return
			}
			appLogger.Error("Failed to remove investment", zap.Uint("inventoryID", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove investment"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Investment removed"})
	}
}
