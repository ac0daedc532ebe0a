package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"bidhub/agent/internal/services"
	"bidhub/shared/env"
	"bidhub/shared/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func RegisterRoutes(router *gin.Engine, appLogger *logger.Logger) {
	router.GET("/", func(c *gin.Context) {
		appLogger.Info("Root endpoint accessed")
		c.JSON(http.StatusOK, gin.H{"message": "API is running. Aggregator active!"})
	})
}

func RegisterAPIRoutes(router *gin.Engine, appLogger *logger.Logger, db *gorm.DB, lock *services.KickoffLock) {
	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/health", func(c *gin.Context) {
			services.LogHealth()
			c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API Service is running"})
		})

		apiGroup.POST("/webhook", func(c *gin.Context) {
			requestID := zap.String("requestID", generateRequestID())
			appLogger.Info("POST /api/v1/webhook (listings) endpoint received request", requestID)
			services.LogIngest()

			expectedAuthHeader := env.IngestAuthHeader
			if expectedAuthHeader != "" {
				receivedAuthHeader := c.GetHeader("Authorization")
				if receivedAuthHeader == "" {
					appLogger.Warn("Webhook request missing Authorization header.", requestID)
					c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
					return
				}
				if receivedAuthHeader != expectedAuthHeader {
					appLogger.Error("Unauthorized Webhook Request - Header mismatch.", requestID)
					c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
					return
				}
				appLogger.Info("Webhook authorized successfully.", requestID)
			} else {
				appLogger.Warn("No INGEST_AUTH_HEADER configured. Accepting webhook without Authorization check.", requestID)
			}

			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				appLogger.Error("Failed to read webhook payload", zap.Error(err), requestID)
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

			appLogger.Info("Webhook Payload Received", zap.Int("size", len(body)), requestID)
			appLogger.Debug("Webhook Payload", zap.ByteString("payload", body), requestID)

			err = services.HandleListingsWebhook(body, db, appLogger)
			if err != nil {
				appLogger.Error("Error processing webhook payload in service", zap.Error(err), requestID)
				// Acknowledge receipt so the sender does not retry a poison payload forever.
				c.JSON(http.StatusOK, gin.H{"message": "Webhook received, but processing encountered an error"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"message": "Webhook received and processing initiated"})
		})

		RegisterVehicleRoutes(apiGroup, appLogger, db)
		RegisterAdminRoutes(apiGroup, appLogger, db, lock)
		RegisterBiddingHubRoutes(apiGroup, appLogger, db)
		RegisterInventoryRoutes(apiGroup, appLogger, db)
	}
	appLogger.Info("API routes registered under /api/v1")
}

func generateRequestID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
