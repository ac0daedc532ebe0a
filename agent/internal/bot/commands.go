package bot

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"bidhub/agent/database"
	"bidhub/agent/internal/models"
	"bidhub/agent/internal/services"
	"bidhub/shared/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func HandleCommand(update tgbotapi.Update, command string, args string) {
	if appLogger == nil {
		log.Printf("ERROR: appLogger not initialized in bot package when handling command '%s'", command)
		return
	}

	appLogger.Info("Processing command",
		zap.String("command", command),
		zap.String("args", args),
		zap.Int64("ChatID", update.Message.Chat.ID),
		zap.String("User", update.Message.From.UserName),
	)

	switch command {
	case "recommended":
		handleRecommendedCommand(update)
	case "car":
		handleCarCommand(update, args)
	case "roi":
		handleROICommand(update)
	case "start", "help":
		handleHelpCommand(update)
	default:
		appLogger.Warn("Unknown command received", zap.String("command", command))
		SendReply(update.Message.Chat.ID, fmt.Sprintf("Unknown command: /%s", command))
	}
}

func handleRecommendedCommand(update tgbotapi.Update) {
	var cars []models.Car
	err := database.DB.
		Where("relevance_status = ? AND recommendation_status = ?", models.RelevanceActive, models.Recommended).
		Order("suggested_bid DESC").
		Limit(10).
		Find(&cars).Error
	if err != nil {
		appLogger.Error("Recommended command failed: error reading cars", zap.Error(err))
		SendReply(update.Message.Chat.ID, "An error occurred while loading recommended vehicles.")
		return
	}

	if len(cars) == 0 {
		SendReply(update.Message.Chat.ID, "No recommended vehicles right now.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Recommended vehicles:*\n")
	for _, car := range cars {
		sb.WriteString(fmt.Sprintf("\n%d %s %s — `%s`", car.Year, car.Make, car.Model, car.VIN))
		if car.SuggestedBid != nil {
			sb.WriteString(fmt.Sprintf("\n  Suggested bid: $%d", *car.SuggestedBid))
		}
		sb.WriteString(fmt.Sprintf("\n  Current bid: $%.0f\n", car.CurrentBid))
	}
	SendReply(update.Message.Chat.ID, sb.String())
}

func handleCarCommand(update tgbotapi.Update, args string) {
	vin := utils.NormalizeVIN(args)
	if vin == "" {
		SendReply(update.Message.Chat.ID, "Usage: /car {vin}")
		return
	}

	car, err := database.GetCarByVIN(database.DB, vin)
	if err != nil {
		if errors.Is(err, database.ErrCarNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			SendReply(update.Message.Chat.ID, fmt.Sprintf("No vehicle found for VIN `%s`.", vin))
			return
		}
		appLogger.Error("Car command failed: error reading car", zap.String("vin", vin), zap.Error(err))
		SendReply(update.Message.Chat.ID, "An error occurred while loading the vehicle.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%d %s %s*\n", car.Year, car.Make, car.Model))
	sb.WriteString(fmt.Sprintf("VIN: `%s`\n", car.VIN))
	sb.WriteString(fmt.Sprintf("Auction: %s | Lot: %s\n", car.Auction, car.LotNumber))
	sb.WriteString(fmt.Sprintf("Odometer: %d\n", car.Odometer))
	sb.WriteString(fmt.Sprintf("Status: %s | %s\n", car.RecommendationStatus, car.CarStatus))
	if car.AvgMarketPrice != nil {
		sb.WriteString(fmt.Sprintf("Avg market price: $%d\n", *car.AvgMarketPrice))
	}
	if car.SuggestedBid != nil {
		sb.WriteString(fmt.Sprintf("Suggested bid: $%d\n", *car.SuggestedBid))
	}
	sb.WriteString(fmt.Sprintf("Current bid: $%.0f\n", car.CurrentBid))
	if car.Reasons != "" {
		sb.WriteString(fmt.Sprintf("Reasons: %s\n", car.Reasons))
	}
	if car.URL != "" {
		sb.WriteString(car.URL)
	}
	SendReply(update.Message.Chat.ID, sb.String())
}

func handleROICommand(update tgbotapi.Update) {
	baseline, err := services.LatestBaseline(database.DB)
	if err != nil {
		if errors.Is(err, services.ErrNoBaseline) {
			SendReply(update.Message.Chat.ID, "No ROI baseline configured yet.")
			return
		}
		appLogger.Error("ROI command failed: error reading baseline", zap.Error(err))
		SendReply(update.Message.Chat.ID, "An error occurred while loading the ROI baseline.")
		return
	}

	SendReply(update.Message.Chat.ID, fmt.Sprintf("Current ROI baseline: %.2f%% (profit margin %.2f%%)", baseline.Roi, baseline.ProfitMargin))
}

func handleHelpCommand(update tgbotapi.Update) {
	helpText := `Available commands:
/recommended - List currently recommended vehicles.
/car {vin} - Show details for a vehicle.
/roi - Show the current ROI baseline.
/help - Show this help message.`
	SendReply(update.Message.Chat.ID, helpText)
}

func SendReply(chatID int64, text string) {
	if botInstance == nil {
		log.Println("ERROR: Cannot send reply, bot is not initialized.")
		if appLogger != nil {
			appLogger.Error("Cannot send reply, bot is not initialized.")
		}
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := botInstance.Send(msg); err != nil {
		if appLogger != nil {
			appLogger.Error("Failed to send reply message", zap.Error(err), zap.Int64("chatID", chatID))
		} else {
			log.Printf("ERROR: Failed to send reply: %v", err)
		}
	}
}
