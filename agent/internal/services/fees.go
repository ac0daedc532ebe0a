package services

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"bidhub/agent/internal/models"
	"bidhub/shared/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OpenCap stands in for "no upper bound" in fee brackets published
// without one.
const OpenCap = 1_000_000.0

// ResolveAuctionFee sums every fee bracket of the auction that contains
// price. Percent brackets apply their rate to predictedInvestment; flat
// brackets contribute their amount. No matching brackets means no fee.
func ResolveAuctionFee(db *gorm.DB, auction string, price float64, predictedInvestment float64) (float64, error) {
	var fees []models.Fee
	err := db.Where("auction = ? AND price_from <= ? AND price_to >= ?", auction, price, price).
		Find(&fees).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load fee brackets for %s: %w", auction, err)
	}

	total := decimal.Zero
	invest := decimal.NewFromFloat(predictedInvestment)
	for _, fee := range fees {
		amount := decimal.NewFromFloat(fee.Amount)
		if fee.IsPercent {
			total = total.Add(invest.Mul(amount).Div(decimal.NewFromInt(100)))
		} else {
			total = total.Add(amount)
		}
	}
	return total.Round(2).InexactFloat64(), nil
}

// ParseFeeRows converts the fee parser's wire rows into Fee models.
// Malformed rows are logged and skipped rather than failing the batch.
func ParseFeeRows(auction string, rows []types.FeeRow) []models.Fee {
	fees := make([]models.Fee, 0, len(rows))
	for _, row := range rows {
		fee, err := parseFeeRow(auction, row)
		if err != nil {
			log.Printf("WARN: Skipping malformed fee row for %s (%s): %v", auction, row.FeeType, err)
			continue
		}
		fees = append(fees, fee)
	}
	return fees
}

func parseFeeRow(auction string, row types.FeeRow) (models.Fee, error) {
	fee := models.Fee{Auction: auction, FeeType: row.FeeType}

	from, err := parseFeeBound(row.PriceFrom, 0)
	if err != nil {
		return fee, fmt.Errorf("bad price_from %q: %w", row.PriceFrom, err)
	}
	to, err := parseFeeBound(row.PriceTo, OpenCap)
	if err != nil {
		return fee, fmt.Errorf("bad price_to %q: %w", row.PriceTo, err)
	}
	fee.PriceFrom = from
	fee.PriceTo = to

	amountStr := strings.TrimSpace(row.Amount)
	if strings.HasSuffix(amountStr, "%") {
		fee.IsPercent = true
		amountStr = strings.TrimSuffix(amountStr, "%")
	}
	amountStr = strings.ReplaceAll(strings.TrimPrefix(amountStr, "$"), ",", "")
	amount, err := strconv.ParseFloat(strings.TrimSpace(amountStr), 64)
	if err != nil {
		return fee, fmt.Errorf("bad amount %q: %w", row.Amount, err)
	}
	fee.Amount = amount
	return fee, nil
}

func parseFeeBound(raw string, fallback float64) (float64, error) {
	s := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(raw), "$"), ",", "")
	if s == "" || s == "+" {
		return fallback, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ReplaceAuctionFees swaps the whole fee schedule of one auction in a
// single transaction, so readers never observe a half-loaded schedule.
func ReplaceAuctionFees(db *gorm.DB, auction string, fees []models.Fee) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("auction = ?", auction).Delete(&models.Fee{}).Error; err != nil {
			return err
		}
		if len(fees) == 0 {
			return nil
		}
		for i := range fees {
			fees[i].ID = 0
			fees[i].Auction = auction
		}
		return tx.Create(&fees).Error
	})
}
