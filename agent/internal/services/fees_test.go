package services

import (
	"testing"

	"bidhub/agent/internal/models"
	"bidhub/shared/types"
)

func TestResolveAuctionFee(t *testing.T) {
	db := openTestDB(t)

	fees := []models.Fee{
		{Auction: "copart", FeeType: "standard", PriceFrom: 0, PriceTo: 5000, Amount: 95},
		{Auction: "copart", FeeType: "internet bid", PriceFrom: 0, PriceTo: OpenCap, Amount: 5, IsPercent: true},
		{Auction: "copart", FeeType: "high value", PriceFrom: 10000, PriceTo: OpenCap, Amount: 500},
		{Auction: "iaai", FeeType: "standard", PriceFrom: 0, PriceTo: OpenCap, Amount: 1000},
	}
	if err := db.Create(&fees).Error; err != nil {
		t.Fatalf("failed to seed fees: %v", err)
	}

	// Flat 95 bracket plus 5% of the predicted investment.
	got, err := ResolveAuctionFee(db, "copart", 3000, 1000)
	if err != nil {
		t.Fatalf("ResolveAuctionFee: %v", err)
	}
	if got != 145 {
		t.Fatalf("expected 145, got %v", got)
	}

	// Above the flat bracket; only the percent and high-value rows apply.
	got, err = ResolveAuctionFee(db, "copart", 12000, 2000)
	if err != nil {
		t.Fatalf("ResolveAuctionFee: %v", err)
	}
	if got != 600 {
		t.Fatalf("expected 600, got %v", got)
	}

	// Unknown auction has no brackets and therefore no fee.
	got, err = ResolveAuctionFee(db, "manheim", 3000, 1000)
	if err != nil {
		t.Fatalf("ResolveAuctionFee: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0 for auction without brackets, got %v", got)
	}
}

func TestParseFeeRows(t *testing.T) {
	rows := []types.FeeRow{
		{FeeType: "standard", PriceFrom: "$0", PriceTo: "$4,999.99", Amount: "$95"},
		{FeeType: "internet bid", PriceFrom: "0", PriceTo: "+", Amount: "5%"},
		{FeeType: "broken", PriceFrom: "0", PriceTo: "100", Amount: "not-a-number"},
		{FeeType: "open", PriceFrom: "", PriceTo: "", Amount: "250"},
	}

	fees := ParseFeeRows("copart", rows)
	if len(fees) != 3 {
		t.Fatalf("expected 3 parsed fees (malformed row skipped), got %d", len(fees))
	}

	if fees[0].PriceFrom != 0 || fees[0].PriceTo != 4999.99 || fees[0].Amount != 95 || fees[0].IsPercent {
		t.Fatalf("unexpected flat row: %+v", fees[0])
	}
	if !fees[1].IsPercent || fees[1].Amount != 5 || fees[1].PriceTo != OpenCap {
		t.Fatalf("unexpected percent row: %+v", fees[1])
	}
	if fees[2].PriceFrom != 0 || fees[2].PriceTo != OpenCap {
		t.Fatalf("expected empty bounds to fall back to 0 and the open cap: %+v", fees[2])
	}
}

func TestReplaceAuctionFees(t *testing.T) {
	db := openTestDB(t)

	old := []models.Fee{
		{Auction: "copart", FeeType: "standard", PriceFrom: 0, PriceTo: 100, Amount: 10},
		{Auction: "iaai", FeeType: "standard", PriceFrom: 0, PriceTo: 100, Amount: 20},
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("failed to seed fees: %v", err)
	}

	replacement := []models.Fee{
		{FeeType: "standard", PriceFrom: 0, PriceTo: OpenCap, Amount: 95},
	}
	if err := ReplaceAuctionFees(db, "copart", replacement); err != nil {
		t.Fatalf("ReplaceAuctionFees: %v", err)
	}

	var copartFees []models.Fee
	if err := db.Where("auction = ?", "copart").Find(&copartFees).Error; err != nil {
		t.Fatalf("failed to load fees: %v", err)
	}
	if len(copartFees) != 1 || copartFees[0].Amount != 95 {
		t.Fatalf("expected copart schedule replaced, got %+v", copartFees)
	}

	var iaaiCount int64
	db.Model(&models.Fee{}).Where("auction = ?", "iaai").Count(&iaaiCount)
	if iaaiCount != 1 {
		t.Fatalf("expected other auction untouched, got %d rows", iaaiCount)
	}
}
