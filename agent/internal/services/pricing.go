package services

import (
	"errors"

	"bidhub/agent/database"
	"bidhub/agent/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNoBaseline is returned when pricing is requested before any ROI
// baseline row has been configured.
var ErrNoBaseline = errors.New("no ROI baseline configured")

var (
	oneHundred  = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10000)
)

// Pricing holds every derived money figure for a car. All float fields
// are rounded to cents; the bid fields are whole dollars.
type Pricing struct {
	AvgMarketPrice            int
	PredictedTotalInvestments float64
	PredictedProfitMargin     float64
	PredictedROI              float64
	SuggestedBid              int
}

// AverageMarketPrice averages the valuation sources that actually
// answered, truncated to whole dollars. Returns nil when no source had
// a price, so the caller can keep the previous value.
func AverageMarketPrice(jd, manheim, dmax *float64) *int {
	sum := decimal.Zero
	count := 0
	for _, src := range []*float64{jd, manheim, dmax} {
		if src == nil {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(*src))
		count++
	}
	if count == 0 {
		return nil
	}
	avg := int(sum.Div(decimal.NewFromInt(int64(count))).IntPart())
	return &avg
}

// DeriveProfitMargin converts a target ROI percentage into the profit
// margin percentage it implies: 100 - 10000/(roi+100), rounded to cents.
func DeriveProfitMargin(roi float64) float64 {
	r := decimal.NewFromFloat(roi)
	margin := oneHundred.Sub(tenThousand.Div(r.Add(oneHundred)))
	return margin.Round(2).InexactFloat64()
}

// ComputePricing derives the money figures for a car from its average
// market price, the ROI baseline, planned parts costs and the resolved
// auction fee.
func ComputePricing(avgMarketPrice int, baseline *models.ROI, partsCost, auctionFee float64) Pricing {
	avg := decimal.NewFromInt(int64(avgMarketPrice))
	roi := decimal.NewFromFloat(baseline.Roi)

	// predicted_total_investments = avg / (1 + roi/100)
	investments := avg.Div(decimal.NewFromInt(1).Add(roi.Div(oneHundred)))

	margin := decimal.NewFromFloat(baseline.ProfitMargin)
	profit := avg.Mul(margin).Div(oneHundred)

	suggested := investments.
		Sub(decimal.NewFromFloat(partsCost)).
		Sub(decimal.NewFromFloat(auctionFee))

	p := Pricing{
		AvgMarketPrice:            avgMarketPrice,
		PredictedTotalInvestments: investments.Round(2).InexactFloat64(),
		PredictedProfitMargin:     profit.Round(2).InexactFloat64(),
		SuggestedBid:              int(suggested.IntPart()),
	}
	if investments.IsPositive() {
		p.PredictedROI = baseline.Roi
	}
	return p
}

// LatestBaseline loads the current ROI baseline or fails fast with
// ErrNoBaseline.
func LatestBaseline(db *gorm.DB) (*models.ROI, error) {
	roi, err := database.LatestROI(db)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoBaseline
		}
		return nil, err
	}
	return roi, nil
}
