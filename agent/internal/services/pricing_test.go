package services

import (
	"testing"

	"bidhub/agent/internal/models"
)

func f64(v float64) *float64 { return &v }

func TestAverageMarketPrice(t *testing.T) {
	avg := AverageMarketPrice(f64(10000), f64(12000), f64(14000))
	if avg == nil || *avg != 12000 {
		t.Fatalf("expected 12000, got %v", avg)
	}

	avg = AverageMarketPrice(nil, f64(9000), f64(10000))
	if avg == nil || *avg != 9500 {
		t.Fatalf("expected 9500 from two sources, got %v", avg)
	}

	avg = AverageMarketPrice(f64(100), f64(101), f64(101))
	if avg == nil || *avg != 100 {
		t.Fatalf("expected truncation to 100, got %v", avg)
	}

	if avg = AverageMarketPrice(nil, nil, nil); avg != nil {
		t.Fatalf("expected nil when no source answered, got %v", *avg)
	}
}

func TestDeriveProfitMargin(t *testing.T) {
	if got := DeriveProfitMargin(25); got != 20.0 {
		t.Fatalf("expected margin 20.0 for roi 25, got %v", got)
	}
	if got := DeriveProfitMargin(100); got != 50.0 {
		t.Fatalf("expected margin 50.0 for roi 100, got %v", got)
	}
	if got := DeriveProfitMargin(0); got != 0.0 {
		t.Fatalf("expected margin 0.0 for roi 0, got %v", got)
	}
}

func TestComputePricing(t *testing.T) {
	baseline := &models.ROI{Roi: 25, ProfitMargin: 20}

	p := ComputePricing(12000, baseline, 0, 100)
	if p.PredictedTotalInvestments != 9600 {
		t.Fatalf("expected investments 9600, got %v", p.PredictedTotalInvestments)
	}
	if p.PredictedProfitMargin != 2400 {
		t.Fatalf("expected predicted profit 2400, got %v", p.PredictedProfitMargin)
	}
	if p.SuggestedBid != 9500 {
		t.Fatalf("expected suggested bid 9500, got %d", p.SuggestedBid)
	}
	if p.PredictedROI != 25 {
		t.Fatalf("expected predicted roi 25, got %v", p.PredictedROI)
	}
}

func TestComputePricingSubtractsPartsCost(t *testing.T) {
	baseline := &models.ROI{Roi: 25, ProfitMargin: 20}

	p := ComputePricing(12000, baseline, 600, 100)
	if p.SuggestedBid != 8900 {
		t.Fatalf("expected suggested bid 8900, got %d", p.SuggestedBid)
	}
}

func TestComputePricingNoPositiveInvestment(t *testing.T) {
	baseline := &models.ROI{Roi: 25, ProfitMargin: 20}

	p := ComputePricing(0, baseline, 0, 0)
	if p.PredictedROI != 0 {
		t.Fatalf("expected no predicted roi without positive investment, got %v", p.PredictedROI)
	}
}
