package services

import (
	"fmt"
	"strings"

	"bidhub/agent/database"
	"bidhub/agent/internal/models"

	"gorm.io/gorm"
)

const maxSalesAtAuction = 4

// allowedFuelTypes lists fuels that do not disqualify a car. An empty
// fuel type counts as Unknown.
var allowedFuelTypes = map[string]bool{
	"Gasoline":      true,
	"Flexible Fuel": true,
	"Unknown":       true,
	"":              true,
}

// disqualifyingIssues are condition lines that rule a car out entirely.
var disqualifyingIssues = map[string]bool{
	"Water/Flood":         true,
	"Rollover":            true,
	"Burn":                true,
	"Burn Engine":         true,
	"Burn Interior":       true,
	"Rejected Repair":     true,
	"Vandalism":           true,
	"Stripped":            true,
	"Missing/Altered VIN": true,
	"Undercarriage":       true,
}

// EvaluateCar returns the disqualification reasons currently visible on
// the car. An empty slice means nothing speaks against recommending it.
func EvaluateCar(car *models.Car, saleCount int) []string {
	var reasons []string

	if !allowedFuelTypes[car.FuelType] {
		reasons = append(reasons, car.FuelType+";")
	}
	if car.Transmission != "" && car.Transmission != "Automatic" {
		reasons = append(reasons, car.Transmission+";")
	}
	for _, line := range car.ConditionAssessments {
		if disqualifyingIssues[line.Issue] {
			reasons = append(reasons, line.Issue+";")
		}
	}
	if saleCount >= maxSalesAtAuction {
		reasons = append(reasons, fmt.Sprintf("sales at auction in the last 3 years: %d;", saleCount))
	}
	if car.SuggestedBid != nil && car.CurrentBid > float64(*car.SuggestedBid) {
		reasons = append(reasons, "current bid exceeds suggested bid;")
	}
	return reasons
}

// MergeReasons appends new reasons to the stored reason string, keeping
// each distinct reason once. Reasons are never removed here; they only
// go away through a bulk reset.
func MergeReasons(existing string, reasons []string) string {
	seen := make(map[string]bool)
	var merged []string
	for _, r := range splitReasons(existing) {
		if !seen[r] {
			seen[r] = true
			merged = append(merged, r)
		}
	}
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		merged = append(merged, r)
	}
	return strings.Join(merged, " ")
}

func splitReasons(stored string) []string {
	var out []string
	for _, part := range strings.Split(stored, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part+";")
		}
	}
	return out
}

// Reclassify re-runs the classifier for a car and updates its
// recommendation fields in place. Returns true when anything changed.
func Reclassify(car *models.Car, saleCount int) bool {
	merged := MergeReasons(car.Reasons, EvaluateCar(car, saleCount))

	status := models.Recommended
	if merged != "" {
		status = models.NotRecommended
	}

	changed := car.Reasons != merged || car.RecommendationStatus != status
	car.Reasons = merged
	car.RecommendationStatus = status
	return changed
}

// ReclassifyAndSave reloads the classifier inputs from the database,
// reclassifies and persists the result when it changed.
func ReclassifyAndSave(db *gorm.DB, car *models.Car) error {
	saleCount, err := database.CountSaleHistory(db, car.ID)
	if err != nil {
		return err
	}
	if len(car.ConditionAssessments) == 0 {
		if err := db.Where("car_id = ?", car.ID).Find(&car.ConditionAssessments).Error; err != nil {
			return err
		}
	}
	if !Reclassify(car, int(saleCount)) {
		return nil
	}
	return db.Model(car).Select("reasons", "recommendation_status").
		Updates(map[string]interface{}{
			"reasons":               car.Reasons,
			"recommendation_status": car.RecommendationStatus,
		}).Error
}

// ResetRecommendations wipes all stored reasons and re-runs the
// classifier for every car from a clean slate. The reset covers every
// relevance bucket; wiping a reason without re-deriving would leave
// non-ACTIVE cars RECOMMENDED on no evidence.
func ResetRecommendations(db *gorm.DB) (int, error) {
	err := db.Model(&models.Car{}).Where("reasons <> ''").
		Updates(map[string]interface{}{
			"reasons":               "",
			"recommendation_status": models.Recommended,
		}).Error
	if err != nil {
		return 0, err
	}

	var cars []models.Car
	if err := db.Preload("ConditionAssessments").Find(&cars).Error; err != nil {
		return 0, err
	}

	reclassified := 0
	for i := range cars {
		if err := ReclassifyAndSave(db, &cars[i]); err != nil {
			return reclassified, err
		}
		reclassified++
	}
	return reclassified, nil
}
