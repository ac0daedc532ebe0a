package services

import (
	"fmt"
	"strings"

	"bidhub/agent/internal/models"

	"gorm.io/gorm"
)

// MatchesFilter reports whether a car satisfies one saved filter: make
// equality (case-insensitive), optional model equality, and inclusive
// year / odometer ranges.
func MatchesFilter(car *models.Car, filter *models.Filter) bool {
	if !strings.EqualFold(car.Make, filter.Make) {
		return false
	}
	if filter.Model != nil && !strings.EqualFold(car.Model, *filter.Model) {
		return false
	}
	if car.Year < filter.YearFrom || car.Year > filter.YearTo {
		return false
	}
	if car.Odometer < filter.OdometerMin || car.Odometer > filter.OdometerMax {
		return false
	}
	return true
}

// MatchesAnyFilter checks a car against every saved filter.
func MatchesAnyFilter(db *gorm.DB, car *models.Car) (bool, error) {
	var filters []models.Filter
	if err := db.Find(&filters).Error; err != nil {
		return false, err
	}
	for i := range filters {
		if MatchesFilter(car, &filters[i]) {
			return true, nil
		}
	}
	return false, nil
}

// filterMatchIDs returns the IDs of all cars matching the filter.
func filterMatchIDs(db *gorm.DB, filter *models.Filter) (map[uint]bool, error) {
	q := db.Model(&models.Car{}).
		Where("LOWER(make) = LOWER(?)", filter.Make).
		Where("year >= ? AND year <= ?", filter.YearFrom, filter.YearTo).
		Where("odometer >= ? AND odometer <= ?", filter.OdometerMin, filter.OdometerMax)
	if filter.Model != nil {
		q = q.Where("LOWER(model) = LOWER(?)", *filter.Model)
	}

	var ids []uint
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// ApplyFilterChange recomputes relevance after a filter was created,
// updated or deleted. Cars that only the old shape matched are
// deactivated; cars that only the new shape matches are activated.
// Either side may be nil (create has no old, delete has no new).
func ApplyFilterChange(db *gorm.DB, oldFilter, newFilter *models.Filter) (activated, deactivated int, err error) {
	oldIDs := map[uint]bool{}
	newIDs := map[uint]bool{}

	if oldFilter != nil {
		if oldIDs, err = filterMatchIDs(db, oldFilter); err != nil {
			return 0, 0, fmt.Errorf("failed to match old filter shape: %w", err)
		}
	}
	if newFilter != nil {
		if newIDs, err = filterMatchIDs(db, newFilter); err != nil {
			return 0, 0, fmt.Errorf("failed to match new filter shape: %w", err)
		}
	}

	var toActivate, toDeactivate []uint
	for id := range newIDs {
		if !oldIDs[id] {
			toActivate = append(toActivate, id)
		}
	}
	for id := range oldIDs {
		if !newIDs[id] {
			toDeactivate = append(toDeactivate, id)
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(toActivate) > 0 {
			// Already ACTIVE cars are untouched by the WHERE clauses.
			res := tx.Model(&models.Car{}).
				Where("id IN ? AND relevance_status = ?", toActivate, models.RelevanceIrrelevant).
				Update("relevance_status", models.RelevanceActive)
			if res.Error != nil {
				return res.Error
			}
			activated = int(res.RowsAffected)

			// An ARCHIVAL car a filter wants again restarts enrichment
			// from scratch.
			res = tx.Model(&models.Car{}).
				Where("id IN ? AND relevance_status = ?", toActivate, models.RelevanceArchival).
				Updates(map[string]interface{}{
					"relevance_status": models.RelevanceActive,
					"attempts":         0,
					"is_checked":       false,
				})
			if res.Error != nil {
				return res.Error
			}
			activated += int(res.RowsAffected)
		}

		if len(toDeactivate) > 0 {
			// A car another filter still matches must stay ACTIVE.
			stillMatched, err := matchedByAnyOtherFilter(tx, toDeactivate, oldFilter)
			if err != nil {
				return err
			}
			var loseRelevance []uint
			for _, id := range toDeactivate {
				if !stillMatched[id] {
					loseRelevance = append(loseRelevance, id)
				}
			}
			if len(loseRelevance) == 0 {
				return nil
			}

			// ARCHIVAL cars that no filter wants any more are gone for good.
			if err := tx.Where("id IN ? AND relevance_status = ?", loseRelevance, models.RelevanceArchival).
				Delete(&models.Car{}).Error; err != nil {
				return err
			}
			res := tx.Model(&models.Car{}).
				Where("id IN ? AND relevance_status = ?", loseRelevance, models.RelevanceActive).
				Update("relevance_status", models.RelevanceIrrelevant)
			if res.Error != nil {
				return res.Error
			}
			deactivated = int(res.RowsAffected)
		}
		return nil
	})
	return activated, deactivated, err
}

// matchedByAnyOtherFilter reports which of the given cars still match a
// filter other than excluded.
func matchedByAnyOtherFilter(db *gorm.DB, carIDs []uint, excluded *models.Filter) (map[uint]bool, error) {
	var filters []models.Filter
	q := db.Model(&models.Filter{})
	if excluded != nil && excluded.ID != 0 {
		q = q.Where("id <> ?", excluded.ID)
	}
	if err := q.Find(&filters).Error; err != nil {
		return nil, err
	}

	matched := make(map[uint]bool)
	if len(filters) == 0 {
		return matched, nil
	}

	var cars []models.Car
	if err := db.Where("id IN ?", carIDs).Find(&cars).Error; err != nil {
		return nil, err
	}
	for i := range cars {
		for j := range filters {
			if MatchesFilter(&cars[i], &filters[j]) {
				matched[cars[i].ID] = true
				break
			}
		}
	}
	return matched, nil
}

// ReviveArchivalCar returns an ARCHIVAL car to circulation after a
// filter matched it again: back to ACTIVE with a clean enrichment slate.
func ReviveArchivalCar(tx *gorm.DB, car *models.Car) error {
	car.RelevanceStatus = models.RelevanceActive
	car.Attempts = 0
	car.IsChecked = false
	return tx.Model(car).
		Updates(map[string]interface{}{
			"relevance_status": models.RelevanceActive,
			"attempts":         0,
			"is_checked":       false,
		}).Error
}

// RelevanceForNewCar decides the initial bucket for a freshly ingested car.
func RelevanceForNewCar(db *gorm.DB, car *models.Car) (models.RelevanceStatus, error) {
	matched, err := MatchesAnyFilter(db, car)
	if err != nil {
		return models.RelevanceIrrelevant, err
	}
	if matched {
		return models.RelevanceActive, nil
	}
	return models.RelevanceIrrelevant, nil
}
