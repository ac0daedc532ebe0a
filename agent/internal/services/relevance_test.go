package services

import (
	"errors"
	"testing"

	"bidhub/agent/internal/models"

	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func seedCar(t *testing.T, db *gorm.DB, vin string, mutate func(*models.Car)) *models.Car {
	t.Helper()
	car := &models.Car{
		VIN:             vin,
		Auction:         "copart",
		Make:            "Toyota",
		Model:           "Camry",
		Year:            2020,
		Odometer:        50000,
		RelevanceStatus: models.RelevanceIrrelevant,
	}
	if mutate != nil {
		mutate(car)
	}
	if err := db.Create(car).Error; err != nil {
		t.Fatalf("failed to seed car %s: %v", vin, err)
	}
	return car
}

func TestMatchesFilter(t *testing.T) {
	car := &models.Car{Make: "Toyota", Model: "Camry", Year: 2020, Odometer: 50000}

	cases := []struct {
		name   string
		filter models.Filter
		want   bool
	}{
		{"make only", models.Filter{Make: "toyota", YearTo: 3000, OdometerMax: 10_000_000}, true},
		{"make and model", models.Filter{Make: "Toyota", Model: strPtr("camry"), YearTo: 3000, OdometerMax: 10_000_000}, true},
		{"wrong model", models.Filter{Make: "Toyota", Model: strPtr("Corolla"), YearTo: 3000, OdometerMax: 10_000_000}, false},
		{"wrong make", models.Filter{Make: "Honda", YearTo: 3000, OdometerMax: 10_000_000}, false},
		{"year below range", models.Filter{Make: "Toyota", YearFrom: 2021, YearTo: 3000, OdometerMax: 10_000_000}, false},
		{"year at boundary", models.Filter{Make: "Toyota", YearFrom: 2020, YearTo: 2020, OdometerMax: 10_000_000}, true},
		{"odometer above max", models.Filter{Make: "Toyota", YearTo: 3000, OdometerMax: 49999}, false},
		{"odometer at boundary", models.Filter{Make: "Toyota", YearTo: 3000, OdometerMax: 50000}, true},
	}

	for _, tc := range cases {
		if got := MatchesFilter(car, &tc.filter); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestApplyFilterChangeActivates(t *testing.T) {
	db := openTestDB(t)

	matching := seedCar(t, db, "4T1BF1FK5HU000001", nil)
	other := seedCar(t, db, "4T1BF1FK5HU000002", func(c *models.Car) {
		c.Make = "Honda"
		c.Model = "Accord"
	})

	newFilter := &models.Filter{Make: "Toyota", YearTo: 3000, OdometerMax: 10_000_000}
	activated, deactivated, err := ApplyFilterChange(db, nil, newFilter)
	if err != nil {
		t.Fatalf("ApplyFilterChange: %v", err)
	}
	if activated != 1 || deactivated != 0 {
		t.Fatalf("expected 1 activated, got activated=%d deactivated=%d", activated, deactivated)
	}

	var reloaded models.Car
	db.First(&reloaded, matching.ID)
	if reloaded.RelevanceStatus != models.RelevanceActive {
		t.Fatalf("expected matching car ACTIVE, got %s", reloaded.RelevanceStatus)
	}
	reloaded = models.Car{}
	if err := db.First(&reloaded, other.ID).Error; err != nil {
		t.Fatalf("failed to reload car: %v", err)
	}
	if reloaded.RelevanceStatus != models.RelevanceIrrelevant {
		t.Fatalf("expected non-matching car IRRELEVANT, got %s", reloaded.RelevanceStatus)
	}
}

func TestApplyFilterChangeRevivesArchival(t *testing.T) {
	db := openTestDB(t)

	archived := seedCar(t, db, "4T1BF1FK5HU000003", func(c *models.Car) {
		c.RelevanceStatus = models.RelevanceArchival
		c.Attempts = 3
		c.IsChecked = true
	})

	newFilter := &models.Filter{Make: "Toyota", YearTo: 3000, OdometerMax: 10_000_000}
	activated, _, err := ApplyFilterChange(db, nil, newFilter)
	if err != nil {
		t.Fatalf("ApplyFilterChange: %v", err)
	}
	if activated != 1 {
		t.Fatalf("expected archival car activated, got %d", activated)
	}

	var reloaded models.Car
	db.First(&reloaded, archived.ID)
	if reloaded.RelevanceStatus != models.RelevanceActive {
		t.Fatalf("expected ACTIVE, got %s", reloaded.RelevanceStatus)
	}
	if reloaded.Attempts != 0 || reloaded.IsChecked {
		t.Fatalf("expected enrichment slate reset, got attempts=%d is_checked=%v", reloaded.Attempts, reloaded.IsChecked)
	}
}

func TestApplyFilterChangeDeactivates(t *testing.T) {
	db := openTestDB(t)

	active := seedCar(t, db, "4T1BF1FK5HU000004", func(c *models.Car) {
		c.RelevanceStatus = models.RelevanceActive
	})
	archival := seedCar(t, db, "4T1BF1FK5HU000005", func(c *models.Car) {
		c.RelevanceStatus = models.RelevanceArchival
	})

	oldFilter := &models.Filter{Make: "Toyota", YearTo: 3000, OdometerMax: 10_000_000}
	_, deactivated, err := ApplyFilterChange(db, oldFilter, nil)
	if err != nil {
		t.Fatalf("ApplyFilterChange: %v", err)
	}
	if deactivated != 1 {
		t.Fatalf("expected 1 deactivated, got %d", deactivated)
	}

	var reloaded models.Car
	db.First(&reloaded, active.ID)
	if reloaded.RelevanceStatus != models.RelevanceIrrelevant {
		t.Fatalf("expected ACTIVE car demoted to IRRELEVANT, got %s", reloaded.RelevanceStatus)
	}

	err = db.First(&reloaded, archival.ID).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected archival car hard-deleted, got err=%v", err)
	}
}

func TestApplyFilterChangeKeepsCarsMatchedElsewhere(t *testing.T) {
	db := openTestDB(t)

	car := seedCar(t, db, "4T1BF1FK5HU000006", func(c *models.Car) {
		c.RelevanceStatus = models.RelevanceActive
	})

	removed := models.Filter{Make: "Toyota", YearTo: 3000, OdometerMax: 10_000_000}
	if err := db.Create(&removed).Error; err != nil {
		t.Fatalf("failed to seed filter: %v", err)
	}
	surviving := models.Filter{Make: "Toyota", Model: strPtr("Camry"), YearTo: 3000, OdometerMax: 10_000_000}
	if err := db.Create(&surviving).Error; err != nil {
		t.Fatalf("failed to seed filter: %v", err)
	}
	if err := db.Delete(&removed).Error; err != nil {
		t.Fatalf("failed to delete filter: %v", err)
	}

	_, deactivated, err := ApplyFilterChange(db, &removed, nil)
	if err != nil {
		t.Fatalf("ApplyFilterChange: %v", err)
	}
	if deactivated != 0 {
		t.Fatalf("expected no deactivation while another filter matches, got %d", deactivated)
	}

	var reloaded models.Car
	db.First(&reloaded, car.ID)
	if reloaded.RelevanceStatus != models.RelevanceActive {
		t.Fatalf("expected car to stay ACTIVE, got %s", reloaded.RelevanceStatus)
	}
}

func TestRelevanceForNewCar(t *testing.T) {
	db := openTestDB(t)

	filter := models.Filter{Make: "Toyota", YearTo: 3000, OdometerMax: 10_000_000}
	if err := db.Create(&filter).Error; err != nil {
		t.Fatalf("failed to seed filter: %v", err)
	}

	status, err := RelevanceForNewCar(db, &models.Car{Make: "Toyota", Year: 2020, Odometer: 1000})
	if err != nil || status != models.RelevanceActive {
		t.Fatalf("expected ACTIVE, got %s err=%v", status, err)
	}

	status, err = RelevanceForNewCar(db, &models.Car{Make: "Honda", Year: 2020, Odometer: 1000})
	if err != nil || status != models.RelevanceIrrelevant {
		t.Fatalf("expected IRRELEVANT, got %s err=%v", status, err)
	}
}
