package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bidhub/agent/database"
	"bidhub/agent/internal/events"
	"bidhub/agent/internal/models"
	"bidhub/shared/logger"
	"bidhub/shared/notifications"
	"bidhub/shared/types"
	"bidhub/shared/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Debounce cache so a burst of webhook deliveries for the same VIN does
// not trigger redundant processing.
var vinCache = struct {
	sync.Mutex
	VINs map[string]time.Time
}{VINs: make(map[string]time.Time)}

const vinCacheTTL = 30 * time.Second

func vinRecentlyProcessed(vin string) bool {
	vinCache.Lock()
	defer vinCache.Unlock()
	if seen, exists := vinCache.VINs[vin]; exists && time.Since(seen) < vinCacheTTL {
		return true
	}
	vinCache.VINs[vin] = time.Now()
	// Opportunistic pruning keeps the map from growing unbounded.
	if len(vinCache.VINs) > 10000 {
		for v, seen := range vinCache.VINs {
			if time.Since(seen) >= vinCacheTTL {
				delete(vinCache.VINs, v)
			}
		}
	}
	return false
}

// HandleListingsWebhook processes a pushed batch of listings. The
// payload may be a single listing object or an array of them.
func HandleListingsWebhook(payload []byte, db *gorm.DB, appLogger *logger.Logger) error {
	appLogger.Debug("Received listings webhook payload", zap.Int("size", len(payload)))
	if len(payload) == 0 {
		appLogger.Error("Empty listings webhook payload received!")
		return fmt.Errorf("empty payload received")
	}

	var listings []types.VehicleListing
	if err := json.Unmarshal(payload, &listings); err == nil {
		appLogger.Debug("Listings webhook payload is an array.", zap.Int("count", len(listings)))
		var firstErr error
		for i := range listings {
			if _, err := ProcessListing(db, appLogger, &listings[i]); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	var single types.VehicleListing
	if err := json.Unmarshal(payload, &single); err != nil {
		appLogger.Error("Failed to parse listings webhook payload (neither array nor object)", zap.Error(err))
		return fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	// Some parsers wrap the batch in an envelope or nest the vehicle one
	// level down; dig the listing out of the known spots before giving up.
	if !events.UsableVIN(utils.NormalizeVIN(single.VIN)) {
		var envelope map[string]interface{}
		if err := json.Unmarshal(payload, &envelope); err == nil {
			if nested, ok := envelope["listings"]; ok {
				if raw, err := json.Marshal(nested); err == nil {
					var batch []types.VehicleListing
					if err := json.Unmarshal(raw, &batch); err == nil && len(batch) > 0 {
						appLogger.Debug("Listings webhook payload is an envelope-wrapped array.", zap.Int("count", len(batch)))
						var firstErr error
						for i := range batch {
							if _, err := ProcessListing(db, appLogger, &batch[i]); err != nil && firstErr == nil {
								firstErr = err
							}
						}
						return firstErr
					}
				}
			}
			if vehicle, ok := envelope["vehicle"]; ok {
				if raw, err := json.Marshal(vehicle); err == nil {
					_ = json.Unmarshal(raw, &single)
				}
			}
			if vin, ok := events.ExtractVINFromEvent(envelope); ok {
				single.VIN = vin
			}
			if single.Auction == "" {
				if auction, ok := events.ExtractAuctionFromEvent(envelope); ok {
					single.Auction = auction
				}
			}
		}
		if !events.UsableVIN(utils.NormalizeVIN(single.VIN)) {
			appLogger.Warn("Webhook payload carried no usable VIN, dropping.")
			return fmt.Errorf("webhook payload carried no usable VIN")
		}
	}

	_, err := ProcessListing(db, appLogger, &single)
	return err
}

// ProcessListing upserts one listing by VIN: new VINs are created and
// bucketed by the saved filters, known VINs get their listing fields
// refreshed. Pricing and recommendation are recomputed afterwards.
func ProcessListing(db *gorm.DB, appLogger *logger.Logger, listing *types.VehicleListing) (*models.Car, error) {
	vin := utils.NormalizeVIN(listing.VIN)
	vinField := zap.String("vin", vin)

	if validation := ValidateListing(listing); !validation.IsValid {
		appLogger.Warn("Rejected invalid listing", vinField, zap.Strings("reasons", validation.FailReasons))
		return nil, fmt.Errorf("invalid listing for VIN %q: %v", listing.VIN, validation.FailReasons)
	}

	if vinRecentlyProcessed(vin) {
		appLogger.Info("VIN processed recently (ingest debounce), skipping.", vinField)
		return nil, nil
	}

	incoming, conditions := ConvertListing(listing)

	var car *models.Car
	err := db.Transaction(func(tx *gorm.DB) error {
		existing, err := database.LockCarByVIN(tx, vin)
		if err != nil && !errors.Is(err, database.ErrCarNotFound) {
			return err
		}

		if existing == nil {
			status, err := RelevanceForNewCar(tx, incoming)
			if err != nil {
				return err
			}
			incoming.RelevanceStatus = status
			incoming.CarStatus = models.CarStatusNew
			incoming.RecommendationStatus = models.Recommended
			if err := tx.Create(incoming).Error; err != nil {
				return err
			}
			car = incoming
			appLogger.Info("Created car from listing", vinField, zap.String("relevance", string(status)))
		} else {
			wasArchival := existing.RelevanceStatus == models.RelevanceArchival
			mergeListingFields(existing, incoming)
			if wasArchival {
				if matched, err := MatchesAnyFilter(tx, existing); err != nil {
					return err
				} else if matched {
					existing.RelevanceStatus = models.RelevanceActive
					existing.Attempts = 0
					existing.IsChecked = false
					appLogger.Info("Revived archival car from fresh listing", vinField)
				}
			}
			if err := tx.Save(existing).Error; err != nil {
				return err
			}
			car = existing
			appLogger.Debug("Updated car from listing", vinField)
		}

		if err := database.ReplacePhotos(tx, car.ID, listing.Photos, listing.HDPhotos); err != nil {
			return err
		}
		return database.ReplaceConditionAssessments(tx, car.ID, conditions)
	})
	if err != nil {
		appLogger.Error("Failed to store listing", vinField, zap.Error(err))
		return nil, err
	}
	if car == nil {
		return nil, nil
	}

	if err := RepriceCar(db, car); err != nil {
		if errors.Is(err, ErrNoBaseline) {
			appLogger.Warn("Skipping pricing, no ROI baseline configured yet", vinField)
		} else {
			appLogger.Error("Failed to reprice car after listing", vinField, zap.Error(err))
		}
	}

	if err := reclassifyAndAnnounce(db, car, car.IsChecked, appLogger); err != nil {
		appLogger.Error("Failed to reclassify car after listing", vinField, zap.Error(err))
	}
	return car, nil
}

// mergeListingFields refreshes listing-sourced fields on an existing car
// while leaving enrichment results (valuations, history, attempts) alone.
func mergeListingFields(dst, src *models.Car) {
	dst.LotNumber = src.LotNumber
	dst.Auction = src.Auction
	dst.AuctionDate = src.AuctionDate
	if src.URL != "" {
		dst.URL = src.URL
	}
	dst.Make = src.Make
	dst.Model = src.Model
	dst.Year = src.Year
	if src.Odometer > 0 {
		dst.Odometer = src.Odometer
	}
	if src.FuelType != "" {
		dst.FuelType = src.FuelType
	}
	if src.Transmission != "" {
		dst.Transmission = src.Transmission
	}
	if src.DriveType != "" {
		dst.DriveType = src.DriveType
	}
	if src.BodyStyle != "" {
		dst.BodyStyle = src.BodyStyle
	}
	if src.Engine != "" {
		dst.Engine = src.Engine
	}
	if src.Cylinders != "" {
		dst.Cylinders = src.Cylinders
	}
	if src.Color != "" {
		dst.Color = src.Color
	}
	if src.Location != "" {
		dst.Location = src.Location
	}
	if src.Seller != "" {
		dst.Seller = src.Seller
	}
	if src.HasKeys != nil {
		dst.HasKeys = src.HasKeys
	}
	if src.IsSalvage {
		dst.IsSalvage = true
	}
	// Listing-claimed owners/accidents only fill gaps; once the history
	// provider has answered, its figures stand.
	if src.Owners != nil && dst.Owners == nil {
		dst.Owners = src.Owners
	}
	if src.AccidentCount != nil && dst.AccidentCount == nil {
		dst.AccidentCount = src.AccidentCount
	}
	dst.CurrentBid = src.CurrentBid
}

// RepriceCar recomputes the derived money figures of a car and persists
// them. The average market price is sticky: when no valuation source has
// answered yet the previous value stays and pricing is left untouched.
func RepriceCar(db *gorm.DB, car *models.Car) error {
	if avg := AverageMarketPrice(car.JDPowerPrice, car.ManheimPrice, car.DMaxPrice); avg != nil {
		car.AvgMarketPrice = avg
	}
	if car.AvgMarketPrice == nil {
		return nil
	}

	baseline, err := LatestBaseline(db)
	if err != nil {
		return err
	}

	partsCost, err := database.SumPartsCost(db, car.ID)
	if err != nil {
		return err
	}

	// The fee bracket is selected by where the investment would land.
	investNoFee := ComputePricing(*car.AvgMarketPrice, baseline, 0, 0).PredictedTotalInvestments
	auctionFee, err := ResolveAuctionFee(db, car.Auction, float64(*car.AvgMarketPrice), investNoFee)
	if err != nil {
		return err
	}

	pricing := ComputePricing(*car.AvgMarketPrice, baseline, partsCost, auctionFee)
	car.PredictedTotalInvestments = &pricing.PredictedTotalInvestments
	car.PredictedProfitMargin = &pricing.PredictedProfitMargin
	car.PredictedROI = &pricing.PredictedROI
	car.SuggestedBid = &pricing.SuggestedBid

	return db.Model(car).Updates(map[string]interface{}{
		"avg_market_price":            car.AvgMarketPrice,
		"predicted_total_investments": car.PredictedTotalInvestments,
		"predicted_profit_margin":     car.PredictedProfitMargin,
		"predicted_roi":               car.PredictedROI,
		"suggested_bid":               car.SuggestedBid,
	}).Error
}

// EnrichVehicle asks the history provider about a VIN and folds the
// answer into the car. A failed lookup costs one attempt and marks the
// VIN as unconfirmed; nothing else changes.
func EnrichVehicle(db *gorm.DB, appLogger *logger.Logger, vin string) error {
	vin = utils.NormalizeVIN(vin)
	vinField := zap.String("vin", vin)

	car, err := database.GetCarByVIN(db, vin)
	if err != nil {
		return err
	}
	wasCheckedBefore := car.IsChecked

	history, err := FetchVehicleHistory(vin)
	if err != nil {
		notOK := false
		updates := map[string]interface{}{"attempts": gorm.Expr("attempts + 1")}
		if errors.Is(err, ErrHistoryLookupFailed) {
			updates["has_correct_vin"] = &notOK
		}
		if uerr := db.Model(car).Updates(updates).Error; uerr != nil {
			appLogger.Error("Failed to record enrichment failure", vinField, zap.Error(uerr))
		}
		appLogger.Warn("Vehicle enrichment failed", vinField, zap.Error(err), zap.Int("attempts", car.Attempts+1))
		database.RecordHistory(db, car.ID, vin, "ENRICHMENT_FAILED", err.Error())
		return err
	}

	ok := true
	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := database.LockCarByVIN(tx, vin)
		if err != nil {
			return err
		}

		locked.JDPowerPrice = history.JDPower
		locked.ManheimPrice = history.Manheim
		locked.DMaxPrice = history.DMax

		// Compare the listing's claims against the provider's answer
		// before the answer replaces them.
		if history.Owners != nil && locked.Owners != nil {
			eq := *history.Owners == *locked.Owners
			locked.HasCorrectOwners = &eq
		}
		if history.AccidentCount != nil && locked.AccidentCount != nil {
			eq := *history.AccidentCount == *locked.AccidentCount
			locked.HasCorrectAccidents = &eq
		}
		if history.Odometer != nil && locked.Odometer > 0 {
			eq := *history.Odometer <= locked.Odometer
			locked.HasCorrectMileage = &eq
		}

		locked.Owners = history.Owners
		locked.AccidentCount = history.AccidentCount
		if history.Odometer != nil && *history.Odometer > locked.Odometer {
			locked.Odometer = *history.Odometer
		}
		locked.IsChecked = true
		locked.HasCorrectVIN = &ok

		if err := tx.Save(locked).Error; err != nil {
			return err
		}

		records := make([]models.CarSaleHistory, 0, len(history.SaleHistory))
		for _, rec := range history.SaleHistory {
			entry := models.CarSaleHistory{Status: rec.Status, FinalBid: rec.FinalBid}
			if ts, okDate := parseListingDate(rec.SaleDate); okDate {
				entry.SaleDate = &ts
			}
			records = append(records, entry)
		}
		if err := database.AppendSaleHistory(tx, locked.ID, records); err != nil {
			return err
		}

		*car = *locked
		return nil
	})
	if err != nil {
		appLogger.Error("Failed to store enrichment result", vinField, zap.Error(err))
		return err
	}

	appLogger.Info("Vehicle enriched", vinField,
		zap.Bool("isChecked", car.IsChecked), zap.Int("sales", len(history.SaleHistory)))
	database.RecordHistory(db, car.ID, vin, "ENRICHED", "history provider answered")

	if err := RepriceCar(db, car); err != nil {
		if errors.Is(err, ErrNoBaseline) {
			appLogger.Warn("Skipping pricing after enrichment, no ROI baseline configured yet", vinField)
		} else {
			return err
		}
	}
	return reclassifyAndAnnounce(db, car, wasCheckedBefore, appLogger)
}

// reclassifyAndAnnounce reruns the classifier and announces cars that
// just got a favourable verdict. A car is only announced once it has a
// full picture, i.e. after its first successful enrichment.
func reclassifyAndAnnounce(db *gorm.DB, car *models.Car, wasCheckedBefore bool, appLogger *logger.Logger) error {
	wasRecommended := car.RecommendationStatus == models.Recommended

	if err := ReclassifyAndSave(db, car); err != nil {
		return err
	}

	becameRecommended := car.RecommendationStatus == models.Recommended && car.IsChecked && (!wasRecommended || !wasCheckedBefore)
	if becameRecommended && car.RelevanceStatus == models.RelevanceActive && car.AvgMarketPrice != nil && car.SuggestedBid != nil {
		title := fmt.Sprintf("%d %s %s", car.Year, car.Make, car.Model)
		var photoURL string
		var photo models.Photo
		if err := db.Where("car_id = ?", car.ID).Order("is_hd DESC, id ASC").First(&photo).Error; err == nil {
			photoURL = photo.URL
		}
		notifications.LogRecommendedCar(car.VIN, title, car.URL, car.Auction, photoURL, *car.AvgMarketPrice, *car.SuggestedBid, car.CurrentBid)
		appLogger.Info("Announced recommended car", zap.String("vin", car.VIN))
	}
	return nil
}
