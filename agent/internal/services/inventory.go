package services

import (
	"errors"
	"fmt"

	"bidhub/agent/database"
	"bidhub/agent/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidTransition = errors.New("invalid car status transition")
	ErrActualBidRequired = errors.New("actual bid is required to mark a car WON")
)

// allowedTransitions is the bidding pipeline: NEW -> TO_BID -> BIDDING,
// then WON or FAILED. Hub deletion is possible from any pre-WON state.
var allowedTransitions = map[models.CarStatus][]models.CarStatus{
	models.CarStatusNew:        {models.CarStatusToBid},
	models.CarStatusToBid:      {models.CarStatusBidding, models.CarStatusDeletedHub},
	models.CarStatusBidding:    {models.CarStatusWon, models.CarStatusFailed, models.CarStatusDeletedHub},
	models.CarStatusFailed:     {models.CarStatusDeletedHub},
	models.CarStatusDeletedHub: {},
	models.CarStatusWon:        {},
}

func transitionAllowed(from, to models.CarStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ChangeCarStatus moves a car through the bidding pipeline. Marking a
// car WON requires the winning bid and creates its inventory record.
func ChangeCarStatus(db *gorm.DB, vin string, newStatus models.CarStatus, actualBid *float64) (*models.Car, error) {
	car, err := database.GetCarByVIN(db, vin)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(car.CarStatus, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, car.CarStatus, newStatus)
	}
	if newStatus == models.CarStatusWon && actualBid == nil {
		return nil, ErrActualBidRequired
	}

	oldStatus := car.CarStatus
	err = db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"car_status": newStatus}
		if actualBid != nil {
			updates["actual_bid"] = *actualBid
		}
		if err := tx.Model(car).Updates(updates).Error; err != nil {
			return err
		}
		car.CarStatus = newStatus
		car.ActualBid = actualBid

		if newStatus == models.CarStatusWon {
			inventory := models.CarInventory{
				CarID:            car.ID,
				Status:           models.InventoryAwaitingDelivery,
				VehicleCost:      *actualBid,
				TotalInvestments: *actualBid,
			}
			if err := tx.Create(&inventory).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	database.RecordHistory(db, car.ID, car.VIN, "STATUS_CHANGED",
		fmt.Sprintf("%s -> %s", oldStatus, newStatus))
	return car, nil
}

// GetInventory loads one inventory record with its car and investments.
func GetInventory(db *gorm.DB, id uint) (*models.CarInventory, error) {
	var inventory models.CarInventory
	err := db.Preload("Car").Preload("Investments").First(&inventory, id).Error
	if err != nil {
		return nil, err
	}
	return &inventory, nil
}

// AddInvestment books an expense against a won car and refreshes the
// rollups.
func AddInvestment(db *gorm.DB, inventoryID uint, description string, cost float64) (*models.CarInventoryInvestment, error) {
	investment := models.CarInventoryInvestment{
		CarInventoryID: inventoryID,
		Description:    description,
		Cost:           cost,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&investment).Error; err != nil {
			return err
		}
		return recomputeInventoryFinancials(tx, inventoryID)
	})
	if err != nil {
		return nil, err
	}
	return &investment, nil
}

// RemoveInvestment deletes an expense line and refreshes the rollups.
func RemoveInvestment(db *gorm.DB, inventoryID, investmentID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND car_inventory_id = ?", investmentID, inventoryID).
			Delete(&models.CarInventoryInvestment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return recomputeInventoryFinancials(tx, inventoryID)
	})
}

// UpdateInventory changes the lifecycle status and/or sale price of a
// won car and refreshes the rollups.
func UpdateInventory(db *gorm.DB, inventoryID uint, status *models.InventoryStatus, salePrice *float64) (*models.CarInventory, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if status != nil {
			updates["status"] = *status
		}
		if salePrice != nil {
			updates["sale_price"] = *salePrice
		}
		if len(updates) > 0 {
			res := tx.Model(&models.CarInventory{}).Where("id = ?", inventoryID).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return recomputeInventoryFinancials(tx, inventoryID)
	})
	if err != nil {
		return nil, err
	}
	return GetInventory(db, inventoryID)
}

// recomputeInventoryFinancials refreshes the denormalized totals:
// total_investments = vehicle_cost + sum of expenses, and once a sale
// price exists, the realized profit and ROI.
func recomputeInventoryFinancials(tx *gorm.DB, inventoryID uint) error {
	var inventory models.CarInventory
	if err := tx.First(&inventory, inventoryID).Error; err != nil {
		return err
	}

	var expenses float64
	err := tx.Model(&models.CarInventoryInvestment{}).
		Where("car_inventory_id = ?", inventoryID).
		Select("COALESCE(SUM(cost), 0)").
		Scan(&expenses).Error
	if err != nil {
		return err
	}

	total := decimal.NewFromFloat(inventory.VehicleCost).Add(decimal.NewFromFloat(expenses))
	updates := map[string]interface{}{
		"total_investments": total.Round(2).InexactFloat64(),
	}

	if inventory.SalePrice != nil {
		profit := decimal.NewFromFloat(*inventory.SalePrice).Sub(total)
		updates["actual_profit"] = profit.Round(2).InexactFloat64()
		if total.IsPositive() {
			roi := profit.Div(total).Mul(decimal.NewFromInt(100))
			updates["actual_roi"] = roi.Round(2).InexactFloat64()
		}
	}

	return tx.Model(&models.CarInventory{}).Where("id = ?", inventoryID).Updates(updates).Error
}
