package models

import "time"

// RelevanceStatus tracks whether a car matches any saved filter.
type RelevanceStatus string

const (
	RelevanceActive     RelevanceStatus = "ACTIVE"
	RelevanceIrrelevant RelevanceStatus = "IRRELEVANT"
	RelevanceArchival   RelevanceStatus = "ARCHIVAL"
)

// CarStatus tracks a car through the bidding pipeline.
type CarStatus string

const (
	CarStatusNew        CarStatus = "NEW"
	CarStatusToBid      CarStatus = "TO_BID"
	CarStatusBidding    CarStatus = "BIDDING"
	CarStatusWon        CarStatus = "WON"
	CarStatusFailed     CarStatus = "FAILED"
	CarStatusDeletedHub CarStatus = "DELETED_FROM_BIDDING_HUB"
)

// RecommendationStatus is the classifier verdict for a car.
type RecommendationStatus string

const (
	Recommended    RecommendationStatus = "RECOMMENDED"
	NotRecommended RecommendationStatus = "NOT_RECOMMENDED"
)

// InventoryStatus tracks a won car after the auction.
type InventoryStatus string

const (
	InventoryAwaitingDelivery InventoryStatus = "AWAITING_DELIVERY"
	InventoryDelivered        InventoryStatus = "DELIVERED"
	InventoryRepairing        InventoryStatus = "REPAIRING"
	InventorySelling          InventoryStatus = "SELLING"
	InventorySold             InventoryStatus = "SOLD"
)

// Car is an auction listing keyed by VIN.
type Car struct {
	ID          uint       `gorm:"primaryKey"`
	VIN         string     `gorm:"column:vin;uniqueIndex;not null"` // 17-char identity key for upserts
	LotNumber   string     `gorm:"index"`
	Auction     string     `gorm:"not null"` // source auction house, e.g. copart / iaai
	AuctionDate *time.Time `gorm:"index"`
	URL         string

	Make         string `gorm:"index;not null"`
	Model        string `gorm:"index"`
	Year         int    `gorm:"index"`
	Odometer     int
	FuelType     string
	Transmission string
	DriveType    string
	BodyStyle    string
	Engine       string
	Cylinders    string
	Color        string
	Location     string
	Seller       string

	HasKeys   *bool
	IsSalvage bool `gorm:"default:false"`

	Owners        *int
	AccidentCount *int

	// Verification flags; nil until the history provider has been asked.
	HasCorrectVIN       *bool
	HasCorrectOwners    *bool
	HasCorrectAccidents *bool
	HasCorrectMileage   *bool

	CurrentBid float64 `gorm:"default:0"`
	ActualBid  *float64

	JDPowerPrice *float64 // valuation sources; nil when the provider had no answer
	ManheimPrice *float64
	DMaxPrice    *float64

	AvgMarketPrice            *int
	PredictedROI              *float64
	PredictedProfitMargin     *float64
	PredictedTotalInvestments *float64
	SuggestedBid              *int

	RelevanceStatus      RelevanceStatus      `gorm:"index;default:IRRELEVANT"`
	CarStatus            CarStatus            `gorm:"index;default:NEW"`
	RecommendationStatus RecommendationStatus `gorm:"index;default:NOT_RECOMMENDED"`
	Reasons              string               // semicolon-delimited disqualification reasons

	IsChecked bool `gorm:"default:false"` // history provider has answered for this VIN
	Attempts  int  `gorm:"default:0"`     // failed enrichment attempts

	Photos               []Photo               `gorm:"constraint:OnDelete:CASCADE"`
	ConditionAssessments []ConditionAssessment `gorm:"constraint:OnDelete:CASCADE"`
	SaleHistory          []CarSaleHistory      `gorm:"constraint:OnDelete:CASCADE"`
	Parts                []CarPart             `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Photo is a listing image.
type Photo struct {
	ID    uint   `gorm:"primaryKey"`
	CarID uint   `gorm:"index;not null"`
	URL   string `gorm:"not null"`
	IsHD  bool   `gorm:"default:false"`
}

// ConditionAssessment is a damage / condition line from the listing.
type ConditionAssessment struct {
	ID    uint   `gorm:"primaryKey"`
	CarID uint   `gorm:"index;not null"`
	Type  string // e.g. "Primary Damage"
	Issue string // e.g. "Water/Flood"
}

// CarSaleHistory is a prior auction appearance of the same VIN.
type CarSaleHistory struct {
	ID       uint       `gorm:"primaryKey"`
	CarID    uint       `gorm:"index;not null"`
	SaleDate *time.Time
	Status   string
	FinalBid *float64
}

// CarPart is a planned repair cost line for a car under consideration.
type CarPart struct {
	ID          uint      `gorm:"primaryKey"`
	CarID       uint      `gorm:"index;not null"`
	Description string    `gorm:"not null"`
	Cost        float64   `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// Filter is a saved search; cars matching any filter are ACTIVE.
type Filter struct {
	ID          uint      `gorm:"primaryKey"`
	Make        string    `gorm:"not null"`
	Model       *string   // nil matches any model of the make
	YearFrom    int       `gorm:"default:0"`
	YearTo      int       `gorm:"default:3000"`
	OdometerMin int       `gorm:"default:0"`
	OdometerMax int       `gorm:"default:10000000"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Fee is one auction fee bracket. Percent fees apply to the predicted
// investment; flat fees are added as-is. A bracket applies when
// PriceFrom <= price <= PriceTo.
type Fee struct {
	ID        uint    `gorm:"primaryKey"`
	Auction   string  `gorm:"index;not null"`
	FeeType   string  `gorm:"not null"` // e.g. "standard", "internet bid", "gate"
	PriceFrom float64 `gorm:"not null"`
	PriceTo   float64 `gorm:"not null"`
	Amount    float64 `gorm:"not null"`
	IsPercent bool    `gorm:"default:false"`
}

// ROI is the pricing baseline. The most recent row wins.
type ROI struct {
	ID           uint      `gorm:"primaryKey"`
	Roi          float64   `gorm:"not null"`
	ProfitMargin float64   `gorm:"not null"` // derived from Roi, stored for reporting
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// CarInventory is created when a car is marked WON.
type CarInventory struct {
	ID          uint            `gorm:"primaryKey"`
	CarID       uint            `gorm:"uniqueIndex;not null"`
	Car         Car             `gorm:"constraint:OnDelete:CASCADE"`
	Status      InventoryStatus `gorm:"default:AWAITING_DELIVERY"`
	VehicleCost float64         `gorm:"not null"` // the winning bid
	SalePrice   *float64

	// Denormalized rollups, refreshed whenever an investment changes.
	TotalInvestments float64 `gorm:"default:0"`
	ActualProfit     *float64
	ActualROI        *float64

	Investments []CarInventoryInvestment `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time                `gorm:"autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"autoUpdateTime"`
}

// CarInventoryInvestment is a single expense booked against a won car.
type CarInventoryInvestment struct {
	ID             uint      `gorm:"primaryKey"`
	CarInventoryID uint      `gorm:"index;not null"`
	Description    string    `gorm:"not null"`
	Cost           float64   `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// History is an audit line for car state transitions.
type History struct {
	ID        uint      `gorm:"primaryKey"`
	CarID     uint      `gorm:"index"`
	VIN       string    `gorm:"column:vin;index"`
	Action    string    `gorm:"not null"`
	Details   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
