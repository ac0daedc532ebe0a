package types

// VehicleListing is the wire format produced by the auction parsers.
// Every ingest path (webhook, feed poll, manual scrape) normalizes into
// this shape before anything touches the database.
type VehicleListing struct {
	VIN           string   `json:"vin"`
	LotNumber     string   `json:"lot_number"`
	Auction       string   `json:"auction"`
	AuctionDate   string   `json:"auction_date,omitempty"` // RFC3339 or YYYY-MM-DD
	URL           string   `json:"url,omitempty"`
	Make          string   `json:"make"`
	Model         string   `json:"model"`
	Year          int      `json:"year"`
	Odometer      int      `json:"odometer"`
	FuelType      string   `json:"fuel_type,omitempty"`
	Transmission  string   `json:"transmission,omitempty"`
	DriveType     string   `json:"drive_type,omitempty"`
	BodyStyle     string   `json:"body_style,omitempty"`
	Engine        string   `json:"engine,omitempty"`
	Cylinders     string   `json:"cylinders,omitempty"`
	Color         string   `json:"color,omitempty"`
	Location      string   `json:"location,omitempty"`
	Seller        string   `json:"seller,omitempty"`
	Keys          string   `json:"keys,omitempty"`     // "Yes" / "No"
	Document      string   `json:"document,omitempty"` // ownership document, e.g. "Salvage Certificate"
	Owners        *int     `json:"owners,omitempty"`
	AccidentCount *int     `json:"accident_count,omitempty"`
	CurrentBid    float64  `json:"current_bid"`
	Photos        []string `json:"photos,omitempty"`
	HDPhotos      []string `json:"hd_photos,omitempty"`

	Conditions []ConditionLine `json:"conditions,omitempty"`
}

// ConditionLine is one damage entry from the listing page.
type ConditionLine struct {
	Type  string `json:"type"`
	Issue string `json:"issue"`
}

// VehicleHistory is the per-VIN answer from the history provider. A
// non-empty Error marks the whole lookup as failed.
type VehicleHistory struct {
	VIN           string       `json:"vin"`
	JDPower       *float64     `json:"jd"`
	Manheim       *float64     `json:"manheim"`
	DMax          *float64     `json:"d_max"`
	Owners        *int         `json:"owners"`
	AccidentCount *int         `json:"accident_count"`
	Odometer      *int         `json:"mileage"`
	SaleHistory   []SaleRecord `json:"sales_history,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// SaleRecord is one prior auction appearance of a VIN.
type SaleRecord struct {
	SaleDate string   `json:"sale_date,omitempty"` // RFC3339 or YYYY-MM-DD
	Status   string   `json:"status,omitempty"`
	FinalBid *float64 `json:"final_bid,omitempty"`
}

// FeeRow is an auction fee bracket as published by the fee parser.
type FeeRow struct {
	FeeType   string `json:"fee_type"`
	PriceFrom string `json:"price_from"`
	PriceTo   string `json:"price_to"`
	Amount    string `json:"amount"` // "95" or "5%"
}
