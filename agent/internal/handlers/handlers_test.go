package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bidhub/agent/internal/models"
	"bidhub/agent/internal/services"
	"bidhub/shared/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Car{},
		&models.Photo{},
		&models.ConditionAssessment{},
		&models.CarSaleHistory{},
		&models.CarPart{},
		&models.Filter{},
		&models.Fee{},
		&models.ROI{},
		&models.CarInventory{},
		&models.CarInventoryInvestment{},
		&models.History{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	appLogger, err := logger.NewLogger(logger.Config{Level: "error"})
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}

	router := gin.New()
	RegisterAPIRoutes(router, appLogger, db, services.NewKickoffLock(""))
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func fptr(v float64) *float64 { return &v }

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestAPI(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestVehicleListingAndFilters(t *testing.T) {
	router, db := setupTestAPI(t)

	cars := []models.Car{
		{VIN: "1HGCM82633A100001", Auction: "copart", Make: "Honda", Model: "Accord", Year: 2019, RelevanceStatus: models.RelevanceActive, RecommendationStatus: models.Recommended},
		{VIN: "1HGCM82633A100002", Auction: "iaai", Make: "Honda", Model: "Civic", Year: 2021, RelevanceStatus: models.RelevanceActive, RecommendationStatus: models.NotRecommended},
		{VIN: "1HGCM82633A100003", Auction: "copart", Make: "Toyota", Model: "Camry", Year: 2020, RelevanceStatus: models.RelevanceIrrelevant},
	}
	if err := db.Create(&cars).Error; err != nil {
		t.Fatalf("failed to seed cars: %v", err)
	}

	// Default listing shows ACTIVE cars only.
	w := doJSON(t, router, http.MethodGet, "/api/v1/vehicles", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Items []models.Car `json:"items"`
		Total int64        `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("expected 2 ACTIVE cars, got total=%d items=%d", resp.Total, len(resp.Items))
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/vehicles?recommended_only=true", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Items[0].VIN != "1HGCM82633A100001" {
		t.Fatalf("expected only the recommended car, got %+v", resp)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/vehicles?relevance=IRRELEVANT", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Items[0].Make != "Toyota" {
		t.Fatalf("expected the irrelevant Toyota, got %+v", resp)
	}

	// Unknown ordering columns are rejected, not interpolated.
	w = doJSON(t, router, http.MethodGet, "/api/v1/vehicles?ordering=vin%3Bdrop", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported ordering, got %d", w.Code)
	}
}

func TestGetVehicleByVIN(t *testing.T) {
	router, db := setupTestAPI(t)

	car := models.Car{VIN: "1HGCM82633A100010", Auction: "copart", Make: "Honda", RelevanceStatus: models.RelevanceActive}
	if err := db.Create(&car).Error; err != nil {
		t.Fatalf("failed to seed car: %v", err)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/v1/vehicles/1hgcm82633a100010", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for known VIN, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/vehicles/1HGCM82633A999999", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown VIN, got %d", w.Code)
	}
}

func TestVehicleStatusEndpoint(t *testing.T) {
	router, db := setupTestAPI(t)

	car := models.Car{VIN: "1HGCM82633A100020", Auction: "copart", Make: "Honda", CarStatus: models.CarStatusNew}
	if err := db.Create(&car).Error; err != nil {
		t.Fatalf("failed to seed car: %v", err)
	}

	w := doJSON(t, router, http.MethodPatch, "/api/v1/vehicles/1HGCM82633A100020/status", CarStatusRequest{Status: models.CarStatusToBid})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Skipping BIDDING is an invalid transition.
	w = doJSON(t, router, http.MethodPatch, "/api/v1/vehicles/1HGCM82633A100020/status", CarStatusRequest{Status: models.CarStatusFailed})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPatch, "/api/v1/vehicles/1HGCM82633A100020/status", CarStatusRequest{Status: models.CarStatusBidding})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// WON without the winning bid is a bad request.
	w = doJSON(t, router, http.MethodPatch, "/api/v1/vehicles/1HGCM82633A100020/status", CarStatusRequest{Status: models.CarStatusWon})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	bid := 7500.0
	w = doJSON(t, router, http.MethodPatch, "/api/v1/vehicles/1HGCM82633A100020/status", CarStatusRequest{Status: models.CarStatusWon, ActualBid: &bid})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&models.CarInventory{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected inventory created on WON, got %d", count)
	}
}

func TestROIEndpoints(t *testing.T) {
	router, _ := setupTestAPI(t)

	if w := doJSON(t, router, http.MethodGet, "/api/v1/admin/roi/latest", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any baseline, got %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/admin/roi", ROIRequest{Roi: fptr(25)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var roi models.ROI
	json.Unmarshal(w.Body.Bytes(), &roi)
	if roi.ProfitMargin != 20 {
		t.Fatalf("expected derived margin 20, got %v", roi.ProfitMargin)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/v1/admin/roi/latest", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after create, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/admin/roi", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 listing baselines, got %d", w.Code)
	}
	var rows []models.ROI
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 1 {
		t.Fatalf("expected 1 baseline row, got %d", len(rows))
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/admin/roi/calculate?roi=100", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from calculate, got %d", w.Code)
	}
	var calc map[string]float64
	json.Unmarshal(w.Body.Bytes(), &calc)
	if calc["profit_margin"] != 50 {
		t.Fatalf("expected margin 50 for roi 100, got %v", calc["profit_margin"])
	}

	if w := doJSON(t, router, http.MethodGet, "/api/v1/admin/roi/calculate?roi=oops", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric roi, got %d", w.Code)
	}

	// A negative baseline would drive every suggested bid above market.
	if w := doJSON(t, router, http.MethodPost, "/api/v1/admin/roi", map[string]float64{"roi": -50}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative roi, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/admin/roi/calculate?roi=-50", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative roi preview, got %d", w.Code)
	}

	// Zero is a legal break-even target.
	w = doJSON(t, router, http.MethodPost, "/api/v1/admin/roi", ROIRequest{Roi: fptr(0)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for roi 0, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &roi)
	if roi.Roi != 0 || roi.ProfitMargin != 0 {
		t.Fatalf("expected zero baseline stored as-is, got %+v", roi)
	}

	// Stored ROI is rounded to cents.
	w = doJSON(t, router, http.MethodPost, "/api/v1/admin/roi", ROIRequest{Roi: fptr(25.5555)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &roi)
	if roi.Roi != 25.56 {
		t.Fatalf("expected roi rounded to 25.56, got %v", roi.Roi)
	}

	if w := doJSON(t, router, http.MethodPost, "/api/v1/admin/roi", map[string]string{"note": "no roi"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when roi is missing, got %d", w.Code)
	}
}

func TestPartsRecomputeAndReclassify(t *testing.T) {
	router, db := setupTestAPI(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/admin/roi", ROIRequest{Roi: fptr(25)})
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to seed baseline: %d %s", w.Code, w.Body.String())
	}

	// avg 12000 at roi 25 puts the investment ceiling at 9600.
	car := models.Car{
		VIN:                  "1HGCM82633A100050",
		Auction:              "copart",
		Make:                 "Honda",
		Model:                "Accord",
		FuelType:             "Gasoline",
		Transmission:         "Automatic",
		RelevanceStatus:      models.RelevanceActive,
		RecommendationStatus: models.Recommended,
		IsChecked:            true,
		CurrentBid:           9000,
		JDPowerPrice:         fptr(10000),
		ManheimPrice:         fptr(12000),
		DMaxPrice:            fptr(14000),
	}
	if err := db.Create(&car).Error; err != nil {
		t.Fatalf("failed to seed car: %v", err)
	}

	// A $1000 part drops the suggested bid to 8600, below the current
	// bid; the classifier must notice without waiting for an ingest.
	w = doJSON(t, router, http.MethodPost, "/api/v1/vehicles/1HGCM82633A100050/parts", CarPartRequest{Description: "bumper", Cost: 1000})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var reloaded models.Car
	db.Where("vin = ?", car.VIN).First(&reloaded)
	if reloaded.SuggestedBid == nil || *reloaded.SuggestedBid != 8600 {
		t.Fatalf("expected suggested bid 8600 after part, got %v", reloaded.SuggestedBid)
	}
	if reloaded.RecommendationStatus != models.NotRecommended {
		t.Fatalf("expected bid overage to disqualify, got %s", reloaded.RecommendationStatus)
	}
	if !strings.Contains(reloaded.Reasons, "current bid exceeds suggested bid") {
		t.Fatalf("expected overage reason recorded, got %q", reloaded.Reasons)
	}
}

func TestBiddingHubEndpoints(t *testing.T) {
	router, db := setupTestAPI(t)

	suggested := 9000
	bid := 8000.0
	cars := []models.Car{
		{VIN: "1HGCM82633A100030", Auction: "copart", Make: "Honda", CarStatus: models.CarStatusNew},
		{VIN: "1HGCM82633A100031", Auction: "copart", Make: "Honda", CarStatus: models.CarStatusToBid, CurrentBid: 500, SuggestedBid: &suggested},
		{VIN: "1HGCM82633A100032", Auction: "copart", Make: "Honda", CarStatus: models.CarStatusWon, ActualBid: &bid},
		{VIN: "1HGCM82633A100033", Auction: "copart", Make: "Honda", CarStatus: models.CarStatusDeletedHub},
	}
	if err := db.Create(&cars).Error; err != nil {
		t.Fatalf("failed to seed cars: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/bidding-hub", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Items             []models.Car `json:"items"`
		Total             int          `json:"total"`
		TotalCurrentBid   float64      `json:"total_current_bid"`
		TotalSuggestedBid float64      `json:"total_suggested_bid"`
		TotalActualBid    float64      `json:"total_actual_bid"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Fatalf("expected NEW and deleted cars hidden, got %d items", resp.Total)
	}
	if resp.TotalCurrentBid != 500 || resp.TotalSuggestedBid != 9000 || resp.TotalActualBid != 8000 {
		t.Fatalf("unexpected rollups: %+v", resp)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/bidding-hub?show_deleted=true", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Fatalf("expected deleted car visible with show_deleted, got %d", resp.Total)
	}

	// NEW and WON cars cannot be removed from the hub.
	if w := doJSON(t, router, http.MethodDelete, "/api/v1/bidding-hub/1HGCM82633A100030", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for NEW car, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/api/v1/bidding-hub/1HGCM82633A100032", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for WON car, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/api/v1/bidding-hub/1HGCM82633A100031", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for TO_BID car, got %d", w.Code)
	}

	var reloaded models.Car
	db.Where("vin = ?", "1HGCM82633A100031").First(&reloaded)
	if reloaded.CarStatus != models.CarStatusDeletedHub {
		t.Fatalf("expected soft delete, got %s", reloaded.CarStatus)
	}
}

func TestInventoryEndpoints(t *testing.T) {
	router, db := setupTestAPI(t)

	car := models.Car{VIN: "1HGCM82633A100040", Auction: "copart", Make: "Honda", CarStatus: models.CarStatusBidding}
	if err := db.Create(&car).Error; err != nil {
		t.Fatalf("failed to seed car: %v", err)
	}
	bid := 8000.0
	if _, err := services.ChangeCarStatus(db, car.VIN, models.CarStatusWon, &bid); err != nil {
		t.Fatalf("failed to win car: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/inventories", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var inventories []models.CarInventory
	json.Unmarshal(w.Body.Bytes(), &inventories)
	if len(inventories) != 1 {
		t.Fatalf("expected 1 inventory, got %d", len(inventories))
	}
	invID := inventories[0].ID

	w = doJSON(t, router, http.MethodPost, "/api/v1/inventories/1/investments", InvestmentRequest{Description: "transport", Cost: 500})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	sold := models.InventorySold
	sale := 12000.0
	w = doJSON(t, router, http.MethodPatch, "/api/v1/inventories/1", InventoryUpdateRequest{Status: &sold, SalePrice: &sale})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var inv models.CarInventory
	json.Unmarshal(w.Body.Bytes(), &inv)
	if inv.ID != invID || inv.Status != models.InventorySold {
		t.Fatalf("unexpected inventory: %+v", inv)
	}
	if inv.TotalInvestments != 8500 || inv.ActualProfit == nil || *inv.ActualProfit != 3500 {
		t.Fatalf("unexpected rollups: %+v", inv)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/v1/inventories/99", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown inventory, got %d", w.Code)
	}
}
