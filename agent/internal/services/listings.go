package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"bidhub/agent/internal/models"
	"bidhub/shared/env"
	"bidhub/shared/types"
	"bidhub/shared/utils"

	"golang.org/x/time/rate"
)

var listingsLimiter = rate.NewLimiter(rate.Limit(4.66), 5)

const (
	vinLength = 17

	minListingYear = 1980
)

// ListingValidation is the outcome of sanity-checking one raw listing
// before it is allowed anywhere near the database.
type ListingValidation struct {
	IsValid     bool
	FailReasons []string
}

// ValidateListing rejects listings that cannot be stored: missing or
// short VIN, unknown auction, implausible year.
func ValidateListing(listing *types.VehicleListing) *ListingValidation {
	result := &ListingValidation{FailReasons: []string{}}

	vin := utils.NormalizeVIN(listing.VIN)
	if len(vin) != vinLength {
		result.FailReasons = append(result.FailReasons, fmt.Sprintf("VIN %q is not %d characters", listing.VIN, vinLength))
	}
	if listing.Auction == "" {
		result.FailReasons = append(result.FailReasons, "auction is empty")
	}
	if listing.Make == "" {
		result.FailReasons = append(result.FailReasons, "make is empty")
	}
	if listing.Year != 0 && (listing.Year < minListingYear || listing.Year > time.Now().Year()+1) {
		result.FailReasons = append(result.FailReasons, fmt.Sprintf("year %d out of range", listing.Year))
	}

	result.IsValid = len(result.FailReasons) == 0
	return result
}

// ConvertListing maps a wire listing onto a Car model plus its condition
// lines. The caller is responsible for merging against any existing row.
func ConvertListing(listing *types.VehicleListing) (*models.Car, []models.ConditionAssessment) {
	car := &models.Car{
		VIN:           utils.NormalizeVIN(listing.VIN),
		LotNumber:     listing.LotNumber,
		Auction:       listing.Auction,
		URL:           listing.URL,
		Make:          listing.Make,
		Model:         listing.Model,
		Year:          listing.Year,
		Odometer:      listing.Odometer,
		FuelType:      listing.FuelType,
		Transmission:  listing.Transmission,
		DriveType:     listing.DriveType,
		BodyStyle:     listing.BodyStyle,
		Engine:        listing.Engine,
		Cylinders:     listing.Cylinders,
		Color:         listing.Color,
		Location:      listing.Location,
		Seller:        listing.Seller,
		Owners:        listing.Owners,
		AccidentCount: listing.AccidentCount,
		IsSalvage:     strings.Contains(strings.ToLower(listing.Document), "salvage"),
		CurrentBid:    listing.CurrentBid,
	}

	switch strings.ToLower(listing.Keys) {
	case "yes":
		yes := true
		car.HasKeys = &yes
	case "no":
		no := false
		car.HasKeys = &no
	}

	if ts, ok := parseListingDate(listing.AuctionDate); ok {
		car.AuctionDate = &ts
	}

	lines := make([]models.ConditionAssessment, 0, len(listing.Conditions))
	for _, cond := range listing.Conditions {
		lines = append(lines, models.ConditionAssessment{Type: cond.Type, Issue: cond.Issue})
	}
	return car, lines
}

// parseListingDate accepts the two formats the parsers emit.
func parseListingDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	log.Printf("WARN: Unparseable auction date %q, ignoring.", raw)
	return time.Time{}, false
}

// FetchListingsFeed pulls the current batch of listings from the feed
// endpoint. Used by the poll path; the webhook path receives the same
// payload pushed.
func FetchListingsFeed() ([]types.VehicleListing, error) {
	if env.ListingsFeedURL == "" {
		return nil, fmt.Errorf("listings feed URL not configured")
	}
	if err := listingsLimiter.Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("listings rate limiter error: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest(http.MethodGet, env.ListingsFeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build listings feed request: %w", err)
	}
	if env.ListingsAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+env.ListingsAuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listings feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Printf("ERROR: Listings feed non-OK status %d. Body: %s", resp.StatusCode, string(bodyBytes))
		return nil, fmt.Errorf("listings feed request failed with status: %s", resp.Status)
	}

	var listings []types.VehicleListing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("listings feed JSON parsing failed: %w", err)
	}
	return listings, nil
}
