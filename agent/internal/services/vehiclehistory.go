package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"bidhub/shared/env"
	"bidhub/shared/types"
	"bidhub/shared/utils"

	"golang.org/x/time/rate"
)

// The history provider throttles aggressively; stay well under its limit.
var historyLimiter = rate.NewLimiter(rate.Limit(2), 4)

// ErrHistoryLookupFailed marks a lookup the provider itself reported as
// failed; the caller should count an attempt and move on.
var ErrHistoryLookupFailed = errors.New("vehicle history lookup failed")

// FetchVehicleHistory asks the parsers service for valuations, ownership
// and sale history of one VIN.
func FetchVehicleHistory(vin string) (*types.VehicleHistory, error) {
	vin = utils.NormalizeVIN(vin)
	if err := historyLimiter.Wait(context.Background()); err != nil {
		log.Printf("ERROR: History rate limiter wait error for %s: %v", vin, err)
		return nil, fmt.Errorf("rate limiter error for %s: %w", vin, err)
	}

	log.Printf("Fetching vehicle history for VIN: %s", vin)

	url := fmt.Sprintf("%s/api/v1/history/%s", env.ParsersBaseURL, vin)
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history request for %s: %w", vin, err)
	}
	if env.ParsersAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+env.ParsersAuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("ERROR: History API GET request failed for %s: %v", vin, err)
		return nil, fmt.Errorf("history API request failed for %s: %w", vin, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Printf("WARN: Rate limit hit fetching history for %s (Status: %d)", vin, resp.StatusCode)
		return nil, fmt.Errorf("rate limit exceeded (429)")
	} else if resp.StatusCode == http.StatusNotFound {
		log.Printf("INFO: VIN %s not known to the history provider (Status: %d)", vin, resp.StatusCode)
		return nil, fmt.Errorf("%w: VIN not found", ErrHistoryLookupFailed)
	} else if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		errorMsg := fmt.Sprintf("history API request failed for %s with status: %s", vin, resp.Status)
		if readErr == nil && len(bodyBytes) > 0 {
			errorMsg += fmt.Sprintf(". Body: %s", string(bodyBytes))
		}
		log.Printf("ERROR: History API non-OK status for %s: %s", vin, errorMsg)
		return nil, fmt.Errorf("API request failed with status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("ERROR: Error reading history API response body for %s: %v", vin, err)
		return nil, fmt.Errorf("error reading API response for %s: %w", vin, err)
	}

	var history types.VehicleHistory
	if err := json.Unmarshal(body, &history); err != nil {
		log.Printf("ERROR: History JSON parsing failed for %s: %v \nRaw Response: %s", vin, err, string(body))
		return nil, fmt.Errorf("JSON parsing failed for %s: %w", vin, err)
	}

	// The provider signals scrape failures in-band.
	if history.Error != "" {
		log.Printf("WARN: History provider reported failure for %s: %s", vin, history.Error)
		return nil, fmt.Errorf("%w: %s", ErrHistoryLookupFailed, history.Error)
	}

	log.Printf("INFO: Vehicle history fetched for %s - JD: %v, Manheim: %v, DMax: %v, Sales: %d",
		vin, floatPtrStr(history.JDPower), floatPtrStr(history.Manheim), floatPtrStr(history.DMax), len(history.SaleHistory))

	return &history, nil
}

func floatPtrStr(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *f)
}

// FetchAuctionFees pulls the published fee table of one auction from the
// parsers service.
func FetchAuctionFees(auction string) ([]types.FeeRow, error) {
	if err := historyLimiter.Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("rate limiter error for %s fees: %w", auction, err)
	}

	url := fmt.Sprintf("%s/api/v1/fees/%s", env.ParsersBaseURL, auction)
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fees request for %s: %w", auction, err)
	}
	if env.ParsersAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+env.ParsersAuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fees API request failed for %s: %w", auction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fees API request failed for %s with status: %s", auction, resp.Status)
	}

	var rows []types.FeeRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("fees JSON parsing failed for %s: %w", auction, err)
	}
	return rows, nil
}
