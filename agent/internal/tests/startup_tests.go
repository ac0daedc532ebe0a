package tests

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"bidhub/shared/env"
	"bidhub/shared/utils"
)

// RunStartupTests orchestrates all startup checks after server start attempt.
func RunStartupTests() {
	log.Println("--- Running Startup Tests ---")

	port := env.Port
	if port == "" {
		port = "8080"
	}
	baseURL := fmt.Sprintf("http://localhost:%s/api/v1", port)
	healthURL := baseURL + "/health"
	webhookURL := baseURL + "/webhook"
	log.Printf("Using base URL for tests: %s", baseURL)

	initialDelay := 5 * time.Second
	log.Printf("Waiting for initial %v server startup grace period...", initialDelay)
	time.Sleep(initialDelay)

	log.Println("Probing server readiness...")
	serverReady := false
	maxRetries := 15
	retryInterval := 3 * time.Second
	probeClient := &http.Client{Timeout: 5 * time.Second}

	for i := 0; i < maxRetries; i++ {
		log.Printf("Attempt %d/%d: Pinging %s...", i+1, maxRetries, healthURL)
		resp, err := probeClient.Get(healthURL)
		if err != nil {
			log.Printf(" Probe Error (connecting): %v", err)
			log.Println(" Server not ready yet...")
			time.Sleep(retryInterval)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			log.Println(" Server is up!")
			serverReady = true
			resp.Body.Close()
			break
		}
		log.Printf(" Server responded with status %s. Not ready yet...", resp.Status)
		resp.Body.Close()
		time.Sleep(retryInterval)
	}

	if !serverReady {
		log.Println("FATAL: Server did not become ready after probing. Aborting further tests.")
		return
	}

	log.Println("Running Webhook Ingest Test...")
	webhookTestPassed := testListingsWebhookPost(webhookURL)

	log.Println("Testing Parsers API...")
	parsersTestPassed := testParsersAPI()

	allTestsPassed := webhookTestPassed && parsersTestPassed
	if allTestsPassed {
		log.Println("✅ All Startup Tests Passed: Notifying Telegram.")
		sendTelegram("✅ All startup tests passed successfully.")
	} else {
		log.Println("❌ One or more startup tests failed.")
	}

	log.Println("--- Startup Tests Complete ---")
}

// testListingsWebhookPost posts a minimal listing payload at the ingest
// endpoint. The VIN is deliberately malformed so nothing is stored; a 2xx
// acknowledgement is all we check for.
func testListingsWebhookPost(webhookURL string) bool {
	log.Printf(" -> Sending listing POST test to: %s", webhookURL)

	sampleListing := map[string]interface{}{
		"vin":          "STARTUP-TEST",
		"lot_number":   fmt.Sprintf("startup-%d", time.Now().UnixNano()),
		"auction":      "SYSTEM_TEST",
		"make":         "Test",
		"model":        "Probe",
		"year":         2020,
		"odometer":     1,
		"fuel_type":    "Gasoline",
		"transmission": "Automatic",
		"current_bid":  0,
	}

	jsonBody, err := json.Marshal([]map[string]interface{}{sampleListing})
	if err != nil {
		log.Printf("    -> ERROR marshalling test payload: %v", err)
		return false
	}

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if env.IngestAuthHeader != "" {
		headers["Authorization"] = env.IngestAuthHeader
		log.Printf("    -> with Authorization header.")
	}

	if testAPI(webhookURL, "POST", jsonBody, headers) {
		log.Println("    -> Webhook Ingest Test successful!")
		return true
	}
	log.Println("    -> Webhook Ingest Test failed!")
	return false
}

// testAPI is a generic helper for making API calls during tests
func testAPI(url, method string, payload []byte, headers map[string]string) bool {
	req, err := http.NewRequest(method, url, utils.NewRequestBuffer(payload))
	if err != nil {
		log.Printf("    -> ERROR creating request for %s: %v", url, err)
		return false
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("    -> ERROR connecting to %s (%s): %v", url, method, err)
		return false
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		log.Printf("    -> WARN reading response body from %s (%s): %v", url, method, readErr)
	}

	log.Printf("    -> %s [%s] - Status: %s, Resp: %s", method, url, resp.Status, string(body))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// testParsersAPI checks connectivity to the valuation / history provider.
func testParsersAPI() bool {
	log.Printf(" -> Testing Parsers API...")
	baseURL := env.ParsersBaseURL
	if baseURL == "" {
		log.Println("    -> Skipping Parsers API test due to missing base URL")
		return false
	}

	url := fmt.Sprintf("%s/api/v1/health", baseURL)
	headers := map[string]string{"Content-Type": "application/json"}
	if env.ParsersAuthToken != "" {
		headers["Authorization"] = "Bearer " + env.ParsersAuthToken
	}
	if testAPI(url, "GET", nil, headers) {
		log.Println("    -> Parsers API test successful!")
		return true
	}
	log.Println("    -> Parsers API test failed!")
	return false
}

func sendTelegram(message string) {
	botToken := env.TelegramBotToken
	groupIDStr := fmt.Sprintf("%d", env.TelegramGroupID)

	if botToken == "" || groupIDStr == "0" {
		log.Println("Telegram credentials missing or invalid Group ID. Skipping notification.")
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken)
	requestBodyMap := map[string]interface{}{
		"chat_id": groupIDStr,
		"text":    message,
	}
	jsonBody, err := json.Marshal(requestBodyMap)
	if err != nil {
		log.Printf("Failed to marshal Telegram payload: %v", err)
		return
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if testAPI(url, "POST", jsonBody, headers) {
		log.Println("Telegram notification sent.")
	} else {
		log.Println("Failed to send Telegram notification.")
	}
}
