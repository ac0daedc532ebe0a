package events

// placeholderVIN is what some parsers emit when a listing page carried
// no readable VIN.
const placeholderVIN = "00000000000000000"

// UsableVIN reports whether a raw VIN value carries information.
func UsableVIN(vin string) bool {
	return vin != "" && vin != placeholderVIN
}

// ExtractVINFromEvent attempts to extract a usable VIN from known
// locations within a parser webhook event structure.
// It returns the VIN and true if found, otherwise an empty string and false.
func ExtractVINFromEvent(event map[string]interface{}) (string, bool) {
	// 1. Check the top-level "vin" field
	if vin, ok := event["vin"].(string); ok && UsableVIN(vin) {
		return vin, true
	}

	// 2. Check "vehicle.vin"
	if vehicle, hasVehicle := event["vehicle"].(map[string]interface{}); hasVehicle {
		if vin, ok := vehicle["vin"].(string); ok && UsableVIN(vin) {
			return vin, true
		}
	}

	// 3. Check "listings" (first usable entry wins)
	if listings, hasListings := event["listings"].([]interface{}); hasListings {
		for _, listing := range listings {
			if listingMap, ok := listing.(map[string]interface{}); ok {
				if vin, vinOk := listingMap["vin"].(string); vinOk && UsableVIN(vin) {
					return vin, true
				}
			}
		}
	}

	// If we reach here, no usable VIN was found
	return "", false
}

// ExtractAuctionFromEvent pulls the auction source name out of a parser
// webhook event, when present.
func ExtractAuctionFromEvent(event map[string]interface{}) (string, bool) {
	if auction, ok := event["auction"].(string); ok && auction != "" {
		return auction, true
	}
	if source, ok := event["source"].(string); ok && source != "" {
		return source, true
	}
	return "", false
}
