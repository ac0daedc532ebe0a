package events

import "testing"

func TestExtractVINFromEvent(t *testing.T) {
	vin, ok := ExtractVINFromEvent(map[string]interface{}{"vin": "1HGCM82633A004352"})
	if !ok || vin != "1HGCM82633A004352" {
		t.Fatalf("expected top-level vin, got %q ok=%v", vin, ok)
	}

	vin, ok = ExtractVINFromEvent(map[string]interface{}{
		"vehicle": map[string]interface{}{"vin": "1HGCM82633A004353"},
	})
	if !ok || vin != "1HGCM82633A004353" {
		t.Fatalf("expected nested vehicle vin, got %q ok=%v", vin, ok)
	}

	vin, ok = ExtractVINFromEvent(map[string]interface{}{
		"listings": []interface{}{
			map[string]interface{}{"vin": ""},
			map[string]interface{}{"vin": "1HGCM82633A004354"},
		},
	})
	if !ok || vin != "1HGCM82633A004354" {
		t.Fatalf("expected first usable listing vin, got %q ok=%v", vin, ok)
	}
}

func TestExtractVINFromEventRejectsPlaceholder(t *testing.T) {
	if vin, ok := ExtractVINFromEvent(map[string]interface{}{"vin": placeholderVIN}); ok {
		t.Fatalf("placeholder VIN must be rejected, got %q", vin)
	}
	if vin, ok := ExtractVINFromEvent(map[string]interface{}{"vin": ""}); ok {
		t.Fatalf("empty VIN must be rejected, got %q", vin)
	}
	if vin, ok := ExtractVINFromEvent(map[string]interface{}{}); ok {
		t.Fatalf("missing VIN must be rejected, got %q", vin)
	}
}

func TestUsableVIN(t *testing.T) {
	if !UsableVIN("1HGCM82633A004352") {
		t.Fatalf("expected real VIN usable")
	}
	if UsableVIN("") || UsableVIN(placeholderVIN) {
		t.Fatalf("expected empty and placeholder VINs unusable")
	}
}

func TestExtractAuctionFromEvent(t *testing.T) {
	auction, ok := ExtractAuctionFromEvent(map[string]interface{}{"auction": "copart"})
	if !ok || auction != "copart" {
		t.Fatalf("expected auction field, got %q ok=%v", auction, ok)
	}

	auction, ok = ExtractAuctionFromEvent(map[string]interface{}{"source": "iaai"})
	if !ok || auction != "iaai" {
		t.Fatalf("expected source fallback, got %q ok=%v", auction, ok)
	}

	if auction, ok := ExtractAuctionFromEvent(map[string]interface{}{}); ok {
		t.Fatalf("expected no auction, got %q", auction)
	}
}
