package utils

import (
	"bytes"
	"strings"
)

// NormalizeVIN upper-cases and trims a VIN so lookups are case-insensitive.
func NormalizeVIN(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// NewRequestBuffer creates a new *bytes.Buffer from a byte slice
func NewRequestBuffer(data []byte) *bytes.Buffer {
	return bytes.NewBuffer(data)
}
