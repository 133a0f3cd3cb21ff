package models

import "strings"

// DeviceCategory identifies the kind of device that recorded a sleep session.
type DeviceCategory string

// Device categories. A single night may be recorded by both.
const (
	DeviceBed     DeviceCategory = "bed"
	DeviceTracker DeviceCategory = "tracker"
)

// deviceKeywords maps lowercased fragments of vendor device/model names to a
// category. Checked in order, first match wins.
var deviceKeywords = []struct {
	fragment string
	category DeviceCategory
}{
	{"sleep analyzer", DeviceBed},
	{"sleep analyser", DeviceBed},
	{"sleep mat", DeviceBed},
	{"aura", DeviceBed},
	{"mat", DeviceBed},
	{"bed", DeviceBed},
	{"scanwatch", DeviceTracker},
	{"steel hr", DeviceTracker},
	{"move", DeviceTracker},
	{"pulse", DeviceTracker},
	{"watch", DeviceTracker},
	{"tracker", DeviceTracker},
	{"wrist", DeviceTracker},
}

// NormalizeDeviceCategory maps a vendor device or model name to a category.
// Returns the category and true if recognized, or "" and false if unknown.
func NormalizeDeviceCategory(raw string) (DeviceCategory, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return "", false
	}
	switch DeviceCategory(lower) {
	case DeviceBed, DeviceTracker:
		return DeviceCategory(lower), true
	}
	for _, kw := range deviceKeywords {
		if strings.Contains(lower, kw.fragment) {
			return kw.category, true
		}
	}
	return "", false
}

// Valid reports whether c is one of the known categories.
func (c DeviceCategory) Valid() bool {
	return c == DeviceBed || c == DeviceTracker
}
