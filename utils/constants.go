package utils

// Upload and template constraints
const (
	// MaxUploadBytes is the upload ceiling for scanned documents (10 MB)
	MaxUploadBytes = 10 * 1024 * 1024

	// MaxTemplateLength is the maximum message template length in characters
	MaxTemplateLength = 1000
)

// Telemetry constants
const (
	// LogRingCapacity is the number of log entries retained for display
	LogRingCapacity = 50
)

// Mobile number constants
const (
	// CountryPrefix is the dialing prefix stripped from 12-digit numbers
	CountryPrefix = "91"
)

// Sentinel mobile values produced by the extraction service for
// missing or unreadable handwritten numbers.
const (
	MobileMissing = "N/A"
	MobileUnclear = "UNCLEAR"
	MobileNaN     = "nan"
)
