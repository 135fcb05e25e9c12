package clientdata

import "time"

// Cache lifetimes. The TTL is added to the store time to get expires_at;
// an entry is also stale as soon as a newer bar exists.
const (
	TTLPriceSeries       = 36 * time.Hour
	TTLIndicatorSnapshot = 36 * time.Hour

	// StaleBarAge bounds how old an entry's last bar may be before cleanup
	// drops it regardless of expires_at.
	StaleBarAge = 14 * 24 * time.Hour
)
