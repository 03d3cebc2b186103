package domain

import "math"

// JPY converts a USD amount to a whole-yen figure at the configured fixed rate.
func JPY(usd float64, rate int) int64 {
	return int64(math.Round(usd * float64(rate)))
}
