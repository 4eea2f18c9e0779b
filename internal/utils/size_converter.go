package utils

import (
	"fmt"
	"math"
)

// SizeFormat converts a number of bytes into a human-readable string.
// A size of zero renders as "---" since it means "unknown" for downloads.
func SizeFormat(size int64) string {
	if size == 0 {
		return "---"
	}

	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d bytes", size)
	}

	exp := int64(math.Log(float64(size)) / math.Log(unit))
	pre := "KMGTPE"[exp-1]
	return fmt.Sprintf("%.1f %cB", float64(size)/math.Pow(unit, float64(exp)), pre)
}

// TimeFormat renders a duration in seconds as a rough human estimate.
// Negative values mean "unknown" and render as "---".
func TimeFormat(seconds float64) string {
	if seconds < 0 {
		return "---"
	}

	switch {
	case seconds <= 60:
		return fmt.Sprintf("%d seconds", int(math.Round(seconds)))
	case seconds <= 3600:
		return fmt.Sprintf("%d minutes", int(math.Round(seconds/60)))
	case seconds <= 86400:
		return fmt.Sprintf("%.1f hours", seconds/3600)
	case seconds <= 2592000:
		return fmt.Sprintf("%.1f days", seconds/86400)
	default:
		return fmt.Sprintf("%.1f months", seconds/2592000)
	}
}
