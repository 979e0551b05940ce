package transcript

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	msPerMinute = 60 * 1000
	msPerHour   = 60 * msPerMinute
)

// FormatTime renders seconds as MM:SS.mmm, or HH:MM:SS.mmm from one hour on.
// Fractional seconds are truncated to milliseconds. Negative and non-finite
// values format as zero.
func FormatTime(seconds float64) string {
	return FormatDecimal(toDecimal(seconds))
}

// FormatDecimal is FormatTime for exact decimal seconds
func FormatDecimal(seconds decimal.Decimal) string {
	if seconds.Sign() < 0 {
		seconds = decimal.Zero
	}

	ms := seconds.Truncate(3).Shift(3).IntPart()
	hours := ms / msPerHour
	minutes := (ms % msPerHour) / msPerMinute
	secs := ms % msPerMinute

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs/1000, secs%1000)
	}
	return fmt.Sprintf("%02d:%02d.%03d", minutes, secs/1000, secs%1000)
}

// toDecimal uses the shortest decimal representation of f, so 59.999 stays 59.999
func toDecimal(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
