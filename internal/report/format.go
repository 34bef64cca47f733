package report

import "fmt"

// FormatDuration renders seconds as "{h}h {m}m {s}s", or "0s" for zero.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}
	minutes, secs := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
}
