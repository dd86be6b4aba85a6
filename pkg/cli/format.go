package cli

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders d as "250ms", "1.5s" or "1m30.0s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := d / time.Minute
	rest := d - m*time.Minute
	return fmt.Sprintf("%dm%.1fs", m, rest.Seconds())
}

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes renders n with binary units, e.g. "2.00 KB".
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[unit])
}

// MaskAPIKey keeps the first and last four characters of key. Keys of
// eight characters or fewer are masked entirely.
func MaskAPIKey(key string) string {
	const keep = 4
	if len(key) <= 2*keep {
		return strings.Repeat("*", len(key))
	}
	return key[:keep] + strings.Repeat("*", len(key)-2*keep) + key[len(key)-keep:]
}
