package cli

import (
	"fmt"
	"time"
)

// FormatDuration prints clip lengths and run times: "850ms", "4.2s",
// "3m5s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// FormatBytes prints a size with binary units: "512 B", "1.5 KiB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}

// FormatPercent prints a probability in [0, 1] as a percentage.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// FormatLevel prints a loudness in dBFS.
func FormatLevel(db float64) string {
	return fmt.Sprintf("%.1f dBFS", db)
}
