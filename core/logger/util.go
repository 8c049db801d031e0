package logger

import (
	"fmt"
	"strings"
	"time"
)

// RoundMS rounds d to milliseconds. Negative durations log as zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Took is RoundMS(time.Since(start)).
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// Preview joins at most limit values for a log attribute. A cut list ends
// with "+N" and cut reports true. limit <= 0 keeps every value.
func Preview(values []string, limit int) (preview string, cut bool) {
	if limit <= 0 || len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return fmt.Sprintf("%s, +%d", strings.Join(values[:limit], ", "), len(values)-limit), true
}
