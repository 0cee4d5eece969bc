package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ETA estimates the time remaining as elapsed/checked * (total-checked).
// It is undefined when nothing has been checked or the total is unknown.
func ETA(elapsed time.Duration, checked, total int) (time.Duration, bool) {
	if checked <= 0 || total <= 0 {
		return 0, false
	}
	remaining := total - checked
	if remaining <= 0 {
		return 0, true
	}
	per := float64(elapsed) / float64(checked)
	return time.Duration(per * float64(remaining)), true
}

// FormatClock renders d as hh:mm:ss. Hours grow past 99 when needed.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// FormatStatus renders the one-line run status.
func FormatStatus(snap Snapshot) string {
	total := "?"
	if snap.TotalKnown() {
		total = humanize.Comma(int64(snap.Total))
	}
	parts := []string{
		fmt.Sprintf("Checked %s/%s", humanize.Comma(int64(snap.Checked)), total),
		"Available " + humanize.Comma(int64(snap.Available)),
		"Errors " + humanize.Comma(int64(snap.Errors)),
		"Elapsed " + FormatClock(snap.Elapsed),
	}
	if snap.ETAKnown {
		parts = append(parts, "ETA "+FormatClock(snap.ETA))
	}
	return strings.Join(parts, " | ")
}
