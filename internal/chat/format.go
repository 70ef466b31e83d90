package chat

import (
	"fmt"
	"time"
)

// FormatRelative renders t as a short age relative to now, for chat lists.
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 48*time.Hour:
		return "Yesterday"
	default:
		return t.Local().Format("Jan 2")
	}
}
