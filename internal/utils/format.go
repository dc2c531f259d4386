package utils

import (
	"fmt"
	"strings"
	"time"

	"idlegate/internal/constants"
)

func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours == 0 {
		if minutes == 0 {
			return fmt.Sprintf("%d seconds", int(d.Seconds()))
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if minutes == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	if hours == 1 {
		return fmt.Sprintf("1 hour %d minutes", minutes)
	}
	return fmt.Sprintf("%d hours %d minutes", hours, minutes)
}

// FormatCountdown renders whole seconds as m:ss.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatLog returns a standardized log line for the terminal tab.
// If emoji is empty, it is selected from the phase.
func FormatLog(emoji string, phase string, detail string) string {
	if emoji == "" {
		switch phase {
		case "active":
			emoji = "🟢"
		case "warning":
			emoji = "⏳"
		case "logged_out":
			emoji = "🔒"
		default:
			emoji = "📥"
		}
	}

	return fmt.Sprintf("  %s %s%s %s %s%s\n",
		emoji,
		constants.ColorDim,
		time.Now().Format(constants.TimeFormatShort),
		strings.ToUpper(phase),
		detail,
		constants.ColorReset,
	)
}
