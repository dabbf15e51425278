package utils

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders a punishment duration for player-facing messages.
// Negative durations mean permanent. The largest whole unit is used, with
// a smaller remainder unit when it is non-zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "permanent"
	}

	if d < time.Minute {
		return "moments"
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%s %s", plural(days, "day"), plural(hours, "hour"))
	case days > 0:
		return plural(days, "day")
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%s %s", plural(hours, "hour"), plural(minutes, "minute"))
	case hours > 0:
		return plural(hours, "hour")
	default:
		return plural(minutes, "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}

	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatMessage substitutes {key} placeholders in a message template.
// Unknown placeholders are left verbatim.
func FormatMessage(template string, values map[string]string) string {
	result := template
	for key, value := range values {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}

	return result
}
