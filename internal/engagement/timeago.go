package engagement

import (
	"fmt"
	"time"
)

// TimeAgo renders the short Spanish relative age shown next to comments,
// e.g. "24 min.", "3 h", "2 meses".
func TimeAgo(then, now time.Time) string {
	seconds := int(now.Sub(then) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%d s", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%d min.", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d h", hours)
	}

	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("%d d", days)
	}

	months := days / 30
	if months < 12 {
		if months == 1 {
			return "1 mes"
		}
		return fmt.Sprintf("%d meses", months)
	}

	years := days / 365
	if years <= 1 {
		return "1 año"
	}
	return fmt.Sprintf("%d años", years)
}
