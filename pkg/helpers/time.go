package helpers

import "time"

// TimestampLayout is the display layout for engine timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp formats a unix timestamp in UTC. Zero formats as "".
func FormatTimestamp(unix int64) string {
	if unix == 0 {
		return ""
	}
	return time.Unix(unix, 0).UTC().Format(TimestampLayout)
}
