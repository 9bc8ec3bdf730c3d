package importer

import "time"

// IsPast reports whether an appointment starting at start is in the past
// relative to now. The comparison is strict: an appointment starting exactly
// at now is still bookable, so it classifies as future.
func IsPast(start, now time.Time) bool {
	return start.Before(now)
}
