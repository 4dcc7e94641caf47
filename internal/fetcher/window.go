package fetcher

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// TargetDate returns the last publishing day before today: Friday when
// today is a Monday, yesterday otherwise.
func TargetDate(today time.Time) time.Time {
	if today.Weekday() == time.Monday {
		return today.AddDate(0, 0, -3)
	}
	return today.AddDate(0, 0, -1)
}

// ApplyWindow keeps the leading entries submitted on target. Entries are
// expected newest first, so the first entry from another day ends the
// window: it and everything after it are dropped and crossed is true.
func ApplyWindow(entries []FeedEntry, target time.Time) (matched []FeedEntry, crossed bool) {
	day := target.Format(dateLayout)
	for i, e := range entries {
		if !strings.Contains(e.Published, day) {
			return entries[:i:i], true
		}
	}
	return entries, false
}
