package utils

import (
	"fmt"
	"log"
	"strings"
	"time"

	"campsite/config"
)

// Date formats used in audit notes.
const (
	NoteDateFormat            = "2006-01-02 15:04"
	NoteDateFormatWithSeconds = "2006-01-02 15:04:05"
)

var siteLocation *time.Location

// SiteLocation returns the civil timezone all booking times live in.
func SiteLocation() *time.Location {
	if siteLocation == nil {
		loc, err := time.LoadLocation(config.AppConfig.Timezone)
		if err != nil {
			log.Fatalf("Failed to load timezone %q: %v", config.AppConfig.Timezone, err)
		}
		siteLocation = loc
	}
	return siteLocation
}

// NowLocal returns the current time in the site timezone.
func NowLocal() time.Time {
	return time.Now().In(SiteLocation())
}

// NoteTimestamp formats a time for use in audit notes. Zero values fall back
// to the current time.
func NoteTimestamp(t time.Time, includeSeconds bool) string {
	if t.IsZero() {
		t = NowLocal()
	}
	format := NoteDateFormat
	if includeSeconds {
		format = NoteDateFormatWithSeconds
	}
	return t.In(SiteLocation()).Format(format)
}

// PrettyDate renders a time as e.g. "23rd June 18:00", appending the year
// only when it differs from the current one.
func PrettyDate(t time.Time) string {
	t = t.In(SiteLocation())

	day := t.Day()
	suffix := "th"
	switch {
	case day >= 11 && day <= 13:
		suffix = "th"
	case day%10 == 1:
		suffix = "st"
	case day%10 == 2:
		suffix = "nd"
	case day%10 == 3:
		suffix = "rd"
	}

	dateStr := fmt.Sprintf("%d%s %s", day, suffix, t.Format("January"))
	if t.Year() != NowLocal().Year() {
		dateStr += fmt.Sprintf(" %d", t.Year())
	}
	return fmt.Sprintf("%s %s", dateStr, t.Format("15:04"))
}

// SecsToHuman converts a number of seconds into a string like "1d 3h 45m 59s".
func SecsToHuman(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	m, s := seconds/60, seconds%60
	h, m := m/60, m%60
	d, h := h/24, h%24

	var parts []string
	if d > 0 {
		parts = append(parts, fmt.Sprintf("%dd", d))
	}
	if h > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s))

	return strings.Join(parts, " ")
}
