package utils

import (
	"time"
)

// CET is the Central European Time location the ECB publishes in.
var CET *time.Location

func init() {
	var err error
	CET, err = time.LoadLocation("Europe/Berlin")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		CET = time.FixedZone("CET", 1*60*60)
	}
}

// NowCET returns the current time in CET.
func NowCET() time.Time {
	return time.Now().In(CET)
}

// ToCET converts a time.Time to CET.
func ToCET(t time.Time) time.Time {
	return t.In(CET)
}

// TodayCET returns the current calendar date on the CET clock, normalized
// to UTC midnight so it compares directly against feed dates.
func TodayCET() time.Time {
	y, m, d := NowCET().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a date string in "2006-01-02" format as a zone-less
// calendar date (UTC midnight).
func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// FormatDate formats a time.Time to "2006-01-02".
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDateTimeCET formats a time.Time to "2006-01-02 15:04:05 CET".
func FormatDateTimeCET(t time.Time) string {
	return t.In(CET).Format("2006-01-02 15:04:05 MST")
}

// PublicationHourCET is the hour (CET) around which the ECB posts the
// daily reference rates.
const PublicationHourCET = 16

// IsPublicationDay checks if the ECB publishes reference rates on the
// given date (weekends and TARGET closing days are skipped).
func IsPublicationDay(t time.Time) bool {
	t = t.In(CET)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsTargetClosingDay(t)
}

// NextPublicationDay returns the next date the feed is expected to carry.
// If the given date is a publication day, it returns the next one.
func NextPublicationDay(from time.Time) time.Time {
	next := from.In(CET).AddDate(0, 0, 1)
	for !IsPublicationDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// IsTargetClosingDay checks if the given date is a TARGET closing day.
func IsTargetClosingDay(t time.Time) bool {
	t = t.In(CET)
	dateStr := t.Format("2006-01-02")

	_, closed := targetClosingDays2026[dateStr]
	return closed
}

// TARGET closing days for 2026 (update annually).
// Source: ECB/Eurosystem calendar.
var targetClosingDays2026 = map[string]string{
	"2026-01-01": "New Year's Day",
	"2026-04-03": "Good Friday",
	"2026-04-06": "Easter Monday",
	"2026-05-01": "Labour Day",
	"2026-12-25": "Christmas Day",
	"2026-12-26": "Christmas Holiday",
}

// PublicationStatus returns a short status of the publisher's daily cycle.
func PublicationStatus() string {
	now := NowCET()

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}

	if IsTargetClosingDay(now) {
		holiday := targetClosingDays2026[now.Format("2006-01-02")]
		return "CLOSED (" + holiday + ")"
	}

	if now.Hour() < PublicationHourCET {
		return "AWAITING PUBLICATION"
	}
	return "PUBLISHED"
}
