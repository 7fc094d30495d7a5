package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// qatarZone is the fixed UTC+3 offset used for every timestamp the pipeline
// produces. Qatar observes no daylight saving, so a fixed zone is correct
// year round and keeps output independent of the host timezone.
var qatarZone = time.FixedZone("AST", 3*60*60)

// dateLayouts are tried in order when parsing a date string. Day-first
// layouts come before month-first, matching how the sources format dates.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
}

// dateRangeSeparators are tried in order when splitting a date range.
var dateRangeSeparators = []string{" to ", " - ", " until ", " through "}

// schedulePlaceholders are schedule values that mean "not yet known".
// Records carrying one resolve to null timestamps instead of a guess.
var schedulePlaceholders = map[string]bool{
	"TBA":              true,
	"TBD":              true,
	"TO BE ANNOUNCED":  true,
	"TO BE DETERMINED": true,
	"N/A":              true,
}

// IsSchedulePlaceholder reports whether a date or time value is a
// placeholder rather than a parseable schedule.
func IsSchedulePlaceholder(value string) bool {
	return schedulePlaceholders[strings.ToUpper(strings.TrimSpace(value))]
}

// ParseTimeToMinutes converts a clock string such as "2:30 PM" or "18:00"
// to minutes since midnight. Returns 0 when the string cannot be parsed;
// callers treat 0 as "no time found", which also makes an explicit 12:00 AM
// indistinguishable from a parse failure.
func ParseTimeToMinutes(timeStr string) int {
	timeStr = strings.ToUpper(strings.TrimSpace(timeStr))
	if timeStr == "" || schedulePlaceholders[timeStr] {
		return 0
	}

	var layouts []string
	if strings.Contains(timeStr, "AM") || strings.Contains(timeStr, "PM") {
		layouts = []string{"3:04 PM", "3 PM", "3:04PM", "3PM"}
	} else {
		layouts = []string{"15:04", "15:04:05", "15"}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return t.Hour()*60 + t.Minute()
		}
	}

	// Last resort: a bare HH:MM split for strings the layouts reject.
	if parts := strings.Split(timeStr, ":"); len(parts) == 2 {
		hour, errH := strconv.Atoi(strings.TrimSpace(parts[0]))
		minute, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errH == nil && errM == nil {
			return hour*60 + minute
		}
	}

	return 0
}

// ExtractDateRange parses a date string into start and end dates in Qatar
// time. A single date yields identical start and end; an unparseable string
// yields two zero times.
func ExtractDateRange(dateStr string) (time.Time, time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, time.Time{}, false
	}

	if !strings.Contains(dateStr, " to ") && !strings.Contains(dateStr, " - ") {
		if d, ok := parseDate(dateStr); ok {
			return d, d, true
		}
		return time.Time{}, time.Time{}, false
	}

	for _, sep := range dateRangeSeparators {
		if !strings.Contains(dateStr, sep) {
			continue
		}
		parts := strings.SplitN(dateStr, sep, 2)
		if len(parts) != 2 {
			continue
		}
		start, okStart := parseDate(strings.TrimSpace(parts[0]))
		end, okEnd := parseDate(strings.TrimSpace(parts[1]))
		if okStart && okEnd {
			return start, end, true
		}
	}

	return time.Time{}, time.Time{}, false
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, s, qatarZone); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

var (
	// "4:30 pm - 5:30 pm", also with an en-dash
	timeRange12hPattern = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*(?:am|pm))\s*[-–]\s*(\d{1,2}:\d{2}\s*(?:am|pm))`)
	// "18:00 - 20:00"
	timeRange24hPattern = regexp.MustCompile(`(\d{1,2}:\d{2})\s*[-–]\s*(\d{1,2}:\d{2})`)
	// any single clock value, with or without minutes
	singleTimePattern = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*(?:am|pm))|(\d{1,2}\s*(?:am|pm))`)
)

// ExtractTimeRange pulls a usable start and optional end time out of a
// free-text schedule. Sources emit anything from a clean "4:30 pm - 6 pm"
// to multi-day listings like "4:30 pm - 5:30 pm / 6:30 pm - 7:30 pm
// (Friday), ..."; the first recognizable range or time wins.
func ExtractTimeRange(timeStr string) (start, end string) {
	timeStr = strings.TrimSpace(timeStr)
	if timeStr == "" {
		return "", ""
	}

	if m := timeRange12hPattern.FindStringSubmatch(timeStr); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := timeRange24hPattern.FindStringSubmatch(timeStr); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}

	lower := strings.ToLower(timeStr)
	if strings.Contains(lower, "onwards") || strings.Contains(lower, "from") {
		if m := singleTimePattern.FindString(timeStr); m != "" {
			return strings.TrimSpace(m), ""
		}
	}
	if strings.Contains(timeStr, "&") || strings.Contains(timeStr, "/") {
		if m := singleTimePattern.FindString(timeStr); m != "" {
			return strings.TrimSpace(m), ""
		}
	}
	if m := singleTimePattern.FindString(timeStr); m != "" {
		return strings.TrimSpace(m), ""
	}

	return "", ""
}

// recurrenceTerms mark descriptions of events that repeat on a weekly
// schedule. Their timestamps still come from the stated date range; the
// terms only flag the record for logging.
var recurrenceTerms = []string{"weekdays", "weekends", "sunday to thursday", "friday & saturday"}

// HasRecurringSchedule reports whether a description indicates a weekly
// repeating schedule.
func HasRecurringSchedule(description string) bool {
	lower := strings.ToLower(description)
	for _, term := range recurrenceTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// ResolveTimestamps computes startTimestamp and endTimestamp (Unix seconds)
// from free-text date and time values. Both come back nil when either value
// is a placeholder, when either is empty, or when nothing parseable is
// found. A start requires a nonzero minutes-of-day; an end additionally
// requires a parsed end time.
func ResolveTimestamps(dateStr, timeStr string) (startTS, endTS *int64) {
	if dateStr == "" || timeStr == "" {
		return nil, nil
	}
	if IsSchedulePlaceholder(dateStr) || IsSchedulePlaceholder(timeStr) {
		return nil, nil
	}

	startDate, endDate, ok := ExtractDateRange(dateStr)
	if !ok {
		return nil, nil
	}

	startTimeStr, endTimeStr := ExtractTimeRange(timeStr)
	if startTimeStr == "" {
		// Pattern extraction found nothing; fall back to a plain
		// "start - end" split for formats like "6 PM - 9 PM".
		parts := strings.Split(timeStr, " - ")
		startTimeStr = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			endTimeStr = strings.TrimSpace(parts[1])
		}
	}

	startMinutes := ParseTimeToMinutes(startTimeStr)
	endMinutes := 0
	if endTimeStr != "" {
		endMinutes = ParseTimeToMinutes(endTimeStr)
	}

	if startMinutes > 0 {
		ts := atMinutes(startDate, startMinutes).Unix()
		startTS = &ts
	}
	if endTimeStr != "" && endMinutes > 0 {
		ts := atMinutes(endDate, endMinutes).Unix()
		endTS = &ts
	}
	return startTS, endTS
}

// atMinutes places a minutes-since-midnight clock value on a date in Qatar
// time.
func atMinutes(date time.Time, minutes int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, qatarZone)
}

const scheduleNoteLabel = "Schedule:"

// AppendScheduleNote adds the original free-text schedule to a description
// so the raw tier stays self-describing. No-op when the note is already
// present or the schedule is incomplete.
func AppendScheduleNote(description, dateStr, timeStr string) string {
	if dateStr == "" || timeStr == "" {
		return description
	}
	note := fmt.Sprintf("%s %s %s", scheduleNoteLabel, dateStr, timeStr)
	if strings.Contains(description, note) {
		return description
	}
	return description + "\n\n" + note
}

// StripScheduleNote removes a schedule note and trailing whitespace from a
// description. Descriptions that begin with the note are left untouched so
// stripping never empties them.
func StripScheduleNote(description string) string {
	pos := strings.Index(description, scheduleNoteLabel)
	if pos <= 0 {
		return description
	}
	return strings.TrimRight(description[:pos], " \n\t")
}
