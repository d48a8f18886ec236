package timeintent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Grammar order matters: ISO first (most specific), then relative phrases,
// then wall-clock phrases. First match wins; a string that enters a branch
// and fails validation does not fall through to the next branch.
var (
	isoLikeRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]`)
	relativeRe = regexp.MustCompile(`^in\s+(-?\d+)\s+(second|minute|hour|day)s?$`)
	clockRe    = regexp.MustCompile(`^at\s+(\d{1,2})(?::(\d{2}))?(?:\s*(am|pm))?$`)
)

// Naive layouts (no offset, no Z) are interpreted as already being in UTC.
// Offset ambiguity is the upstream caller's problem; guessing the display
// zone here would make the same string mean different instants on different
// deployments.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Resolve converts an intent string into an absolute UTC instant.
//
// ref is the reference instant for relative and wall-clock phrases. display
// is the zone in which wall-clock phrases are interpreted; nil means UTC.
// Failures are *ResolveError values carrying a machine-readable Kind.
func Resolve(intent string, ref time.Time, display *time.Location) (time.Time, error) {
	if display == nil {
		display = time.UTC
	}
	raw := strings.TrimSpace(intent)
	if raw == "" {
		return time.Time{}, newErr(KindUnrecognized, intent, "empty intent")
	}
	norm := strings.ToLower(strings.Join(strings.Fields(raw), " "))

	if isoLikeRe.MatchString(raw) {
		return resolveISO(raw)
	}
	if m := relativeRe.FindStringSubmatch(norm); m != nil {
		return resolveRelative(raw, m, ref)
	}
	if m := clockRe.FindStringSubmatch(norm); m != nil {
		return resolveClock(raw, m, ref, display)
	}
	return time.Time{}, newErr(KindUnrecognized, raw, "no known time grammar matched")
}

func resolveISO(raw string) (time.Time, error) {
	for _, layout := range isoLayouts {
		// ParseInLocation only applies UTC to naive layouts; offset-bearing
		// layouts keep their own zone and convert cleanly.
		t, err := time.ParseInLocation(layout, raw, time.UTC)
		if err != nil {
			continue
		}
		return t.UTC(), nil
	}
	return time.Time{}, newErr(KindMalformedISO, raw, "ISO-8601 syntax but invalid timestamp")
}

func resolveRelative(raw string, m []string, ref time.Time) (time.Time, error) {
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return time.Time{}, newErr(KindOutOfRange, raw, "count must be a positive integer")
	}
	var unit time.Duration
	switch m[2] {
	case "second":
		unit = time.Second
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		// Canonical base has no DST, so a day is exactly 24h of absolute time.
		unit = 24 * time.Hour
	}
	// Durations are int64 nanoseconds; an unchecked product wraps and would
	// resolve a valid-looking intent to an instant in the past.
	if int64(n) > math.MaxInt64/int64(unit) {
		return time.Time{}, newErr(KindOutOfRange, raw, "count too large")
	}
	return ref.Add(time.Duration(n) * unit).UTC(), nil
}

func resolveClock(raw string, m []string, ref time.Time, display *time.Location) (time.Time, error) {
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := m[3]

	if minute > 59 {
		return time.Time{}, newErr(KindOutOfRange, raw, "minute must be 00-59")
	}

	switch meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return time.Time{}, newErr(KindOutOfRange, raw, "12-hour clock hour must be 1-12")
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "pm" {
			hour += 12
		}
	default:
		if m[2] == "" {
			// "at 3" could mean 03:00 or 15:00; refuse to guess.
			return time.Time{}, newErr(KindAmbiguousMeridiem, raw, "12-hour time needs AM or PM")
		}
		if hour > 23 {
			return time.Time{}, newErr(KindOutOfRange, raw, "24-hour clock hour must be 0-23")
		}
	}

	// Interpret the wall-clock time on the reference date in the display zone.
	// A target at or before the reference instant means "tomorrow"; the
	// roll-forward happens in display-zone calendar days so DST transitions
	// keep the requested wall-clock time.
	local := ref.In(display)
	y, mo, d := local.Date()
	target := time.Date(y, mo, d, hour, minute, 0, 0, display)
	if !target.After(ref) {
		target = time.Date(y, mo, d+1, hour, minute, 0, 0, display)
	}
	return target.UTC(), nil
}
