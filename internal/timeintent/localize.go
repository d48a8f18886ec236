package timeintent

import "time"

// displayLayout mirrors the "YYYY-MM-DD at HH:MM" shape users see in
// confirmations, but 12-hour with the zone abbreviation so transitions
// between standard and daylight offsets are visible.
const displayLayout = "2006-01-02 at 3:04 PM MST"

// Localize formats an absolute instant as local wall-clock text in loc.
// The zone's offset rules are applied as of the instant itself, so a
// reminder created in winter and firing in summer shows the summer offset.
func Localize(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}
