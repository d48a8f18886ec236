package timeintent

import (
	"testing"
	"time"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q): %v", name, err)
	}
	return loc
}

func TestResolveRelative(t *testing.T) {
	t.Parallel()
	ref := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		intent string
		want   time.Time
	}{
		{name: "seconds", intent: "in 45 seconds", want: ref.Add(45 * time.Second)},
		{name: "singular second", intent: "in 1 second", want: ref.Add(time.Second)},
		{name: "minutes", intent: "in 30 minutes", want: ref.Add(30 * time.Minute)},
		{name: "hours", intent: "in 2 hours", want: ref.Add(2 * time.Hour)},
		{name: "days", intent: "in 3 days", want: ref.Add(72 * time.Hour)},
		{name: "month rollover", intent: "in 24 hours", want: time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)},
		{name: "spacing and case", intent: "  In   2   Hours ", want: ref.Add(2 * time.Hour)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(tt.intent, ref, time.UTC)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.intent, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Resolve(%q) = %v, want %v", tt.intent, got, tt.want)
			}
		})
	}
}

func TestResolveRelativeYearBoundary(t *testing.T) {
	t.Parallel()
	ref := time.Date(2025, 12, 31, 23, 30, 0, 0, time.UTC)
	got, err := Resolve("in 1 hour", ref, time.UTC)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveISO(t *testing.T) {
	t.Parallel()
	ref := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		intent string
		want   time.Time
	}{
		{
			name:   "utc suffix",
			intent: "2025-12-28T15:30:00Z",
			want:   time.Date(2025, 12, 28, 15, 30, 0, 0, time.UTC),
		},
		{
			name:   "explicit offset",
			intent: "2025-12-28T15:30:00+01:00",
			want:   time.Date(2025, 12, 28, 14, 30, 0, 0, time.UTC),
		},
		{
			name:   "naive is canonical base",
			intent: "2025-12-28T15:30:00",
			want:   time.Date(2025, 12, 28, 15, 30, 0, 0, time.UTC),
		},
		{
			name:   "space separator",
			intent: "2025-12-28 15:30:00",
			want:   time.Date(2025, 12, 28, 15, 30, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(tt.intent, ref, time.UTC)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.intent, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Resolve(%q) = %v, want %v", tt.intent, got, tt.want)
			}
		})
	}
}

// Offset-bearing ISO strings must resolve to the same instant regardless of
// the reference instant supplied.
func TestResolveISOIndependentOfReference(t *testing.T) {
	t.Parallel()
	refs := []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		time.Date(2030, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	lagos := mustZone(t, "Africa/Lagos")
	var first time.Time
	for i, ref := range refs {
		got, err := Resolve("2025-12-28T15:30:00+02:00", ref, lagos)
		if err != nil {
			t.Fatalf("Resolve error: %v", err)
		}
		if i == 0 {
			first = got
			continue
		}
		if !got.Equal(first) {
			t.Fatalf("resolution depends on reference: %v vs %v", got, first)
		}
	}
	want := time.Date(2025, 12, 28, 13, 30, 0, 0, time.UTC)
	if !first.Equal(want) {
		t.Fatalf("resolved %v, want %v", first, want)
	}
}

func TestResolveClockPhrase(t *testing.T) {
	t.Parallel()
	// Reference 14:00 UTC = 15:00 in UTC+1 (Africa/Lagos, no DST).
	lagos := mustZone(t, "Africa/Lagos")
	ref := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		intent string
		want   time.Time
	}{
		{
			name:   "future same day",
			intent: "at 5 PM",
			want:   time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC), // 17:00+01
		},
		{
			name:   "exact match rolls to next day",
			intent: "at 3 PM",
			want:   time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		},
		{
			name:   "past time rolls to next day",
			intent: "at 9 AM",
			want:   time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			name:   "24-hour with minutes",
			intent: "at 15:30",
			want:   time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
		},
		{
			name:   "12-hour with minutes",
			intent: "at 4:45 pm",
			want:   time.Date(2025, 6, 1, 15, 45, 0, 0, time.UTC),
		},
		{
			name:   "midnight",
			intent: "at 12 AM",
			want:   time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC), // 00:00+01 next day
		},
		{
			name:   "noon rolls forward",
			intent: "at 12 PM",
			want:   time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(tt.intent, ref, lagos)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.intent, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Resolve(%q) = %v, want %v", tt.intent, got, tt.want)
			}
		})
	}
}

// Rolling forward across a spring-forward transition must keep the requested
// wall-clock time, not add a flat 24h.
func TestResolveClockPhraseAcrossDSTTransition(t *testing.T) {
	t.Parallel()
	berlin := mustZone(t, "Europe/Berlin")
	// 2025-03-29 20:00 Berlin (CET, +01). Clocks jump forward that night.
	ref := time.Date(2025, 3, 29, 19, 0, 0, 0, time.UTC)

	got, err := Resolve("at 10:00", ref, berlin)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := time.Date(2025, 3, 30, 10, 0, 0, 0, berlin) // CEST, +02
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got.In(berlin), want)
	}
	if got.Sub(ref) == 24*time.Hour {
		t.Fatal("roll-forward added a flat 24h across the DST gap")
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()
	ref := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		intent string
		kind   Kind
	}{
		{name: "gibberish", intent: "sometime soon", kind: KindUnrecognized},
		{name: "empty", intent: "   ", kind: KindUnrecognized},
		{name: "unknown unit", intent: "in 2 fortnights", kind: KindUnrecognized},
		{name: "zero count", intent: "in 0 minutes", kind: KindOutOfRange},
		{name: "negative count", intent: "in -1 hours", kind: KindOutOfRange},
		{name: "day count overflows duration", intent: "in 200000 days", kind: KindOutOfRange},
		{name: "count exceeds int64", intent: "in 99999999999999999999 seconds", kind: KindOutOfRange},
		{name: "missing meridiem", intent: "at 3", kind: KindAmbiguousMeridiem},
		{name: "13 PM", intent: "at 13 PM", kind: KindOutOfRange},
		{name: "zero hour 12h", intent: "at 0 AM", kind: KindOutOfRange},
		{name: "24-hour overflow", intent: "at 24:00", kind: KindOutOfRange},
		{name: "minute overflow", intent: "at 10:75 PM", kind: KindOutOfRange},
		{name: "iso bad month", intent: "2025-13-28T15:30:00Z", kind: KindMalformedISO},
		{name: "iso bad hour", intent: "2025-12-28T25:30:00Z", kind: KindMalformedISO},
		{name: "iso truncated", intent: "2025-12-28T15", kind: KindMalformedISO},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Resolve(tt.intent, ref, time.UTC)
			if err == nil {
				t.Fatalf("Resolve(%q) succeeded, want %s", tt.intent, tt.kind)
			}
			if got := KindOf(err); got != tt.kind {
				t.Fatalf("Resolve(%q) kind = %s, want %s (err: %v)", tt.intent, got, tt.kind, err)
			}
		})
	}
}

// A relative intent that resolves at all must land strictly after the
// reference instant; duration wrap-around would silently break that.
func TestResolveRelativeNeverBeforeReference(t *testing.T) {
	t.Parallel()
	ref := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	for _, intent := range []string{"in 1 second", "in 100000 days", "in 2000000 hours"} {
		got, err := Resolve(intent, ref, time.UTC)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", intent, err)
		}
		if !got.After(ref) {
			t.Fatalf("Resolve(%q) = %v, not after reference %v", intent, got, ref)
		}
	}
}

func TestResolveIsPure(t *testing.T) {
	t.Parallel()
	ref := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	a, err := Resolve("in 2 hours", ref, time.UTC)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	b, err := Resolve("in 2 hours", ref, time.UTC)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("same inputs resolved differently: %v vs %v", a, b)
	}
}
