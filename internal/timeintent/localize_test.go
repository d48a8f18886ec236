package timeintent

import (
	"strings"
	"testing"
	"time"
)

func TestLocalize(t *testing.T) {
	t.Parallel()
	lagos := mustZone(t, "Africa/Lagos")
	at := time.Date(2025, 12, 28, 14, 30, 0, 0, time.UTC)

	got := Localize(at, lagos)
	if got != "2025-12-28 at 3:30 PM WAT" {
		t.Fatalf("Localize = %q", got)
	}
}

func TestLocalizeNilZoneDefaultsToUTC(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 12, 28, 14, 30, 0, 0, time.UTC)
	if got := Localize(at, nil); !strings.HasSuffix(got, "UTC") {
		t.Fatalf("Localize with nil zone = %q, want UTC suffix", got)
	}
}

// The zone's offset rules must be applied as of the instant, not as of now:
// the same zone yields different abbreviations on either side of a DST
// transition.
func TestLocalizeAcrossDSTBoundary(t *testing.T) {
	t.Parallel()
	berlin := mustZone(t, "Europe/Berlin")

	winter := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC) // 01:00 CET
	summer := time.Date(2025, 3, 30, 2, 0, 0, 0, time.UTC) // 04:00 CEST

	w := Localize(winter, berlin)
	s := Localize(summer, berlin)

	if !strings.HasSuffix(w, "CET") {
		t.Fatalf("winter localization = %q, want CET suffix", w)
	}
	if !strings.HasSuffix(s, "CEST") {
		t.Fatalf("summer localization = %q, want CEST suffix", s)
	}
	if w == s {
		t.Fatal("localizations across DST boundary should differ")
	}
}
