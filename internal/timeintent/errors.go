package timeintent

import (
	"errors"
	"fmt"
)

// Kind classifies why an intent string could not be resolved.
// Callers branch on this to produce user-facing replies.
type Kind string

const (
	// KindUnrecognized means the intent matched none of the known grammars.
	KindUnrecognized Kind = "unrecognized"
	// KindAmbiguousMeridiem means a 12-hour clock phrase omitted AM/PM.
	KindAmbiguousMeridiem Kind = "ambiguous_meridiem"
	// KindOutOfRange means an hour, minute or count was outside valid bounds.
	KindOutOfRange Kind = "out_of_range"
	// KindMalformedISO means the string looked like an ISO-8601 timestamp but
	// failed strict parsing.
	KindMalformedISO Kind = "malformed_iso"
)

// ResolveError is returned for every resolution failure.
type ResolveError struct {
	Kind   Kind
	Input  string
	Reason string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %q: %s (%s)", e.Input, e.Reason, e.Kind)
}

func newErr(kind Kind, input, reason string) *ResolveError {
	return &ResolveError{Kind: kind, Input: input, Reason: reason}
}

// KindOf extracts the failure kind from err, or "" if err is not a
// resolution error.
func KindOf(err error) Kind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
