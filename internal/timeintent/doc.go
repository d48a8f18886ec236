// Package timeintent converts human time expressions into absolute instants.
//
// All resolved instants are UTC. The display timezone is used only for two
// things: interpreting wall-clock phrases ("at 3 PM") and formatting instants
// back into human-readable text. Resolution never reads the system clock; the
// caller supplies the reference instant, which keeps the whole package
// deterministic under test.
package timeintent
