// Package reminder holds the persisted reminder record, the store contract
// the dispatcher claims against, and the creation service that turns a time
// intent string into a stored record.
//
// The store exposes claiming as a compare-and-swap on is_triggered rather
// than a lock: any backend with atomic conditional writes satisfies it, and
// the number of dispatcher workers or processes racing on a record becomes
// irrelevant to correctness.
package reminder
