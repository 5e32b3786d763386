package engine

import "github.com/alejandrodnm/crossbt/internal/domain"

// Deduplicator guarantees at-most-once processing per rule id within a run.
// It is scoped to one RunState and, like everything in a run, single-threaded.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator creates an empty set.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Accept records the rule id and reports whether it was new. The insertion
// happens before the caller performs any side effect of processing the
// signal, so a re-delivery of the same rule id can never double-process.
func (d *Deduplicator) Accept(id domain.RuleID) bool {
	key := id.String()
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns how many rule ids have been accepted.
func (d *Deduplicator) Len() int { return len(d.seen) }

// Reset swaps in a brand-new set. The old map is abandoned, never cleared in
// place, so references held elsewhere cannot leak into a new run. Prefer a
// fresh RunState over resetting.
func (d *Deduplicator) Reset() {
	d.seen = make(map[string]struct{})
}
