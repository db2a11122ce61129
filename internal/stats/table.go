package stats

import (
	"maps"
	"slices"
)

// Table counts occurrences per digest.
type Table struct {
	counts map[string]uint64
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{counts: make(map[string]uint64)}
}

// Add increments the count for digest.
func (t *Table) Add(digest string) {
	t.counts[digest]++
}

// Count returns the count for digest.
func (t *Table) Count(digest string) uint64 {
	return t.counts[digest]
}

// Len returns the number of distinct digests.
func (t *Table) Len() int {
	return len(t.counts)
}

// Entries returns the counts in ascending digest order.
func (t *Table) Entries() []Ack {
	keys := slices.Sorted(maps.Keys(t.counts))
	acks := make([]Ack, len(keys))
	for i, k := range keys {
		acks[i] = Ack{Digest: k, Count: t.counts[k]}
	}
	return acks
}

// Reset removes every entry.
func (t *Table) Reset() {
	clear(t.counts)
}
