package regalloc

import "sort"

// workingSetEntry pairs a value with the distance the Belady chooser last
// computed for it, cached so repeated sorts don't re-query the oracle
// (spec.md 4.2, "the next-use distance of every member is recomputed at
// each step" is relaxed to "recomputed once per step, cached until then").
type workingSetEntry struct {
	value ValueID
	dist  uint32
}

// workingSet is the Belady spill chooser's resident set for one register
// class: the k values currently assumed to occupy real registers, ordered by
// next-use distance so eviction always picks the furthest (spec.md 4.2,
// "Belady's furthest-first eviction rule"). It generalizes nothing from the
// teacher directly -- wazero's backend never runs a Belady pass -- and is
// instead grounded in spec.md 4.2's own description of the container's
// required operations.
type workingSet struct {
	class   RegClassID
	entries []workingSetEntry
}

func newWorkingSet(class RegClassID) *workingSet {
	return &workingSet{class: class}
}

// Len returns the number of resident values.
func (s *workingSet) Len() int { return len(s.entries) }

// Contains reports whether v is currently resident.
func (s *workingSet) Contains(v ValueID) bool {
	for _, e := range s.entries {
		if e.value == v {
			return true
		}
	}
	return false
}

// Insert adds v with the given next-use distance, or updates its distance if
// already resident.
func (s *workingSet) Insert(v ValueID, dist uint32) {
	for i := range s.entries {
		if s.entries[i].value == v {
			s.entries[i].dist = dist
			return
		}
	}
	s.entries = append(s.entries, workingSetEntry{value: v, dist: dist})
}

// Remove evicts v if present. Reports whether it was present.
func (s *workingSet) Remove(v ValueID) bool {
	for i, e := range s.entries {
		if e.value == v {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// SortByDistance orders the resident set ascending by next-use distance, so
// index len-1 is always the furthest-use (first eviction candidate).
func (s *workingSet) SortByDistance() {
	sort.SliceStable(s.entries, func(i, j int) bool { return s.entries[i].dist < s.entries[j].dist })
}

// Furthest returns the resident value with the largest next-use distance.
// SortByDistance must have been called since the last mutation.
func (s *workingSet) Furthest() (ValueID, bool) {
	if len(s.entries) == 0 {
		return 0, false
	}
	return s.entries[len(s.entries)-1].value, true
}

// TruncateTo keeps only the k nearest-use entries (SortByDistance must have
// been called first), returning the evicted tail in furthest-first order --
// spec.md 4.2's "displace the excess, furthest-use first" step.
func (s *workingSet) TruncateTo(k int) []ValueID {
	if len(s.entries) <= k {
		return nil
	}
	evicted := make([]ValueID, 0, len(s.entries)-k)
	for i := len(s.entries) - 1; i >= k; i-- {
		evicted = append(evicted, s.entries[i].value)
	}
	s.entries = s.entries[:k]
	return evicted
}

// Values returns the resident values in current order.
func (s *workingSet) Values() []ValueID {
	out := make([]ValueID, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.value
	}
	return out
}

// Clone returns an independent copy, used by the Belady walk to snapshot a
// block's start set and to hand a predecessor's end set to its sole
// successor as that successor's start set.
func (s *workingSet) Clone() *workingSet {
	c := &workingSet{class: s.class, entries: make([]workingSetEntry, len(s.entries))}
	copy(c.entries, s.entries)
	return c
}

// CopyFrom overwrites s's contents with other's, without allocating a new
// backing array when capacity already suffices.
func (s *workingSet) CopyFrom(other *workingSet) {
	s.entries = append(s.entries[:0], other.entries...)
}
