package regalloc

// Matcher assigns each left node of a BipartiteInstance a distinct right
// node (a register) subject to the instance's edge constraints. spec.md
// section 9's open question "USE_HUNGARIAN" is resolved, per the spec's own
// note that instances are small and unweighted, by implementing only the
// unweighted augmenting-path variant below; Matcher exists as an interface
// so a weighted matcher could be substituted without touching callers.
type Matcher interface {
	// Match returns, for each left index, the matched right index, or
	// RealRegNone (-1) if left node i could not be matched; an
	// implementation may instead abort with ErrInfeasibleMatch, as the
	// augmenting matcher below does. Left nodes are 0..len(left)-1; right
	// nodes are the bits set in RegClass.Allocatable, addressed by RealReg.
	Match(inst *BipartiteInstance) []RealReg
}

// BipartiteInstance is the scratch structure the chordal allocator's
// constraint-handling sub-pass builds per constrained instruction (spec.md
// 4.3.1 step 4, "construct a bipartite instance"). Left nodes are operand
// values needing a register; right nodes are physical registers; an edge
// exists wherever the operand's constraint mask permits that register and
// no already-fixed value occupies it.
type BipartiteInstance struct {
	Class RegClassID
	// Left holds the value each left node represents, for error reporting.
	Left []ValueID
	// Edges[i] is the mask of right nodes left node i may take.
	Edges []RegMask
	// Pinned holds, for any left node whose register is already fixed by a
	// pre-coloring, that register; such nodes are still matched (to detect
	// conflicts) but never reassigned.
	Pinned []RealReg
}

// NewBipartiteInstance allocates an instance with n left nodes, all fields
// zero-valued; callers fill Left/Edges/Pinned by index.
func NewBipartiteInstance(class RegClassID, n int) *BipartiteInstance {
	pinned := make([]RealReg, n)
	for i := range pinned {
		pinned[i] = RealRegNone
	}
	return &BipartiteInstance{
		Class:  class,
		Left:   make([]ValueID, n),
		Edges:  make([]RegMask, n),
		Pinned: pinned,
	}
}

// augmentingMatcher is the unweighted bipartite matcher via Kuhn's
// alternating-path algorithm, the textbook counterpart to the teacher's own
// constraint-satisfaction code (wazero's backend/regalloc/coloring.go solves
// the same "who gets which of a small constrained register set" problem
// with a simpler greedy pass this generalizes into a true matching).
type augmentingMatcher struct{}

// NewAugmentingMatcher returns the default unweighted Matcher.
func NewAugmentingMatcher() Matcher { return augmentingMatcher{} }

// Match implements Matcher.
func (augmentingMatcher) Match(inst *BipartiteInstance) []RealReg {
	n := len(inst.Left)
	result := make([]RealReg, n)
	for i := range result {
		result[i] = RealRegNone
	}

	// occupiedBy maps a right node to the left node currently matched to it.
	occupiedBy := make([]int, 64)
	for i := range occupiedBy {
		occupiedBy[i] = -1
	}

	// Pinned nodes claim their register first and are never displaced.
	for i, r := range inst.Pinned {
		if r == RealRegNone {
			continue
		}
		ri := int(r)
		if occupiedBy[ri] != -1 {
			abort(ErrPreColorConflict, inst.Class, 0, inst.Left[i],
				"register %d pinned by two values in the same instruction", r)
		}
		occupiedBy[ri] = i
		result[i] = r
	}

	for i := range inst.Left {
		if inst.Pinned[i] != RealRegNone {
			continue
		}
		visited := make([]bool, 64)
		if !tryAugment(i, inst, occupiedBy, visited, result) {
			abort(ErrInfeasibleMatch, inst.Class, 0, inst.Left[i],
				"no feasible register for left node %d", i)
		}
	}
	return result
}

// tryAugment attempts to give left node i a register, recursively re-seating
// previously-matched, unpinned left nodes along an augmenting path.
func tryAugment(i int, inst *BipartiteInstance, occupiedBy []int, visited []bool, result []RealReg) bool {
	mask := inst.Edges[i]
	for {
		r, ok := mask.LowestSet()
		if !ok {
			break
		}
		mask = mask.Without(r)
		ri := int(r)
		if visited[ri] {
			continue
		}
		visited[ri] = true
		if occupiedBy[ri] == -1 ||
			(inst.Pinned[occupiedBy[ri]] == RealRegNone && tryAugment(occupiedBy[ri], inst, occupiedBy, visited, result)) {
			occupiedBy[ri] = i
			result[i] = r
			return true
		}
	}
	return false
}
