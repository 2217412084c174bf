package regalloc

// GreedySelector picks the ready node whose own inputs have the furthest
// next use, approximating the classic "farthest first" list scheduling
// heuristic: a node whose operands are needed soonest elsewhere is deferred.
// Among nodes with equal scores the first in the ready set is picked.
type GreedySelector struct {
	f Function
}

// NewGreedySelector returns a Selector that breaks ties by preferring the
// ready instruction whose inputs are next used furthest away.
func NewGreedySelector(f Function) *GreedySelector { return &GreedySelector{f: f} }

func (s *GreedySelector) InitGraph(Function)         {}
func (s *GreedySelector) InitBlock(Block)            {}
func (s *GreedySelector) NodeReady(_, _ Instruction) {}
func (s *GreedySelector) NodeSelected(Instruction)   {}
func (s *GreedySelector) FinishBlock(Block)          {}
func (s *GreedySelector) FinishGraph()               {}

// Select implements Selector.
func (s *GreedySelector) Select(ready []Instruction, live []ValueID) Instruction {
	best := ready[0]
	bestDist := s.score(best)
	for _, n := range ready[1:] {
		if d := s.score(n); d > bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// score is the maximum next-use distance among a node's own uses: scheduling
// a node whose inputs are needed far away is safe, since nothing else is
// waiting on them sooner.
func (s *GreedySelector) score(n Instruction) uint32 {
	var max uint32
	for _, u := range n.Uses() {
		d := s.f.NextUseDistance(n, 0, u.Value, true)
		if d > max {
			max = d
		}
	}
	return max
}

// FIFOSelector breaks ties by insertion order into the ready set, giving a
// deterministic, allocation-order-stable schedule useful for golden tests
// and for isolating scheduler-induced churn from allocator-induced churn.
type FIFOSelector struct {
	order map[InstrID]int
	next  int
}

// NewFIFOSelector returns a Selector with no heuristic beyond arrival order.
func NewFIFOSelector() *FIFOSelector { return &FIFOSelector{order: map[InstrID]int{}} }

func (s *FIFOSelector) InitGraph(Function) {}

func (s *FIFOSelector) InitBlock(Block) {
	s.order = map[InstrID]int{}
	s.next = 0
}

func (s *FIFOSelector) NodeReady(_, node Instruction) { s.mark(node) }

func (s *FIFOSelector) mark(n Instruction) {
	if _, ok := s.order[n.ID()]; !ok {
		s.order[n.ID()] = s.next
		s.next++
	}
}

// Select implements Selector.
func (s *FIFOSelector) Select(ready []Instruction, _ []ValueID) Instruction {
	best := ready[0]
	s.mark(best)
	bestOrd := s.order[best.ID()]
	for _, n := range ready[1:] {
		s.mark(n)
		if o := s.order[n.ID()]; o < bestOrd {
			best, bestOrd = n, o
		}
	}
	return best
}

func (s *FIFOSelector) NodeSelected(Instruction) {}
func (s *FIFOSelector) FinishBlock(Block)        {}
func (s *FIFOSelector) FinishGraph()             {}
