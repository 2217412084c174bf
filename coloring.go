package regalloc

// colorState tracks, for one register class during the coloring walk, which
// value currently occupies each register and which color each live value has
// been given. It is threaded down the dominator tree, cloned at branches,
// per spec.md 4.3.2 ("the walk carries live/colors bitsets that fork at
// every dominator-tree child and never merge back").
type colorState struct {
	class RegClassID
	// occupant[r] is the value currently holding register r, or
	// ValueIDInvalid if free.
	occupant []ValueID
	// colorOf maps a live value to its register.
	colorOf map[ValueID]RealReg
}

func newColorState(class RegClassID, size int) *colorState {
	occ := make([]ValueID, size)
	for i := range occ {
		occ[i] = ValueIDInvalid
	}
	return &colorState{class: class, occupant: occ, colorOf: map[ValueID]RealReg{}}
}

func (s *colorState) clone() *colorState {
	c := &colorState{
		class:    s.class,
		occupant: append([]ValueID(nil), s.occupant...),
		colorOf:  make(map[ValueID]RealReg, len(s.colorOf)),
	}
	for v, r := range s.colorOf {
		c.colorOf[v] = r
	}
	return c
}

func (s *colorState) assign(v ValueID, r RealReg) {
	s.occupant[r] = v
	s.colorOf[v] = r
}

func (s *colorState) free(v ValueID) {
	if r, ok := s.colorOf[v]; ok {
		s.occupant[r] = ValueIDInvalid
		delete(s.colorOf, v)
	}
}

// ColorWalk runs the chordal allocator's coloring sub-pass (spec.md 4.3.2)
// for one register class: it walks the dominator tree in pre-order,
// following each block's border list (the perfect elimination order the
// scheduler's Start-first, phis-first discipline guarantees), assigning or
// reusing registers at def events and freeing them at the matching kill.
// HandleConstraints must have already run for this class, and its returned
// forced map passed in here unchanged, so that every value the constraint
// handler resolved to a specific register is colored accordingly instead of
// by plain first-fit (spec.md "Pre-existing Perm nodes... are already
// treated as correctly pre-colored").
func ColorWalk(f Function, class RegClassID, forced map[ValueID]RealReg, opts *Options) {
	log := opts.logger()
	regClass := f.RegClass(class)
	root := newColorState(class, regClass.Size)
	states := map[BlockID]*colorState{}

	for _, b := range f.DominatorPreOrder() {
		var st *colorState
		if idom := dominatingState(f, b, states); idom != nil {
			st = idom.clone()
		} else {
			st = root.clone()
		}
		colorBlock(f, b, class, regClass, st, forced, opts.dumpTreeIntv(), log)
		states[b.ID()] = st
	}
}

// dominatingState returns the already-computed state of b's immediate
// dominator, or nil for the dominator-tree root. DominatorPreOrder visits
// parents before children, so the idom's state is always already present in
// states by the time b is reached. A CFG predecessor is not a substitute for
// the idom: a join block's first predecessor need not dominate it at all.
func dominatingState(f Function, b Block, states map[BlockID]*colorState) *colorState {
	idom, ok := b.Idom()
	if !ok {
		return nil
	}
	return states[idom]
}

// colorBlock processes one block's border list in order (spec.md "Border
// list": defs from last to first form a perfect elimination order), handling
// each event as a def (assign/reuse a color) or a kill (free a color).
func colorBlock(f Function, b Block, class RegClassID, regClass RegClass, st *colorState, forced map[ValueID]RealReg, dump bool, log Logger) {
	for _, ev := range f.BorderList(b) {
		val := f.ValueByID(ev.Value)
		if val.Class() != class || val.Ignore() {
			continue
		}
		if !ev.IsDef {
			st.free(ev.Value)
			continue
		}
		if r, already := st.colorOf[ev.Value]; already {
			if dump {
				log.Printf("coloring: block %d value %s already colored (inherited reg %d)\n", b.ID(), ev.Value, r)
			}
			continue
		}
		if r, ok := val.PreAssigned(); ok {
			if occ := st.occupant[r]; occ != ValueIDInvalid && occ != ev.Value {
				abort(ErrPreColorConflict, class, 0, ev.Value,
					"pre-assigned register %d already held by %s", r, occ)
			}
			st.assign(ev.Value, r)
			if dump {
				log.Printf("coloring: block %d value %s <- pre-assigned reg %d\n", b.ID(), ev.Value, r)
			}
			continue
		}
		if r, ok := forced[ev.Value]; ok {
			if occ := st.occupant[r]; occ != ValueIDInvalid && occ != ev.Value {
				abort(ErrPreColorConflict, class, 0, ev.Value,
					"constraint-resolved register %d already held by %s", r, occ)
			}
			st.assign(ev.Value, r)
			if dump {
				log.Printf("coloring: block %d value %s <- constraint-resolved reg %d\n", b.ID(), ev.Value, r)
			}
			continue
		}
		r, ok := firstFree(st, regClass)
		if !ok {
			abort(ErrColorsExhausted, class, 0, ev.Value,
				"no free register for value %s in block %d", ev.Value, b.ID())
		}
		st.assign(ev.Value, r)
		if dump {
			log.Printf("coloring: block %d value %s <- reg %d\n", b.ID(), ev.Value, r)
		}
	}
}

// firstFree returns the lowest-indexed allocatable register not currently
// occupied (spec.md 4.3.2, "Def event, local def without pre-assignment").
func firstFree(st *colorState, regClass RegClass) (RealReg, bool) {
	free := regClass.Allocatable
	for i, v := range st.occupant {
		if v != ValueIDInvalid {
			free = free.Without(RealReg(i))
		}
	}
	return free.LowestSet()
}
