package regalloc

// beladyChooser runs the Belady-style spill/reload insertion pass of
// spec.md 4.2 for a single register class. It decides, block by block, which
// live values are assumed to occupy real registers ("the working set") and
// inserts Spill/Reload instructions wherever the set would overflow the
// class's register count.
type beladyChooser struct {
	f     Function
	class RegClassID
	opts  *Options

	// startSet and endSet record, per block, the working set assumed at
	// block entry and left at block exit, so edge fixup can compare a
	// predecessor's end set against each successor's start set.
	startSet map[BlockID]*workingSet
	endSet   map[BlockID]*workingSet
	// spillOf records the Spill instruction already materialized for a
	// value, so a second eviction of the same value reuses it rather than
	// emitting a duplicate spill slot (spec.md 4.2 step 3, "a value already
	// spilled is not re-spilled").
	spillOf map[ValueID]Instruction
}

// RunBelady computes working sets and inserts Spill/Reload/Perm-adjacent
// bookkeeping for every block of f, for the given register class. Blocks
// must already be scheduled (ListScheduleGraph) and f.Blocks() reachable in
// dominance order via f.DominatorPreOrder() for the start-set of a block to
// see its dominator's end set.
func RunBelady(f Function, class RegClassID, opts *Options) {
	c := &beladyChooser{
		f:        f,
		class:    class,
		opts:     opts,
		startSet: map[BlockID]*workingSet{},
		endSet:   map[BlockID]*workingSet{},
		spillOf:  map[ValueID]Instruction{},
	}
	k := f.RegClass(class).Size

	for _, b := range f.DominatorPreOrder() {
		c.runBlock(b, k)
	}
	for _, b := range f.DominatorPreOrder() {
		c.fixupEdges(b, k)
	}
}

// runBlock computes the start set, walks the block displacing on overflow,
// and records the end set.
func (c *beladyChooser) runBlock(b Block, k int) {
	log := c.opts.logger()
	ws := c.startSetFor(b, k)
	c.startSet[b.ID()] = ws.Clone()

	used := map[ValueID]bool{}
	// Walk a private copy: the Spill/Reload nodes inserted below go into the
	// block's schedule and must not show up in, or overwrite, this walk.
	instrs := append([]Instruction(nil), b.Instructions()...)
	for step, instr := range instrs {
		// Uses not already resident must be reloaded before the instruction
		// can execute. This applies even to a tuple-producing instruction:
		// spec.md 4.2 step 2's tuple special case bundles only the *defs*
		// with their trailing projections, it does not exempt the
		// instruction's own uses from residency checking.
		for _, u := range instr.Uses() {
			if c.f.ValueByID(u.Value).Class() != c.class || c.f.ValueByID(u.Value).Ignore() {
				continue
			}
			used[u.Value] = true
			if !ws.Contains(u.Value) {
				c.reload(b, instr, u.Value)
				c.displace(b, instr, step, ws, k-1, used, log)
				ws.Insert(u.Value, c.f.NextUseDistance(instr, step, u.Value, true))
			}
		}

		if instr.IsTuple() {
			// A tuple instruction's own defs are not inserted. Each trailing
			// projection is walked as an ordinary instruction and displaces
			// for, then inserts, its own def; the projections are not
			// displaced for together as one unit.
			continue
		}

		// Make room for this instruction's defs before inserting them:
		// displace furthest-use members until there is space.
		defs := instr.Defs()
		want := 0
		for _, d := range defs {
			v := c.f.ValueByID(d.Value)
			if v.Class() == c.class && !v.Ignore() {
				want++
			}
		}
		c.displace(b, instr, step, ws, k-want, used, log)

		for _, d := range defs {
			v := c.f.ValueByID(d.Value)
			if v.Class() != c.class || v.Ignore() {
				continue
			}
			ws.Insert(d.Value, c.f.NextUseDistance(instr, step, d.Value, true))
		}
	}

	c.endSet[b.ID()] = ws
}

// startSetFor seeds the start set of b (spec.md 4.2 step 1). A block with
// exactly one predecessor simply inherits that predecessor's end set
// verbatim, since there is no other path whose working set could disagree
// with it; DominatorPreOrder guarantees the sole predecessor (which then
// dominates b) was already walked. Every other block -- including the
// entry, and any join with more than one predecessor -- instead ranks every
// live-in value plus this block's own phi results by next-use distance and
// keeps the nearest k.
func (c *beladyChooser) startSetFor(b Block, k int) *workingSet {
	preds := b.Preds()
	if len(preds) == 1 && !b.IsEntry() {
		if end, ok := c.endSet[preds[0].ID()]; ok {
			return end.Clone()
		}
	}

	ws := newWorkingSet(c.class)
	for _, v := range b.LiveIn() {
		val := c.f.ValueByID(v)
		if val.Class() != c.class || val.Ignore() {
			continue
		}
		ws.Insert(v, c.estimateEntryDistance(b, v))
	}
	for _, phi := range b.Phis() {
		for _, d := range phi.Defs() {
			val := c.f.ValueByID(d.Value)
			if val.Class() != c.class || val.Ignore() {
				continue
			}
			ws.Insert(d.Value, c.estimateEntryDistance(b, d.Value))
		}
	}
	ws.SortByDistance()
	for _, v := range ws.TruncateTo(k) {
		c.spillTruncatedPhi(b, v)
	}
	return ws
}

// spillTruncatedPhi marks a phi result that did not make it into the start
// set for spilling immediately, so all of that phi's arguments end up
// sharing one spill slot instead of each predecessor spilling independently
// (spec.md 4.2 step 1, "phis not retained are marked for spilling so that
// their arguments share a single spill slot").
func (c *beladyChooser) spillTruncatedPhi(b Block, v ValueID) {
	isPhiResult := false
	for _, phi := range b.Phis() {
		defs := phi.Defs()
		if len(defs) != 0 && defs[0].Value == v {
			isPhiResult = true
			break
		}
	}
	if !isPhiResult {
		return
	}
	instrs := b.Instructions()
	if len(instrs) == 0 {
		// Nothing to anchor the spill to yet; it will be inserted once the
		// block gains a real instruction to splice ahead of.
		return
	}
	c.spill(b, instrs[0], v)
}

// estimateEntryDistance returns the next-use distance of v as seen from b's
// first instruction, or NextUseInfinite if b has no instructions.
func (c *beladyChooser) estimateEntryDistance(b Block, v ValueID) uint32 {
	instrs := b.Instructions()
	if len(instrs) == 0 {
		return NextUseInfinite
	}
	return c.f.NextUseDistance(instrs[0], 0, v, false)
}

// displace evicts furthest-use members until the set's size is at most room,
// emitting a Spill for each evicted value that has no spill slot yet. A value
// evicted without ever having been used in this block so far is also removed
// retroactively from the block's published start set (spec.md 4.2 step 2:
// "if v was never used in this block, remove it retroactively from
// ws_start"), since fixupEdges would otherwise expect predecessors to have
// kept it resident for a use that never happens.
func (c *beladyChooser) displace(b Block, before Instruction, step int, ws *workingSet, room int, used map[ValueID]bool, log Logger) {
	if room < 0 {
		room = 0
	}
	if ws.Len() <= room {
		return
	}
	// Refresh distances before ranking, since earlier instructions moved the
	// reference point.
	for _, v := range ws.Values() {
		ws.Insert(v, c.f.NextUseDistance(before, step, v, true))
	}
	ws.SortByDistance()
	for _, v := range ws.TruncateTo(room) {
		if log != nil {
			log.Printf("belady: evicting value %d before instr %d in block %d\n", v, before.ID(), b.ID())
		}
		if !used[v] {
			if start, ok := c.startSet[b.ID()]; ok {
				start.Remove(v)
			}
		}
		c.spill(b, before, v)
	}
}

// spill materializes a Spill instruction for v if one doesn't already exist.
//
// TODO: Factory.NewSpill/NewReload take no frame-pointer operand here, so
// the "any register" constraint some backends give that input never had
// anywhere to live in this port. Investigate whether it's still needed
// before reintroducing it if a frame-pointer-carrying Spill/Reload variant
// gets added.
func (c *beladyChooser) spill(b Block, before Instruction, v ValueID) {
	if c.f.ValueByID(v).DontSpill() {
		return
	}
	if _, ok := c.spillOf[v]; ok {
		return
	}
	sp := c.f.Factory().NewSpill(b, v)
	c.f.Schedule().AddBefore(before, sp)
	c.spillOf[v] = sp
}

// reload materializes a Reload instruction for v immediately before the use
// that needs it.
func (c *beladyChooser) reload(b Block, before Instruction, v ValueID) {
	spill, ok := c.spillOf[v]
	if !ok {
		// v is missing from the working set, yet no block walked so far has
		// spilled it, so there is nothing to reload from: the liveness
		// information and the working sets disagree. This is fatal.
		abort(ErrOracleDisagreement, c.class, before.ID(), v,
			"reload requested for value with no spill slot")
	}
	rl := c.f.Factory().NewReload(b, spill)
	c.f.Schedule().AddBefore(before, rl)
}

// fixupEdges compares, for every predecessor edge of b, the predecessor's
// end set against b's assumed start set, inserting edge reloads for any
// value b assumed resident that the predecessor actually spilled (spec.md
// 4.2 step 4). A value in the start set that is itself one of b's phis is
// first replaced by its argument along that specific edge, since the
// predecessor's working set was computed in terms of the value flowing in
// on that edge, not the phi result (spec.md 4.2 step 4, "if v is a phi of
// B, replace v by v's i-th phi argument").
func (c *beladyChooser) fixupEdges(b Block, k int) {
	start, ok := c.startSet[b.ID()]
	if !ok {
		return
	}
	for predIdx, pred := range b.Preds() {
		end, ok := c.endSet[pred.ID()]
		if !ok {
			continue
		}
		for _, v := range start.Values() {
			actual := c.phiArgument(b, v, predIdx)
			if end.Contains(actual) {
				continue
			}
			if _, spilled := c.spillOf[actual]; spilled {
				c.f.Factory().InsertReloadOnEdge(actual, b, predIdx)
			}
		}
	}
}

// phiArgument returns the value that actually flows into b along edge
// predIdx in place of v: v itself unless v is the result of one of b's
// phis, in which case it is that phi's predIdx-th argument (spec.md 4.2
// step 4).
func (c *beladyChooser) phiArgument(b Block, v ValueID, predIdx int) ValueID {
	for _, phi := range b.Phis() {
		defs := phi.Defs()
		if len(defs) == 0 || defs[0].Value != v {
			continue
		}
		uses := phi.Uses()
		if predIdx < len(uses) {
			return uses[predIdx].Value
		}
		return v
	}
	return v
}
