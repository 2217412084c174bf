package regalloc

// HandleConstraints runs the chordal allocator's constraint-handling
// sub-pass (spec.md 4.3.1) for one register class over the whole function.
// It must run after scheduling and before the coloring walk: it rewrites
// every constrained instruction's operands into a form the coloring walk can
// satisfy by simple first-fit, by inserting Perm/Copy nodes, pairing partner
// operands, and resolving the register each left node must land in ahead of
// time.
//
// It returns the map of values whose color this sub-pass already decided
// (spec.md "Pre-existing Perm nodes... are already treated as correctly
// pre-colored"). ColorWalk must honor these exactly like an externally
// pre-assigned register (spec.md 4.3.2); without this, the coloring walk's
// plain first-fit would have no way to see the registers constraint
// handling resolved operands to, silently breaking "color(o.value) ∈
// o.regs" (spec.md section 8, property 2) for any non-pre-assigned value
// that passed through a constrained instruction.
func HandleConstraints(f Function, class RegClassID, matcher Matcher, opts *Options) map[ValueID]RealReg {
	log := opts.logger()
	forced := map[ValueID]RealReg{}
	// scratch holds the per-instruction constraintNode working set (spec.md
	// section 5: "the constraint handler saves and restores an arena marker
	// around each instruction... freed when the marker is popped").
	scratch := newArena[constraintNode]()
	for _, b := range f.Blocks() {
		for _, instr := range b.Instructions() {
			if !instr.Constrained() {
				continue
			}
			handleConstrainedInstruction(f, b, instr, class, matcher, log, opts, scratch, forced)
		}
	}
	return forced
}

// constraintNode is one class-relevant operand occurrence of a constrained
// instruction, scratch that lives only for the duration of handling that
// instruction.
type constraintNode struct {
	value    ValueID
	mask     RegMask
	isUse    bool
	pinned   RealReg
	operandI int
}

// constraintGroup is one left node of the bipartite instance: either a lone
// unpaired value, or an out/in partner pair collapsed into a single node
// that must receive one shared color (spec.md 4.3.1 steps 3-4).
type constraintGroup struct {
	values []ValueID
	mask   RegMask
	pinned RealReg
}

func handleConstrainedInstruction(f Function, b Block, instr Instruction, class RegClassID, matcher Matcher, log Logger, opts *Options, scratch *arena[constraintNode], forced map[ValueID]RealReg) {
	regClass := f.RegClass(class)

	// Step 2: prepare. A constrained use whose value also interferes with
	// one of I's own defs (meaning it is still needed after I runs) is
	// copied first, so giving I's forced register to the use does not
	// clobber the original's other consumers; any other live-through value
	// that still interferes with a def is decoupled through a Perm (spec.md
	// 4.3.1 step 2; original_source/ir/be/bechordal.c's handle_constraints,
	// which calls pre_process_constraints ahead of pair_up_operands).
	insertConstraintCopies(f, b, instr, class)
	uses := instr.Uses()
	defs := instr.Defs()
	perm, through := insertThroughPerm(f, b, instr, class)

	mark := scratch.Mark()
	defer scratch.Release(mark)

	collect := func(operands []Operand, isUse bool) {
		for i, o := range operands {
			val := f.ValueByID(o.Value)
			if val.Class() != class || val.Ignore() {
				continue
			}
			pinned := RealRegNone
			if r, ok := val.PreAssigned(); ok {
				pinned = r
			}
			mask := o.Regs
			if mask.Empty() {
				mask = regClass.AllRegs()
			}
			mask = mask.Intersect(regClass.Allocatable)
			*scratch.Allocate() = constraintNode{value: o.Value, mask: mask, isUse: isUse, pinned: pinned, operandI: i}
		}
	}
	collect(uses, true)
	collect(defs, false)
	n := scratch.Allocated() - mark.allocated
	if n == 0 && len(through) == 0 {
		return
	}
	nodes := make([]constraintNode, n)
	for i := 0; i < n; i++ {
		nodes[i] = *scratch.View(mark.allocated + i)
	}

	if log != nil {
		log.Printf("constraint: handling instr %d (%d operands in class %d)\n", instr.ID(), len(nodes), class)
	}

	groups := buildConstraintGroups(f, class, instr, nodes)

	// Step 5: add-through values. Every projection of the Perm inserted
	// above is, by construction, live across I and not already one of I's
	// own operands, so it is added as an unconstrained left node (spec.md
	// 4.3.1 step 5).
	for i := range through {
		groups = append(groups, &constraintGroup{
			values: []ValueID{perm.Projection(i)},
			mask:   regClass.Allocatable,
			pinned: RealRegNone,
		})
	}

	if len(groups) > regClass.Size {
		abort(ErrScratchOverflow, class, instr.ID(), ValueIDInvalid,
			"instruction needs %d left nodes but class %d only has %d registers", len(groups), class, regClass.Size)
	}

	inst := NewBipartiteInstance(class, len(groups))
	for i, g := range groups {
		inst.Left[i] = g.values[0]
		inst.Edges[i] = g.mask
		inst.Pinned[i] = g.pinned
	}

	assigned := matcher.Match(inst)

	for i, g := range groups {
		reg := assigned[i]
		if reg == RealRegNone {
			abort(ErrInfeasibleMatch, class, instr.ID(), g.values[0],
				"constraint matcher left node %d unassigned", i)
		}
		singleton := RegMask(1) << uint(reg)
		for _, v := range g.values {
			// Record the resolved color so ColorWalk treats it like a
			// pre-assignment. A conflicting resolution for the same value
			// across two constrained instructions means the IR demanded two
			// different registers for one value with no decoupling
			// Perm/Copy between them: an over-constrained program, fatal
			// per spec.md section 7.
			if existing, ok := forced[v]; ok && existing != reg {
				abort(ErrInfeasibleMatch, class, instr.ID(), v,
					"value already resolved to register %d, instruction also demands %d", existing, reg)
			}
			forced[v] = reg
			for _, n := range nodes {
				if n.value != v {
					continue
				}
				if n.isUse {
					uses[n.operandI].Regs = singleton
				} else {
					defs[n.operandI].Regs = singleton
				}
			}
		}
	}

	if opts.dumpConstr() {
		log.Printf("constraint: instr %d resolved %d left nodes\n", instr.ID(), len(groups))
	}
}

// buildConstraintGroups implements spec.md 4.3.1 steps 3-4: pair each out
// operand with a compatible in operand, then collapse every operand
// occurrence into one left node per distinct value (or partnered pair).
func buildConstraintGroups(f Function, class RegClassID, instr Instruction, nodes []constraintNode) []*constraintGroup {
	type valueInfo struct {
		mask   RegMask
		pinned RealReg
		isUse  bool
		isDef  bool
	}
	order := make([]ValueID, 0, len(nodes))
	info := map[ValueID]*valueInfo{}
	for _, n := range nodes {
		vi, ok := info[n.value]
		if !ok {
			vi = &valueInfo{mask: n.mask, pinned: RealRegNone}
			info[n.value] = vi
			order = append(order, n.value)
		} else {
			vi.mask = vi.mask.Intersect(n.mask)
		}
		if n.isUse {
			vi.isUse = true
		} else {
			vi.isDef = true
		}
		if n.pinned != RealRegNone {
			if vi.pinned != RealRegNone && vi.pinned != n.pinned {
				abort(ErrPreColorConflict, class, instr.ID(), n.value,
					"value pinned to two different registers within one instruction")
			}
			vi.pinned = n.pinned
		}
	}

	// Step 3: pair operands. For each out value, find the tightest-masked,
	// non-interfering, not-yet-claimed in value whose mask intersects its
	// own (spec.md 4.3.1 step 3).
	partnerOf := map[ValueID]ValueID{}
	claimed := map[ValueID]bool{}
	for _, ov := range order {
		if !info[ov].isDef {
			continue
		}
		var best ValueID
		bestFound := false
		bestCard := 0
		for _, uv := range order {
			if uv == ov || !info[uv].isUse || claimed[uv] {
				continue
			}
			if f.Interferes(uv, ov) {
				continue
			}
			if info[uv].mask.Intersect(info[ov].mask).Empty() {
				continue
			}
			card := info[uv].mask.Count()
			if !bestFound || card < bestCard {
				best, bestFound, bestCard = uv, true, card
			}
		}
		if bestFound {
			partnerOf[ov] = best
			partnerOf[best] = ov
			claimed[ov] = true
			claimed[best] = true
		}
	}

	// Step 4: collapse into left nodes.
	grouped := map[ValueID]bool{}
	var groups []*constraintGroup
	for _, v := range order {
		if grouped[v] {
			continue
		}
		grouped[v] = true
		p, paired := partnerOf[v]
		if !paired {
			groups = append(groups, &constraintGroup{values: []ValueID{v}, mask: info[v].mask, pinned: info[v].pinned})
			continue
		}
		grouped[p] = true
		outV, inV := v, p
		if info[v].isUse && info[p].isDef {
			outV, inV = p, v
		}
		outMask, inMask := info[outV].mask, info[inV].mask
		var mask RegMask
		switch {
		case inMask.IsSubsetOf(outMask):
			mask = inMask
		case outMask.IsSubsetOf(inMask):
			mask = outMask
		default:
			// Over-constrained: neither side's requirement subsumes the
			// other's, so no single register can satisfy the pair (spec.md's
			// genuinely over-constrained case, as opposed to a legitimate
			// two-address constraint).
			mask = RegMask(0)
		}
		pinned := info[outV].pinned
		if info[inV].pinned != RealRegNone {
			if pinned != RealRegNone && pinned != info[inV].pinned {
				abort(ErrPreColorConflict, class, instr.ID(), inV,
					"partnered operands pre-assigned to different registers")
			}
			pinned = info[inV].pinned
		}
		groups = append(groups, &constraintGroup{values: []ValueID{outV, inV}, mask: mask, pinned: pinned})
	}
	return groups
}

// insertConstraintCopies implements the Copy half of spec.md 4.3.1 step 2:
// a constrained use whose value also interferes with one of I's own defs
// (meaning the original is still needed after I runs) is copied, and the use
// operand is rebound to the copy's result, leaving the original free to keep
// flowing to its other consumers under its own, unconstrained register.
func insertConstraintCopies(f Function, b Block, instr Instruction, class RegClassID) {
	uses := instr.Uses()
	defs := instr.Defs()
	replaced := map[ValueID]ValueID{}
	for i := range uses {
		o := &uses[i]
		val := f.ValueByID(o.Value)
		if val.Class() != class || val.Ignore() || o.Regs.Empty() {
			continue
		}
		if newVal, ok := replaced[o.Value]; ok {
			o.Value = newVal
			continue
		}
		interferesWithDef := false
		for _, d := range defs {
			if f.ValueByID(d.Value).Class() == class && f.Interferes(o.Value, d.Value) {
				interferesWithDef = true
				break
			}
		}
		if !interferesWithDef {
			continue
		}
		cp := f.Factory().NewCopy(b, o.Value)
		f.Schedule().AddBefore(instr, cp)
		newVal := cp.Defs()[0].Value
		replaced[o.Value] = newVal
		o.Value = newVal
	}
}

// insertThroughPerm implements the Perm half of spec.md 4.3.1 step 2: every
// value live across I that is not itself one of I's operands, and that
// still interferes with one of I's defs, is decoupled through a fresh
// projection so the coloring walk may give it a different color across the
// constrained instruction. Returns the inserted Perm (nil if none was
// needed) and the values it covers, in projection order.
func insertThroughPerm(f Function, b Block, instr Instruction, class RegClassID) (PermHandle, []ValueID) {
	defs := instr.Defs()
	seen := map[ValueID]bool{}
	for _, o := range instr.Uses() {
		seen[o.Value] = true
	}
	for _, d := range defs {
		seen[d.Value] = true
	}

	var through []ValueID
	for _, v := range instr.LiveThrough() {
		if seen[v] {
			continue
		}
		val := f.ValueByID(v)
		if val.Class() != class || val.Ignore() {
			continue
		}
		interferes := false
		for _, d := range defs {
			if f.ValueByID(d.Value).Class() == class && f.Interferes(v, d.Value) {
				interferes = true
				break
			}
		}
		if interferes {
			through = append(through, v)
		}
	}
	if len(through) == 0 {
		return nil, nil
	}
	perm := f.Factory().NewPerm(b, through)
	f.Schedule().AddBefore(instr, perm.Instruction())
	return perm, through
}
