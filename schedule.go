package regalloc

// Selector is the pluggable tie-breaking policy for the list scheduler
// (spec.md 4.1, "Selector contract"). Implementations are plain values and
// may carry their own state, mirroring the design notes' "pluggable selector
// via function-pointer vtable -> capability trait" translation.
type Selector interface {
	InitGraph(f Function)
	InitBlock(b Block)
	// NodeReady is called whenever a node's last in-block dependency has
	// just been scheduled, with the instruction that unblocked it.
	NodeReady(pred, node Instruction)
	// Select must return a member of ready.
	Select(ready []Instruction, live []ValueID) Instruction
	NodeSelected(n Instruction)
	FinishBlock(b Block)
	FinishGraph()
}

// schedValueState is the per-value bookkeeping spec.md 4.1 calls for.
type schedValueState struct {
	alreadyScheduled bool
	// definedBy is the in-block defining instruction, or nil if the value is
	// block-foreign (a live-in or a value from another block).
	definedBy Instruction
}

// schedInstrState is the per-instruction bookkeeping driving readiness.
type schedInstrState struct {
	// pendingOperands is the number of in-block operand values not yet
	// scheduled; the instruction is ready when this reaches zero.
	pendingOperands int
	queued          bool
}

// ListScheduleGraph orders each block of f, invoking selector to break ties
// among ready instructions (spec.md 4.1, section 6 "list_schedule_graph").
// It is idempotent when called again with the same deterministic selector on
// an already-scheduled graph whose dangling edges the caller has reactivated
// (spec.md 4.1 "Failure semantics" and section 8's round-trip property).
func ListScheduleGraph(f Function, selector Selector, opts *Options) {
	log := opts.logger()
	selector.InitGraph(f)
	for _, b := range f.Blocks() {
		scheduleBlock(f, b, selector, log)
	}
	selector.FinishGraph()
}

func scheduleBlock(f Function, b Block, selector Selector, log Logger) {
	selector.InitBlock(b)

	valueState := map[ValueID]*schedValueState{}
	instrState := map[InstrID]*schedInstrState{}
	successors := map[ValueID][]Instruction{}

	valueOf := func(v ValueID) *schedValueState {
		st, ok := valueState[v]
		if !ok {
			st = &schedValueState{}
			valueState[v] = st
		}
		return st
	}
	instrOf := func(i Instruction) *schedInstrState {
		st, ok := instrState[i.ID()]
		if !ok {
			st = &schedInstrState{}
			instrState[i.ID()] = st
		}
		return st
	}

	all := b.Instructions()

	// Mark every in-block definition so membership in `successors` can
	// distinguish local from foreign operands.
	for _, instr := range all {
		for _, d := range instr.Defs() {
			valueOf(d.Value).definedBy = instr
		}
	}

	// Phis are scheduled immediately: they only move data across edges
	// (spec.md 4.1 step 2).
	for _, phi := range b.Phis() {
		for _, d := range phi.Defs() {
			valueOf(d.Value).alreadyScheduled = true
		}
	}

	var ready []Instruction
	live := map[ValueID]int{} // value -> remaining decrement counter
	liveOrder := make([]ValueID, 0, 8)

	addLive := func(v ValueID, count int) {
		if _, ok := live[v]; !ok {
			liveOrder = append(liveOrder, v)
		}
		live[v] = count
	}
	removeLive := func(v ValueID) {
		delete(live, v)
		for i, lv := range liveOrder {
			if lv == v {
				liveOrder = append(liveOrder[:i], liveOrder[i+1:]...)
				break
			}
		}
	}
	liveSlice := func() []ValueID { return liveOrder }

	// pendingOperands + successors wiring, and initial ready seeding: the
	// Start pseudo-value first, then any instruction every one of whose
	// use-operands is block-foreign.
	var startInstr Instruction
	for _, instr := range all {
		pend := 0
		for _, u := range instr.Uses() {
			if def := valueOf(u.Value).definedBy; def != nil {
				pend++
				successors[u.Value] = append(successors[u.Value], instr)
			} else {
				// Block-foreign operand: live from block entry.
				if _, ok := live[u.Value]; !ok {
					addLive(u.Value, countInBlockUses(all, u.Value))
				}
			}
		}
		instrOf(instr).pendingOperands = pend
		if instr.IsStart() {
			startInstr = instr
		} else if pend == 0 {
			ready = append(ready, instr)
			instrOf(instr).queued = true
		}
	}
	if startInstr != nil {
		ready = prependUnique(ready, startInstr)
		instrOf(startInstr).queued = true
	}

	var schedule []Instruction
	startScheduled := startInstr == nil
	for len(ready) > 0 {
		var chosen Instruction
		var idx int
		if !startScheduled {
			// Start is scheduled unconditionally first, the same treatment
			// as phis, bypassing the selector entirely (spec.md 4.1 step 2).
			idx = indexOf(ready, startInstr)
			if idx < 0 {
				panic("BUG: start instruction missing from ready set")
			}
			chosen = startInstr
			startScheduled = true
		} else {
			chosen, idx = pickMandatory(ready)
			if chosen == nil {
				chosen = selector.Select(ready, liveSlice())
				idx = indexOf(ready, chosen)
			}
		}
		if idx < 0 {
			panic("BUG: selector returned a node outside the ready set")
		}
		ready = append(ready[:idx], ready[idx+1:]...)

		if log != nil {
			log.Printf("schedule: selecting instr %d in block %d\n", chosen.ID(), b.ID())
		}

		if chosen.AppearsInSchedule() {
			schedule = append(schedule, chosen)
		}

		// Step (d): decrement live users of each input; evict at zero.
		for _, u := range chosen.Uses() {
			if n, ok := live[u.Value]; ok {
				n--
				if n <= 0 {
					removeLive(u.Value)
				} else {
					live[u.Value] = n
				}
			}
		}
		for _, d := range chosen.Defs() {
			valueOf(d.Value).alreadyScheduled = true
			addLive(d.Value, f.UserCount(d.Value))
		}

		// Step (e): promote newly-ready successors.
		for _, d := range chosen.Defs() {
			for _, succ := range successors[d.Value] {
				sst := instrOf(succ)
				sst.pendingOperands--
				if sst.pendingOperands == 0 && !sst.queued {
					sst.queued = true
					ready = append(ready, succ)
					selector.NodeReady(chosen, succ)
				}
			}
		}
		selector.NodeSelected(chosen)
	}

	applySchedule(f, b, schedule)
	selector.FinishBlock(b)
}

// pickMandatory returns a Keep/CopyKeep/Sync instruction from ready if one
// exists, per spec.md 4.1 step 3a ("these must remain adjacent to their
// operands"). Returns (nil, -1) if none qualifies, deferring to the selector.
func pickMandatory(ready []Instruction) (Instruction, int) {
	for i, n := range ready {
		if n.IsKeepLike() {
			return n, i
		}
	}
	return nil, -1
}

func indexOf(ready []Instruction, n Instruction) int {
	for i, r := range ready {
		if r.ID() == n.ID() {
			return i
		}
	}
	return -1
}

func prependUnique(ready []Instruction, n Instruction) []Instruction {
	for _, r := range ready {
		if r.ID() == n.ID() {
			return ready
		}
	}
	return append([]Instruction{n}, ready...)
}

// countInBlockUses counts how many instructions in the block use v, for
// seeding the live-set decrement counter of a block-foreign operand.
func countInBlockUses(all []Instruction, v ValueID) int {
	n := 0
	for _, instr := range all {
		for _, u := range instr.Uses() {
			if u.Value == v {
				n++
			}
		}
	}
	return n
}

// applySchedule hands the finalized order to the Function's Schedule by
// re-inserting each instruction, in the computed sequence, after the one
// before it with AddAfter. No separate removal is issued: the Schedule's
// AddAfter must move an instruction that is already in the block, so that a
// Schedule backed by a linked list (as the teacher's ssa.Instruction is)
// gets relinked correctly.
func applySchedule(f Function, b Block, order []Instruction) {
	if len(order) == 0 {
		return
	}
	sched := f.Schedule()
	var anchor Instruction
	for _, instr := range order {
		if anchor == nil {
			anchor = instr
			continue
		}
		sched.AddAfter(anchor, instr)
		anchor = instr
	}
}
