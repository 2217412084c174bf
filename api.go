package regalloc

// This file collects the external-collaborator interfaces of spec.md section
// 6: the IR, liveness/dominance oracles, and node factory the core consumes,
// and the Schedule mutation surface it drives. It mirrors the shape of the
// teacher's backend/regalloc/api.go (Function/Block/Instr implemented by an
// ISA-specific backend) generalized to the three components this module
// implements: the caller is expected to provide one implementation that
// plays all three roles.

type (
	// ValueKind distinguishes the four kinds of SSA value spec.md's data
	// model names.
	ValueKind uint8

	// Value is the external oracle for a single SSA value (spec.md "Value").
	Value interface {
		ID() ValueID
		Class() RegClassID
		Kind() ValueKind
		// PreAssigned returns the pre-assigned register and true if this
		// value must keep a specific register (spec.md "Pre-coloring
		// respected").
		PreAssigned() (RealReg, bool)
		// Ignore returns true for values that never consume a color, e.g.
		// the stack pointer.
		Ignore() bool
		// DontSpill returns true for values the Belady chooser must pin in
		// the working set (their next-use distance is always reported as 0).
		DontSpill() bool
	}

	// Operand is one reference from an Instruction to a Value plus the
	// constraint bitset of registers that may satisfy it (spec.md
	// "Operand"). The partner relationship from spec.md is not part of this
	// struct: it is rebuilt as transient per-instruction scratch by the
	// constraint handler (spec.md "Lifecycle"), not carried on the IR.
	Operand struct {
		Value ValueID
		Regs  RegMask
	}

	// Instruction is one instruction, abstracting away the underlying ISA
	// exactly as the teacher's regalloc.Instr does, extended with the
	// register-constrained Operand vectors spec.md's data model requires.
	Instruction interface {
		ID() InstrID
		// Defs returns this instruction's out operands.
		Defs() []Operand
		// Uses returns this instruction's in operands.
		Uses() []Operand
		// IsPhi reports whether this is a block-entry phi (spec.md "phis of
		// the block are scheduled immediately").
		IsPhi() bool
		// IsKeepLike reports whether this is a Keep, CopyKeep or Sync node
		// that must stay adjacent to its operands during scheduling
		// (spec.md 4.1 step 3a).
		IsKeepLike() bool
		// AppearsInSchedule reports whether this instruction occupies a slot
		// in the emitted schedule, or is a pure bookkeeping artefact
		// (spec.md 4.1 step 3c).
		AppearsInSchedule() bool
		// IsTuple reports whether this instruction's definitions are
		// consumed through immediately-following projection instructions
		// (spec.md 4.2 step 2, the Belady "special case for tuple
		// instructions").
		IsTuple() bool
		// Constrained reports whether any operand carries a constraint
		// bitset narrower than its class's full register set.
		Constrained() bool
		// IsStart reports whether this is the block's Start pseudo-value,
		// scheduled unconditionally first (spec.md 4.1 step 2).
		IsStart() bool
		// LiveThrough returns the values live both immediately before and
		// after this instruction that are not themselves one of its own
		// operands (spec.md 4.3.1 step 2, "values that are live across I").
		LiveThrough() []ValueID
	}

	// BorderEvent is one entry of a block's border list: a liveness
	// transition ordered so that defs from last to front form a perfect
	// elimination order (spec.md "Border list").
	BorderEvent struct {
		IsDef bool
		Value ValueID
	}

	// Block is one CFG basic block (spec.md "Block").
	Block interface {
		ID() BlockID
		IsEntry() bool
		// Preds returns this block's predecessors, in edge-index order
		// (edge i corresponds to the i-th phi argument).
		Preds() []Block
		// Instructions returns this block's non-phi instructions. Before
		// scheduling the order is arbitrary; after
		// ListScheduleGraph it is the finalized order.
		Instructions() []Instruction
		// Phis returns this block's phi instructions (scheduled first,
		// unconditionally).
		Phis() []Instruction
		// LiveIn returns the values live at block entry.
		LiveIn() []ValueID
		// Idom returns the block ID of this block's immediate dominator, or
		// false if it is the dominator-tree root (spec.md 4.3.2's coloring
		// walk "carries live/colors bitsets that fork at every dominator-tree
		// child" -- the fork point is the idom, not a CFG predecessor).
		Idom() (BlockID, bool)
	}

	// PermHandle is the inserted Perm node together with access to its
	// per-value projections (spec.md 4.3.1 step 2: "obtaining a fresh
	// projection per value").
	PermHandle interface {
		Instruction() Instruction
		// Projection returns the ValueID of the projection corresponding to
		// the i-th value passed to Factory.NewPerm.
		Projection(i int) ValueID
	}

	// Factory creates the backend nodes the spiller and allocator splice
	// into the schedule (spec.md section 6, "Backend node factory").
	Factory interface {
		NewPerm(b Block, values []ValueID) PermHandle
		NewCopy(b Block, v ValueID) Instruction
		NewSpill(b Block, v ValueID) Instruction
		NewReload(b Block, spill Instruction) Instruction
		// InsertReloadOnEdge requests a reload of v be emitted on the
		// (pred, b) edge indexed predIndex (spec.md 4.2 step 4, "Edge
		// fixup").
		InsertReloadOnEdge(v ValueID, b Block, predIndex int)
	}

	// Schedule is the mutable instruction-order surface (spec.md section 6).
	Schedule interface {
		AddBefore(anchor, n Instruction)
		AddAfter(anchor, n Instruction)
		RemoveDead()
	}

	// Function is the whole program the core passes operate on (spec.md
	// "System Overview" item 1, "IR + Liveness + Dominance oracle").
	Function interface {
		// Blocks returns every block, in no particular order.
		Blocks() []Block
		// DominatorPreOrder returns blocks in the pre-order of the dominator
		// tree, used by the coloring walk (spec.md 4.3.2).
		DominatorPreOrder() []Block
		// RegClass returns the static description of a register class.
		RegClass(c RegClassID) RegClass
		// ValueByID resolves a ValueID to its Value oracle.
		ValueByID(ValueID) Value
		// Interferes reports whether two values of the same class
		// interfere (spec.md "values_interfere").
		Interferes(a, b ValueID) bool
		// UserCount returns the total number of users of v across every
		// block (spec.md 4.1 step d, "cross-block users keep it live until
		// block end").
		UserCount(v ValueID) int
		// NextUseDistance implements the oracle of the same name (spec.md
		// section 6): the number of scheduling steps from `from`+step to
		// the next use of v, skipping uses at `from` itself when
		// skipUsesAtFrom is true. math.MaxUint32 means "never used again".
		NextUseDistance(from Instruction, step int, v ValueID, skipUsesAtFrom bool) uint32
		// BorderList returns b's liveness event stream (spec.md "Border
		// list").
		BorderList(b Block) []BorderEvent
		Factory() Factory
		Schedule() Schedule
	}
)

const (
	ValueOrdinary ValueKind = iota
	ValueProjection
	ValuePhi
	ValueKeep
)

// String implements fmt.Stringer for debugging.
func (k ValueKind) String() string {
	switch k {
	case ValueOrdinary:
		return "ordinary"
	case ValueProjection:
		return "projection"
	case ValuePhi:
		return "phi"
	case ValueKeep:
		return "keep"
	default:
		return "invalid"
	}
}

// NextUseInfinite is the distance the oracle must return for a value with no
// further use (spec.md "Next-use distance").
const NextUseInfinite = ^uint32(0)
