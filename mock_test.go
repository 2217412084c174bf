package regalloc

// mockValue is the simplest possible Value oracle: a fixed class, optional
// pre-assignment, and the two boolean escape hatches spec.md's data model
// names.
type mockValue struct {
	id         ValueID
	class      RegClassID
	kind       ValueKind
	pre        RealReg
	hasPre     bool
	ignore     bool
	dontSpill  bool
}

func (v *mockValue) ID() ValueID      { return v.id }
func (v *mockValue) Class() RegClassID { return v.class }
func (v *mockValue) Kind() ValueKind  { return v.kind }
func (v *mockValue) PreAssigned() (RealReg, bool) {
	if !v.hasPre {
		return RealRegNone, false
	}
	return v.pre, true
}
func (v *mockValue) Ignore() bool    { return v.ignore }
func (v *mockValue) DontSpill() bool { return v.dontSpill }

// mockInstr is a minimal Instruction: a defs/uses list and the behavior
// flags the scheduler and allocator branch on.
type mockInstr struct {
	id           InstrID
	defs         []Operand
	uses         []Operand
	isPhi        bool
	isKeepLike   bool
	noSchedule   bool
	isTuple      bool
	constrained  bool
	isStart      bool
	liveThrough  []ValueID
}

func (i *mockInstr) ID() InstrID              { return i.id }
func (i *mockInstr) Defs() []Operand          { return i.defs }
func (i *mockInstr) Uses() []Operand          { return i.uses }
func (i *mockInstr) IsPhi() bool              { return i.isPhi }
func (i *mockInstr) IsKeepLike() bool         { return i.isKeepLike }
func (i *mockInstr) AppearsInSchedule() bool  { return !i.noSchedule }
func (i *mockInstr) IsTuple() bool            { return i.isTuple }
func (i *mockInstr) Constrained() bool        { return i.constrained }
func (i *mockInstr) IsStart() bool            { return i.isStart }
func (i *mockInstr) LiveThrough() []ValueID   { return i.liveThrough }

// mockBlock is a minimal Block backed by plain slices; Instructions() is
// mutable so applySchedule/scheduleBlock's reordering can be observed.
type mockBlock struct {
	id       BlockID
	entry    bool
	preds    []Block
	instrs   []Instruction
	phis     []Instruction
	liveIn   []ValueID
	idom     BlockID
	hasIdom  bool
}

func (b *mockBlock) ID() BlockID               { return b.id }
func (b *mockBlock) IsEntry() bool             { return b.entry }
func (b *mockBlock) Preds() []Block            { return b.preds }
func (b *mockBlock) Instructions() []Instruction { return b.instrs }
func (b *mockBlock) Phis() []Instruction       { return b.phis }
func (b *mockBlock) LiveIn() []ValueID         { return b.liveIn }
func (b *mockBlock) Idom() (BlockID, bool)     { return b.idom, b.hasIdom }

// mockPermHandle is the PermHandle produced by mockFactory.NewPerm.
type mockPermHandle struct {
	instr       Instruction
	projections []ValueID
}

func (p *mockPermHandle) Instruction() Instruction  { return p.instr }
func (p *mockPermHandle) Projection(i int) ValueID  { return p.projections[i] }

// mockFactory synthesizes fresh IDs for every node it creates, recording
// everything it builds so tests can assert on the inserted instructions.
// owner lets it register each freshly synthesized value's class with the
// function, the way a real Factory's backend would, so later ValueByID
// lookups on constraint-handler-inserted Copy/Perm results don't see a
// nil Value.
type mockFactory struct {
	nextInstr InstrID
	nextValue ValueID
	created   []Instruction
	owner     *mockFunction
	edgeReloads []struct {
		v    ValueID
		b    Block
		pred int
	}
}

func (f *mockFactory) newID() InstrID { f.nextInstr++; return f.nextInstr }
func (f *mockFactory) newValueID() ValueID { f.nextValue++; return f.nextValue }

func (f *mockFactory) registerLike(id ValueID, like ValueID) {
	if f.owner == nil {
		return
	}
	class := f.owner.values[like].class
	f.owner.values[id] = &mockValue{id: id, class: class}
}

func (f *mockFactory) NewPerm(b Block, values []ValueID) PermHandle {
	projs := make([]ValueID, len(values))
	for i, v := range values {
		projs[i] = f.newValueID()
		f.registerLike(projs[i], v)
	}
	instr := &mockInstr{id: f.newID(), isKeepLike: true}
	f.created = append(f.created, instr)
	return &mockPermHandle{instr: instr, projections: projs}
}

func (f *mockFactory) NewCopy(b Block, v ValueID) Instruction {
	newVal := f.newValueID()
	f.registerLike(newVal, v)
	instr := &mockInstr{id: f.newID(), defs: []Operand{{Value: newVal}}, uses: []Operand{{Value: v}}}
	f.created = append(f.created, instr)
	return instr
}

func (f *mockFactory) NewSpill(b Block, v ValueID) Instruction {
	instr := &mockInstr{id: f.newID(), uses: []Operand{{Value: v}}, noSchedule: false}
	f.created = append(f.created, instr)
	return instr
}

func (f *mockFactory) NewReload(b Block, spill Instruction) Instruction {
	newVal := f.newValueID()
	if len(spill.Uses()) > 0 {
		f.registerLike(newVal, spill.Uses()[0].Value)
	}
	instr := &mockInstr{id: f.newID(), defs: []Operand{{Value: newVal}}}
	f.created = append(f.created, instr)
	return instr
}

func (f *mockFactory) InsertReloadOnEdge(v ValueID, b Block, predIndex int) {
	f.edgeReloads = append(f.edgeReloads, struct {
		v    ValueID
		b    Block
		pred int
	}{v, b, predIndex})
}

// mockSchedule finds, for any anchor Instruction, whichever block currently
// holds it, and splices the new instruction into that block's slice. A real
// Schedule is anchor-addressed the same way (spec.md section 6), so a single
// Schedule value can serve a whole function.
type mockSchedule struct {
	blocks []*mockBlock
}

func indexOfInstr(instrs []Instruction, anchor Instruction) int {
	for i, in := range instrs {
		if in.ID() == anchor.ID() {
			return i
		}
	}
	return -1
}

func (s *mockSchedule) find(anchor Instruction) (*mockBlock, int) {
	for _, b := range s.blocks {
		if i := indexOfInstr(b.instrs, anchor); i >= 0 {
			return b, i
		}
	}
	return nil, -1
}

func (s *mockSchedule) AddBefore(anchor, n Instruction) {
	b, i := s.find(anchor)
	if b == nil {
		return
	}
	b.instrs = append(b.instrs[:i], append([]Instruction{n}, b.instrs[i:]...)...)
}

func (s *mockSchedule) AddAfter(anchor, n Instruction) {
	// An instruction already in a block is moved, not duplicated, the way
	// applySchedule relies on.
	if nb, j := s.find(n); nb != nil {
		nb.instrs = append(nb.instrs[:j:j], nb.instrs[j+1:]...)
	}
	b, i := s.find(anchor)
	if b == nil {
		return
	}
	b.instrs = append(b.instrs[:i+1], append([]Instruction{n}, b.instrs[i+1:]...)...)
}

func (s *mockSchedule) RemoveDead() {}

// mockFunction wires together a set of blocks/values with hand-authored
// oracle answers for interference, next-use distance, user counts, and
// border lists, enough to drive every component's tests deterministically
// without reimplementing a real liveness analysis.
type mockFunction struct {
	blocks      []Block
	domPreOrder []Block
	values      map[ValueID]*mockValue
	classes     map[RegClassID]RegClass
	userCounts  map[ValueID]int
	nextUse     map[ValueID][]uint32 // successive distances returned on each call
	nextUseIdx  map[ValueID]int
	borders     map[BlockID][]BorderEvent
	interferes  map[[2]ValueID]bool
	factory     *mockFactory
	schedule    *mockSchedule
}

func newMockFunction() *mockFunction {
	f := &mockFunction{
		values:     map[ValueID]*mockValue{},
		classes:    map[RegClassID]RegClass{},
		userCounts: map[ValueID]int{},
		nextUse:    map[ValueID][]uint32{},
		nextUseIdx: map[ValueID]int{},
		borders:    map[BlockID][]BorderEvent{},
		interferes: map[[2]ValueID]bool{},
		factory:    &mockFactory{},
	}
	f.factory.owner = f
	return f
}

// finalize must be called once all blocks are set on the function, wiring a
// single function-wide Schedule over them.
func (f *mockFunction) finalize() {
	blocks := make([]*mockBlock, len(f.blocks))
	for i, b := range f.blocks {
		blocks[i] = b.(*mockBlock)
	}
	f.schedule = &mockSchedule{blocks: blocks}
}

func (f *mockFunction) Blocks() []Block             { return f.blocks }
func (f *mockFunction) DominatorPreOrder() []Block  { return f.domPreOrder }
func (f *mockFunction) RegClass(c RegClassID) RegClass { return f.classes[c] }
func (f *mockFunction) ValueByID(id ValueID) Value  { return f.values[id] }

func (f *mockFunction) Interferes(a, b ValueID) bool {
	if a > b {
		a, b = b, a
	}
	return f.interferes[[2]ValueID{a, b}]
}

// setInterferes records that a and b interfere, for tests to wire up
// whatever local interference facts a scenario needs.
func (f *mockFunction) setInterferes(a, b ValueID) {
	if a > b {
		a, b = b, a
	}
	f.interferes[[2]ValueID{a, b}] = true
}

func (f *mockFunction) UserCount(v ValueID) int { return f.userCounts[v] }

func (f *mockFunction) NextUseDistance(_ Instruction, _ int, v ValueID, _ bool) uint32 {
	seq := f.nextUse[v]
	i := f.nextUseIdx[v]
	if i >= len(seq) {
		if len(seq) == 0 {
			return NextUseInfinite
		}
		return seq[len(seq)-1]
	}
	f.nextUseIdx[v] = i + 1
	return seq[i]
}

func (f *mockFunction) BorderList(b Block) []BorderEvent { return f.borders[b.ID()] }
func (f *mockFunction) Factory() Factory                 { return f.factory }
func (f *mockFunction) Schedule() Schedule                { return f.schedule }
