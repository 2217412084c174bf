package regalloc

// ChordalColor runs the full chordal-graph-coloring allocator of spec.md 4.3
// for one register class: constraint handling followed by the dominator-tree
// coloring walk. Callers that also need spill insertion should run
// ListScheduleGraph, then RunBelady, then ChordalColor, matching spec.md
// section 3's pipeline ordering (schedule -> spill -> color).
func ChordalColor(f Function, class RegClassID, opts *Options) {
	forced := HandleConstraints(f, class, NewAugmentingMatcher(), opts)
	ColorWalk(f, class, forced, opts)
}
