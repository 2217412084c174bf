// Package regalloc implements the chordal-coloring register allocator core:
// a list scheduler, a Belady-style spill chooser, and a chordal graph-coloring
// allocator that colors the post-spill program using the perfect elimination
// order implied by SSA dominance.
//
// The package does not own the IR: callers implement Function, Block,
// Instruction and Factory to expose their own representation, and this
// package mutates the schedule in place by inserting Perm, Copy, Spill and
// Reload nodes through the Factory.
package regalloc

// References:
// * https://pfalcon.github.io/ssabook/latest/book-full.pdf: Chapter 9 (liveness), Chapter 4 (SSA construction).
// * Hack, S. "Register Allocation for Programs in SSA Form" (chordal allocation, the bechordal.c algorithm).
// * Belady, L.A. "A study of replacement algorithms for a virtual-storage computer" (the spill heuristic).
