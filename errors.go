package regalloc

import "fmt"

// ErrorKind classifies the fatal conditions spec.md section 7 enumerates.
// All of them are programmer errors (the IR was not register-pressure
// faithful, or an oracle disagreed with itself) and abort the pass; there is
// no recoverable path, matching the teacher's panic(fmt.Sprintf("BUG: ...")).
type ErrorKind int

const (
	// ErrInfeasibleMatch means bipartite matching could not give every left
	// node a distinct color (spec 4.3.1 step 6).
	ErrInfeasibleMatch ErrorKind = iota
	// ErrColorsExhausted means the coloring walk found no free register for
	// a local def (spec 4.3.2, "Def event, local def without pre-assignment").
	ErrColorsExhausted
	// ErrPreColorConflict means a pre-assigned register was already occupied
	// in the coloring walk (spec 4.3.2, "local def with pre-assigned register").
	ErrPreColorConflict
	// ErrOracleDisagreement means the Belady chooser needed to reload a value
	// that is missing from its working set but was never spilled, so the
	// liveness information and the working sets disagree (spec 7).
	ErrOracleDisagreement
	// ErrScratchOverflow means more than RegClass.Size left nodes were added
	// to one bipartite instance (spec 7, "Internal scratch overflow").
	ErrScratchOverflow
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInfeasibleMatch:
		return "infeasible match"
	case ErrColorsExhausted:
		return "colors exhausted"
	case ErrPreColorConflict:
		return "pre-color conflict"
	case ErrOracleDisagreement:
		return "oracle disagreement"
	case ErrScratchOverflow:
		return "scratch overflow"
	default:
		return "unknown"
	}
}

// AllocError is the payload carried by every panic this package raises. It
// generalizes the teacher's bare "BUG: ..." strings into a typed value a
// recover()-ing caller can inspect, while keeping the same abort-on-the-spot
// behavior spec.md section 7 requires.
type AllocError struct {
	Kind        ErrorKind
	Class       RegClassID
	Instruction InstrID
	Value       ValueID
	Msg         string
}

// Error implements the error interface.
func (e *AllocError) Error() string {
	return fmt.Sprintf("regalloc: %s (class=%d instr=%d value=%s): %s",
		e.Kind, e.Class, e.Instruction, e.Value, e.Msg)
}

// abort panics with an *AllocError. There is no recoverable continuation
// after any of these per spec.md section 7.
func abort(kind ErrorKind, class RegClassID, instr InstrID, v ValueID, format string, args ...any) {
	panic(&AllocError{
		Kind:        kind,
		Class:       class,
		Instruction: instr,
		Value:       v,
		Msg:         fmt.Sprintf(format, args...),
	})
}
