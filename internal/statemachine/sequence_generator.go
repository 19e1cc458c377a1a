// Package statemachine provides the example state-transition function
// used by tests and the demo CLI: the original's statemachine.
// sequence_generator (referenced by original_source/cluster/
// member_replicated.py but not itself included in the retrieval pack).
// It is reconstructed here in the teacher's idiom rather than translated
// from any other-language source, since none was retrieved.
package statemachine

// Sequence is the state threaded through Generator, the execute_fn of
// spec.md §6: Generator takes the current Sequence and one decided input,
// and deterministically returns the new Sequence plus an output sent back
// to the invoking client. Determinism and totality are the only two
// properties required of it.
//
// Sequence is the running log of every input appended so far, in the
// order the replicated log decided them — identical on every correct
// member by construction.
type Sequence struct {
	Log []int64
}

// Generator is a ready execute_fn for Sequence: it appends input to the
// log and returns, as output, the sequence number (1-based position)
// just assigned to it — the simplest possible illustration of every
// client seeing one agreed, gapless numbering of its inputs.
func Generator(state Sequence, input int64) (Sequence, int64) {
	next := make([]int64, len(state.Log)+1)
	copy(next, state.Log)
	next[len(state.Log)] = input
	return Sequence{Log: next}, int64(len(next))
}
