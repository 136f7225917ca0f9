package orchestrator

import "github.com/papercast-ai/papercast/internal/types"

// transitions is the only legal transition table. Anything outside it is a
// programmer error and aborts the job.
var transitions = map[types.State][]types.State{
	types.StateUploaded:        {types.StateIndexing, types.StateFailed},
	types.StateIndexing:        {types.StatePlanning, types.StateFailed},
	types.StatePlanning:        {types.StateDrafting, types.StateFailed},
	types.StateDrafting:        {types.StateFactChecking, types.StateFailed},
	types.StateFactChecking:    {types.StateRewriting, types.StateGeneratingAudio, types.StateFailed},
	types.StateRewriting:       {types.StateFactChecking, types.StateFailed},
	types.StateGeneratingAudio: {types.StateStitching, types.StateFailed},
	types.StateStitching:       {types.StateCompleted, types.StateFailed},
	types.StateCompleted:       {},
	types.StateFailed:          {},
}

// LegalTransition reports whether from -> to is in the table.
func LegalTransition(from, to types.State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// progressTable fixes the progress percentage reported on entering a state.
var progressTable = map[types.State]float64{
	types.StateUploaded:        0,
	types.StateIndexing:        10,
	types.StatePlanning:        20,
	types.StateDrafting:        50,
	types.StateFactChecking:    70,
	types.StateRewriting:       75,
	types.StateGeneratingAudio: 85,
	types.StateStitching:       95,
	types.StateCompleted:       100,
}

// ProgressFor returns the progress percentage for a state. A failed job
// keeps the progress it had.
func ProgressFor(s types.State, current float64) float64 {
	if s == types.StateFailed {
		return current
	}
	if p, ok := progressTable[s]; ok {
		// Progress never moves backwards across successful transitions;
		// the fact_checking <-> rewriting loop would otherwise oscillate.
		if p < current {
			return current
		}
		return p
	}
	return current
}
