package pipeline

import "github.com/kailas-cloud/catalogindex/internal/metrics"

// State is a pipeline step.
type State string

// Pipeline states, in order. Failed is reachable from any of them.
const (
	StateIdle           State = "idle"
	StateIndexRecreated State = "index_recreated"
	StateNormalized     State = "normalized"
	StateEmbedded       State = "embedded"
	StateLoaded         State = "loaded"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

var allStates = []State{
	StateIdle, StateIndexRecreated, StateNormalized,
	StateEmbedded, StateLoaded, StateDone, StateFailed,
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func publishState(current State) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		metrics.PipelineStage.WithLabelValues(string(s)).Set(v)
	}
}
