package models

// PrecomputeState defines the progress of the server's neighbor AI precompute.
type PrecomputeState string

const (
	PrecomputeStatePending   PrecomputeState = "pending"
	PrecomputeStateComputing PrecomputeState = "computing"
	PrecomputeStateIdle      PrecomputeState = "idle"
	PrecomputeStateDone      PrecomputeState = "done"
)

// Done reports whether the precompute has finished.
func (s PrecomputeState) Done() bool {
	return s == PrecomputeStateDone
}

// Idle reports that the engine holds no compute lock and has not finished,
// as after a failed trigger or before a run has picked up the lock.
func (s PrecomputeState) Idle() bool {
	return s == PrecomputeStateIdle
}

// CompletedNeighbor is a neighboring county whose governor decisions are ready.
type CompletedNeighbor struct {
	NeighborID   int64  `json:"neighbor_id"`
	CountyName   string `json:"county_name"`
	GovernorName string `json:"governor_name"`
}

// PrecomputeStatus is the polled progress of a precompute run.
type PrecomputeStatus struct {
	Status    PrecomputeState     `json:"status"`
	Completed []CompletedNeighbor `json:"completed"`
}
