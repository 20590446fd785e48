package pipeline

// Stage is a step of one invocation.
type Stage int

// Stages in execution order. StageErrorHandling is entered from any stage after
// StageOldErrorLoaded when a step fails.
const (
	StageStart Stage = iota
	StageTokensChecked
	StageOldErrorLoaded
	StageFetched
	StageValidated
	StageSnapshotLoaded
	StageItems
	StageDone
	StageErrorHandling
)

var stageNames = [...]string{
	StageStart:          "start",
	StageTokensChecked:  "tokens_checked",
	StageOldErrorLoaded: "old_error_loaded",
	StageFetched:        "fetched",
	StageValidated:      "validated",
	StageSnapshotLoaded: "snapshot_loaded",
	StageItems:          "items",
	StageDone:           "done",
	StageErrorHandling:  "error_handling",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
