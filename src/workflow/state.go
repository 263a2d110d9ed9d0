package workflow

// Step is the current position of an upload session in the receipt workflow.
type Step string

const (
	StepIdle        Step = "idle"
	StepUploading   Step = "uploading"
	StepExtracting  Step = "extracting"
	StepAnalyzing   Step = "analyzing"
	StepManualEntry Step = "manual-entry"
	StepCompleted   Step = "completed"
	StepError       Step = "error"
)

// validNext enumerates every forward transition the workflow may take, so a
// reachable-but-unhandled step cannot exist. Close/reset back to idle is
// permitted from any step and handled separately.
var validNext = map[Step][]Step{
	StepIdle:        {StepUploading},
	StepUploading:   {StepExtracting, StepError},
	StepExtracting:  {StepCompleted, StepManualEntry},
	StepManualEntry: {StepAnalyzing},
	StepAnalyzing:   {StepCompleted},
	StepCompleted:   {StepManualEntry, StepError},
	StepError:       {StepManualEntry, StepIdle},
}

// CanTransition reports whether moving from s to next is a legal forward
// transition.
func (s Step) CanTransition(next Step) bool {
	for _, allowed := range validNext[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InFlight reports whether a remote call is pending in this step. While in
// flight no user action other than close is accepted, so a session never runs
// two overlapping operations.
func (s Step) InFlight() bool {
	return s == StepUploading || s == StepExtracting || s == StepAnalyzing
}
