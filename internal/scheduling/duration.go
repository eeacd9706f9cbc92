package scheduling

const (
	// SlotGranularityMinutes is the step between candidate start times. Durations are
	// rounded up to a multiple of it so slot boundaries stay aligned.
	SlotGranularityMinutes = 15
	// BufferMinutes is added to the task time of every appointment to absorb overruns.
	BufferMinutes = 15
)

// DurationState is derived from the attached tasks and never edited directly.
type DurationState struct {
	BaseDuration int `json:"base_duration"`
	Duration     int `json:"duration"`
}

// ComputeDuration returns base+buffer rounded up to the next SlotGranularityMinutes boundary.
func ComputeDuration(baseDuration, bufferMinutes int) int {
	if baseDuration < 0 {
		baseDuration = 0
	}
	if bufferMinutes < 0 {
		bufferMinutes = 0
	}
	return roundUp(baseDuration+bufferMinutes, SlotGranularityMinutes)
}

// ComputeDurationState sums the estimated time of tasks and applies the buffer policy.
func ComputeDurationState(tasks []MedicalTask) DurationState {
	base := 0
	for _, t := range tasks {
		base += t.EstimatedTime
	}
	return DurationState{
		BaseDuration: base,
		Duration:     ComputeDuration(base, BufferMinutes),
	}
}

func roundUp(n, multiple int) int {
	if rem := n % multiple; rem != 0 {
		return n + multiple - rem
	}
	return n
}
