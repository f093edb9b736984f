package domain

// RunState is the state of the run controller.
type RunState string

const (
	StateIdle     RunState = "idle"
	StateRunning  RunState = "running"
	StateStopping RunState = "stopping"
)
