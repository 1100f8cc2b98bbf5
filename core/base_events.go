package core

// WarningEvent reports a recoverable problem that was absorbed locally.
type WarningEvent struct {
	Error string
}

func (e *WarningEvent) GetId() string {
	return "shared.warning"
}

// ShutdownEvent is fired when the orchestrator is asked to stop.
type ShutdownEvent struct {
	Reason string
}

func (e *ShutdownEvent) GetId() string {
	return "shared.shutdown"
}
