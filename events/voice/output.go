package voice

type ListeningStartedEvent struct{}

func (e *ListeningStartedEvent) GetId() string {
	return "voice.listening_started"
}

// ListeningEndedEvent is fired once per capture session, whatever ended it.
type ListeningEndedEvent struct {
	Reason string // "stopped", "ended", "error", "interrupted"
}

func (e *ListeningEndedEvent) GetId() string {
	return "voice.listening_ended"
}

type InterimTranscriptEvent struct {
	Text string
}

func (e *InterimTranscriptEvent) GetId() string {
	return "voice.transcript.interim"
}

type FinalTranscriptEvent struct {
	Text string
}

func (e *FinalTranscriptEvent) GetId() string {
	return "voice.transcript.final"
}

type SpeakingStartedEvent struct {
	Text  string
	Voice string // empty when the platform default is used
}

func (e *SpeakingStartedEvent) GetId() string {
	return "voice.speaking_started"
}

type SpeakingEndedEvent struct {
	Reason string // "completed", "stopped", "error", "replaced", "interrupted"
}

func (e *SpeakingEndedEvent) GetId() string {
	return "voice.speaking_ended"
}
