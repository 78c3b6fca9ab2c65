package engine

import "github.com/d1nch8g/lingolive/transcript"

// State is the lifecycle state of the learning session
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Observer is told about changes the user should see. Methods are called
// on the engine loop and must return quickly.
type Observer interface {
	StateChanged(state State)
	SpeakingChanged(speaking bool)
	TranscriptAppended(entry transcript.Entry)
	Notice(message string)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)                  {}
func (nopObserver) SpeakingChanged(bool)                {}
func (nopObserver) TranscriptAppended(transcript.Entry) {}
func (nopObserver) Notice(string)                       {}
