package sound

import (
	"errors"

	"github.com/d1nch8g/lingolive/pcm"
)

var (
	// ErrContextClosed is returned when playing on a released output
	ErrContextClosed = errors.New("audio output closed")

	// ErrSourceEnded is returned when stopping a source that already finished
	ErrSourceEnded = errors.New("audio source already ended")
)

// Context defines the interface for a clocked audio output
type Context interface {
	// CurrentTime returns the output clock in seconds since the context opened
	CurrentTime() float64

	// Play schedules chunk to start at when (seconds on the output clock).
	// A when already in the past starts at the current clock instead; the
	// returned Source reports the start actually used.
	// onEnded fires once, off the audio thread, when playback completes naturally.
	Play(chunk *pcm.Chunk, when float64, onEnded func()) (Source, error)

	// Close releases the output device
	Close() error

	// Closed reports whether Close has been called
	Closed() bool
}

// Source is one scheduled chunk
type Source interface {
	// Start returns the time on the output clock the chunk starts playing
	Start() float64

	// Stop cancels playback immediately
	Stop() error
}

// Opener creates an output context running at sampleRate
type Opener func(sampleRate float64) (Context, error)
