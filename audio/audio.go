package audio

import "fmt"

// Microphone defines the interface for microphone input implementations
type Microphone interface {
	// Open acquires the input device. A denied or missing device is
	// reported as *PermissionError and leaves nothing open.
	Open(sampleRate float64, framesPerBuffer int) error

	// Read blocks until a full frame of samples in [-1, 1] is available
	Read(frame []float32) error

	// Close releases the input device. Closing twice is a no-op.
	Close() error
}

// PermissionError reports that microphone access was not granted
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("microphone access denied: %v", e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}
