// Package live defines the duplex session with the remote conversational
// model: what is sent when a session opens, the shape of inbound messages
// and the errors a transport reports.
package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/d1nch8g/lingolive/pcm"
)

// ErrClosed is returned by operations on a session that has been closed
var ErrClosed = errors.New("live session closed")

// Config is the session open configuration
type Config struct {
	Model                      string
	APIKey                     string
	AudioResponseRequested     bool
	Voice                      string
	CaptureInputTranscription  bool
	CaptureOutputTranscription bool
	SystemPrompt               string
}

// Message is one inbound server message. Every field is optional and a
// single message may carry any combination of them.
type Message struct {
	// AudioPayload is base64 PCM16 LE mono at 24 kHz
	AudioPayload             string
	Interrupted              bool
	InputTranscriptionDelta  string
	OutputTranscriptionDelta string
	TurnComplete             bool
}

// Empty reports whether the message carries nothing the session acts on
func (m Message) Empty() bool {
	return m == Message{}
}

// Session is an open duplex connection. SendAudio and Receive may be called
// from different goroutines; neither may be called concurrently with itself.
type Session interface {
	// SendAudio streams one encoded microphone frame
	SendAudio(blob pcm.Blob) error

	// Receive blocks for the next server message. A remote close is reported
	// as *TransportClosedError, a broken connection as *ConnectionError.
	Receive() (Message, error)

	// Close ends the session. Closing twice is a no-op.
	Close() error
}

// Dialer opens sessions. Dial returns once the remote end has acknowledged
// the configuration, so a returned session is open.
type Dialer interface {
	Dial(ctx context.Context, config Config) (Session, error)
}

// ConnectionError reports a failure to open or keep the transport,
// including authentication rejections.
type ConnectionError struct {
	Op         string
	StatusCode int
	CloseCode  int
	Err        error
}

func (e *ConnectionError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("live %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	case e.CloseCode != 0:
		return fmt.Sprintf("live %s failed (close %d): %v", e.Op, e.CloseCode, e.Err)
	default:
		return fmt.Sprintf("live %s failed: %v", e.Op, e.Err)
	}
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Auth reports whether the remote end rejected the credential
func (e *ConnectionError) Auth() bool {
	switch e.StatusCode {
	case 401, 403:
		return true
	}
	// Policy violation is how the Live endpoint rejects an invalid key.
	return e.CloseCode == 1008
}

// TransportClosedError reports that the remote end closed the session
type TransportClosedError struct {
	Code   int
	Reason string
}

func (e *TransportClosedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("live session closed by remote (code %d)", e.Code)
	}
	return fmt.Sprintf("live session closed by remote (code %d): %s", e.Code, e.Reason)
}
