package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

var errNotOpen = errors.New("microphone not opened")

// PortaudioMicrophone reads mono float32 frames from the default input device
type PortaudioMicrophone struct {
	stream      *portaudio.Stream
	audioBuffer []float32
	logger      *zap.Logger
	mu          sync.Mutex
}

var _ Microphone = (*PortaudioMicrophone)(nil)

func NewPortaudioMicrophone(logger *zap.Logger) *PortaudioMicrophone {
	return &PortaudioMicrophone{
		logger: logger.With(zap.String("component", "microphone")),
	}
}

func (m *PortaudioMicrophone) Open(sampleRate float64, framesPerBuffer int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		portaudio.Terminate()
		return &PermissionError{Err: err}
	}

	buffer := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, framesPerBuffer, buffer)
	if err != nil {
		portaudio.Terminate()
		return &PermissionError{Err: err}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return &PermissionError{Err: err}
	}

	m.stream = stream
	m.audioBuffer = buffer
	m.logger.Debug("microphone opened",
		zap.Float64("sample_rate", sampleRate),
		zap.Int("frames_per_buffer", framesPerBuffer),
	)
	return nil
}

func (m *PortaudioMicrophone) Read(frame []float32) error {
	// Held across the blocking read so Close never tears the stream down mid-read.
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return errNotOpen
	}

	if err := m.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return err
		}
		m.logger.Debug("input overflowed")
	}

	copy(frame, m.audioBuffer)
	return nil
}

func (m *PortaudioMicrophone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	var err error
	if stopErr := m.stream.Stop(); stopErr != nil {
		err = stopErr
	}
	if closeErr := m.stream.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	portaudio.Terminate()

	m.stream = nil
	m.audioBuffer = nil
	return err
}
