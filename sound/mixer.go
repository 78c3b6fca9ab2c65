package sound

import (
	"math"
	"sync"

	"github.com/d1nch8g/lingolive/pcm"
)

// voice is one chunk placed on the mixer timeline
type voice struct {
	mixer      *mixer
	samples    []float32
	startFrame int64
	onEnded    func()
}

func (v *voice) Start() float64 {
	return float64(v.startFrame) / v.mixer.sampleRate
}

func (v *voice) Stop() error {
	return v.mixer.remove(v)
}

// completionQueue is how many rendered buffers' worth of finished voices may
// wait for the notifier
const completionQueue = 32

// mixer sums scheduled voices sample-accurately on a frame clock
type mixer struct {
	sampleRate  float64
	frame       int64
	voices      []*voice
	closed      bool
	completions chan []func()
	mu          sync.Mutex
}

func newMixer(sampleRate float64) *mixer {
	m := &mixer{
		sampleRate:  sampleRate,
		completions: make(chan []func(), completionQueue),
	}
	go m.notify()
	return m
}

// notify runs completion callbacks in render order until the mixer closes
func (m *mixer) notify() {
	for batch := range m.completions {
		runAll(batch)
	}
}

func runAll(batch []func()) {
	for _, fn := range batch {
		fn()
	}
}

func (m *mixer) currentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.frame) / m.sampleRate
}

func (m *mixer) add(chunk *pcm.Chunk, when float64, onEnded func()) (*voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrContextClosed
	}

	v := &voice{
		mixer:      m,
		samples:    chunk.Mono(),
		startFrame: int64(math.Round(when * m.sampleRate)),
		onEnded:    onEnded,
	}
	// A start time already in the past plays from the first sample right away.
	if v.startFrame < m.frame {
		v.startFrame = m.frame
	}
	m.voices = append(m.voices, v)
	return v, nil
}

func (m *mixer) remove(target *voice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, v := range m.voices {
		if v == target {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			return nil
		}
	}
	return ErrSourceEnded
}

// render fills out with the next len(out) mono frames and advances the clock.
// It runs on the audio thread, so completion callbacks are queued for notify.
func (m *mixer) render(out []float32) {
	m.mu.Lock()

	for i := range out {
		out[i] = 0
	}

	base := m.frame
	n := int64(len(out))
	var ended []func()
	kept := m.voices[:0]

	for _, v := range m.voices {
		length := int64(len(v.samples))
		for i := int64(0); i < n; i++ {
			idx := base + i - v.startFrame
			if idx < 0 {
				continue
			}
			if idx >= length {
				break
			}
			out[i] += v.samples[idx]
		}

		if base+n-v.startFrame >= length {
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
		} else {
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = kept
	m.frame += n

	if len(ended) > 0 && !m.closed {
		select {
		case m.completions <- ended:
		default:
			// The notifier is behind; never block the audio thread on it.
			go runAll(ended)
		}
	}

	m.mu.Unlock()

	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}
}

func (m *mixer) close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.closed = true
	m.voices = nil
	close(m.completions)
	return true
}

func (m *mixer) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
