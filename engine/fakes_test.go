package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/metrics"
	"github.com/d1nch8g/lingolive/pcm"
	"github.com/d1nch8g/lingolive/sound"
	"github.com/d1nch8g/lingolive/transcript"
)

var errMicClosed = errors.New("microphone closed")

type fakeMic struct {
	mu       sync.Mutex
	openErr  error
	closeErr error
	opens    int
	closes   int
	closed   chan struct{}
	frames   chan []float32
}

func newFakeMic() *fakeMic {
	return &fakeMic{frames: make(chan []float32, 16)}
}

func (m *fakeMic) Open(sampleRate float64, framesPerBuffer int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opens++
	m.closed = make(chan struct{})
	return nil
}

func (m *fakeMic) Read(frame []float32) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed == nil {
		return errMicClosed
	}

	select {
	case f := <-m.frames:
		copy(frame, f)
		return nil
	case <-closed:
		return errMicClosed
	}
}

func (m *fakeMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	if m.closed != nil {
		close(m.closed)
		m.closed = nil
	}
	return m.closeErr
}

func (m *fakeMic) counts() (opens, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.closes
}

type fakeSource struct {
	mu      sync.Mutex
	start   float64
	onEnded func()
	stopped bool
}

func (s *fakeSource) Start() float64 { return s.start }

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return sound.ErrSourceEnded
	}
	s.stopped = true
	return nil
}

func (s *fakeSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeOutput struct {
	mu      sync.Mutex
	sources []*fakeSource
	starts  []float64
	closes  int
}

func (o *fakeOutput) CurrentTime() float64 { return 0 }

func (o *fakeOutput) Play(chunk *pcm.Chunk, when float64, onEnded func()) (sound.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closes > 0 {
		return nil, sound.ErrContextClosed
	}
	src := &fakeSource{start: when, onEnded: onEnded}
	o.sources = append(o.sources, src)
	o.starts = append(o.starts, when)
	return src, nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
	return nil
}

func (o *fakeOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closes > 0
}

func (o *fakeOutput) played() []*fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeSource(nil), o.sources...)
}

type inbound struct {
	msg live.Message
	err error
}

type fakeSession struct {
	mu         sync.Mutex
	sent       []pcm.Blob
	closes     int
	closeErr   error
	closePanic bool

	inbound   chan inbound
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		inbound: make(chan inbound, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSession) SendAudio(b pcm.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return live.ErrClosed
	default:
	}
	s.sent = append(s.sent, b)
	return nil
}

func (s *fakeSession) Receive() (live.Message, error) {
	select {
	case in := <-s.inbound:
		return in.msg, in.err
	case <-s.closed:
		return live.Message{}, live.ErrClosed
	}
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.closed) })
	if s.closePanic {
		panic("close exploded")
	}
	return s.closeErr
}

func (s *fakeSession) push(msg live.Message) {
	s.inbound <- inbound{msg: msg}
}

func (s *fakeSession) fail(err error) {
	s.inbound <- inbound{err: err}
}

func (s *fakeSession) sentBlobs() []pcm.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pcm.Blob(nil), s.sent...)
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeDialer struct {
	mu      sync.Mutex
	err     error
	session *fakeSession
	release chan struct{}
	configs []live.Config
}

func (d *fakeDialer) Dial(ctx context.Context, cfg live.Config) (live.Session, error) {
	d.mu.Lock()
	d.configs = append(d.configs, cfg)
	release, err, sess := d.release, d.err, d.session
	d.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (d *fakeDialer) dials() []live.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]live.Config(nil), d.configs...)
}

type recordingObserver struct {
	mu       sync.Mutex
	states   []State
	speaking []bool
	entries  []transcript.Entry
	notices  []string
}

func (o *recordingObserver) StateChanged(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordingObserver) SpeakingChanged(speaking bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.speaking = append(o.speaking, speaking)
}

func (o *recordingObserver) TranscriptAppended(entry transcript.Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, entry)
}

func (o *recordingObserver) Notice(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, message)
}

func (o *recordingObserver) stateHistory() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.states...)
}

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type harness struct {
	engine   *Engine
	mic      *fakeMic
	dialer   *fakeDialer
	session  *fakeSession
	observer *recordingObserver
	metrics  *metrics.Metrics
	apiKey   string

	mu      sync.Mutex
	outputs []*fakeOutput
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		mic:      newFakeMic(),
		session:  newFakeSession(),
		observer: &recordingObserver{},
		metrics:  metrics.New(prometheus.NewRegistry()),
		apiKey:   "test-key",
	}
	h.dialer = &fakeDialer{session: h.session}

	var ids int
	h.engine = NewEngine(
		EngineConfig{FramesPerBuffer: 4, ConnectTimeout: time.Second},
		h.mic,
		h.openOutput,
		h.dialer,
		func() (string, error) { return h.apiKey, nil },
		WithLogger(zap.NewNop()),
		WithMetrics(h.metrics),
		WithObserver(h.observer),
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, h.engine.running.Load, time.Second, time.Millisecond)
	return h
}

func (h *harness) openOutput(sampleRate float64) (sound.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := &fakeOutput{}
	h.outputs = append(h.outputs, out)
	return out, nil
}

func (h *harness) output() *fakeOutput {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.outputs) == 0 {
		return nil
	}
	return h.outputs[len(h.outputs)-1]
}

func (h *harness) outputCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.outputs)
}

// sync waits until everything queued on the loop before it has run
func (h *harness) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.call(func() error { return nil }))
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.engine.State() == want },
		2*time.Second, time.Millisecond, "state never became %s", want)
}

// waitNotice waits for the notice and for the loop step that set it to finish
func (h *harness) waitNotice(t *testing.T, want string) {
	t.Helper()
	require.Eventually(t, func() bool { return h.engine.Notice() == want },
		2*time.Second, time.Millisecond, "notice never became %q", want)
	h.sync(t)
}
