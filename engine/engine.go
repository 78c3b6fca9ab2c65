package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/d1nch8g/lingolive/audio"
	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/metrics"
	"github.com/d1nch8g/lingolive/pcm"
	"github.com/d1nch8g/lingolive/sound"
	"github.com/d1nch8g/lingolive/transcript"
	"github.com/d1nch8g/lingolive/tutor"
)

var (
	ErrSessionActive  = errors.New("learning session already active")
	ErrNotRunning     = errors.New("engine is not running")
	ErrAlreadyRunning = errors.New("engine is already running")
)

// User-facing notices
const (
	NoticePermission = "Microphone access denied. Allow microphone access and try again."
	NoticeConnection = "Connection error. Please check your internet and API key status."
	NoticeGeneric    = "Failed to start learning session."
)

// EngineConfig holds the configuration for the tutoring engine
type EngineConfig struct {
	Model              string
	Voice              string
	CaptureSampleRate  int
	PlaybackSampleRate int
	FramesPerBuffer    int
	ConnectTimeout     time.Duration
}

// Engine owns the learning session. Every mutation runs on the goroutine
// executing Run; other goroutines only post work to it.
type Engine struct {
	config      EngineConfig
	mic         audio.Microphone
	speakers    sound.Opener
	dialer      live.Dialer
	credentials func() (string, error)

	logger   *zap.Logger
	metrics  *metrics.Metrics
	observer Observer
	now      func() time.Time
	newID    func() string

	events   chan func()
	running  atomic.Bool
	loopDone chan struct{}

	// Owned by the loop
	generation uint64
	sess       *session
	userText   strings.Builder
	aiText     strings.Builder

	transcript *transcript.Log

	state       atomic.Int32
	speaking    atomic.Bool
	noticeMutex sync.RWMutex
	notice      string
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock replaces the timestamp source of transcript entries
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the id source of transcript entries
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates a new tutoring engine instance
func NewEngine(
	config EngineConfig,
	mic audio.Microphone,
	speakers sound.Opener,
	dialer live.Dialer,
	credentials func() (string, error),
	opts ...Option,
) *Engine {
	if config.Model == "" {
		config.Model = tutor.DefaultModel
	}
	if config.Voice == "" {
		config.Voice = tutor.DefaultVoice
	}
	if config.CaptureSampleRate == 0 {
		config.CaptureSampleRate = pcm.CaptureSampleRate
	}
	if config.PlaybackSampleRate == 0 {
		config.PlaybackSampleRate = pcm.PlaybackSampleRate
	}
	if config.FramesPerBuffer == 0 {
		config.FramesPerBuffer = 4096
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 15 * time.Second
	}

	e := &Engine{
		config:      config,
		mic:         mic,
		speakers:    speakers,
		dialer:      dialer,
		credentials: credentials,
		logger:      zap.NewNop(),
		observer:    nopObserver{},
		now:         time.Now,
		newID:       uuid.NewString,
		events:      make(chan func(), 64),
		loopDone:    make(chan struct{}),
		transcript:  transcript.NewLog(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(prometheus.NewRegistry())
	}
	e.logger = e.logger.With(zap.String("component", "engine"))

	return e
}

// Run executes the event loop until ctx is done. Any open session is torn
// down before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.loopDone)

	e.logger.Info("engine started")
	for {
		select {
		case <-ctx.Done():
			e.teardown()
			e.logger.Info("engine stopped")
			return nil
		case fn := <-e.events:
			fn()
		}
	}
}

// Start begins a learning session with the given parameters. It returns
// once the session is connecting; the open acknowledgment arrives later and
// is reported through the observer.
func (e *Engine) Start(settings tutor.Settings) error {
	return e.call(func() error { return e.start(settings) })
}

// Stop ends the current session. Stopping an idle engine is a no-op.
func (e *Engine) Stop() error {
	return e.call(func() error {
		e.teardown()
		return nil
	})
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Active reports whether a session is connecting or open
func (e *Engine) Active() bool {
	switch e.State() {
	case StateConnecting, StateOpen:
		return true
	}
	return false
}

// Speaking reports whether response audio is scheduled for playback
func (e *Engine) Speaking() bool {
	return e.speaking.Load()
}

// Notice returns the last user-facing error message, empty if none
func (e *Engine) Notice() string {
	e.noticeMutex.RLock()
	defer e.noticeMutex.RUnlock()
	return e.notice
}

// Transcript returns a copy of the finalized transcript entries
func (e *Engine) Transcript() []transcript.Entry {
	return e.transcript.Entries()
}

// ClearTranscript clears the finalized transcript entries
func (e *Engine) ClearTranscript() {
	e.transcript.Clear()
}

// post queues fn on the loop. It reports false once the loop has exited.
func (e *Engine) post(fn func()) bool {
	if !e.running.Load() {
		return false
	}
	select {
	case e.events <- fn:
		return true
	case <-e.loopDone:
		return false
	}
}

// postSession queues fn to run only while the session of generation gen is
// still the current one.
func (e *Engine) postSession(gen uint64, fn func()) bool {
	return e.post(func() {
		if !e.current(gen) {
			return
		}
		fn()
	})
}

func (e *Engine) current(gen uint64) bool {
	return e.sess != nil && e.sess.gen == gen
}

// call runs fn on the loop and waits for its result
func (e *Engine) call(fn func() error) error {
	result := make(chan error, 1)
	if !e.post(func() { result <- fn() }) {
		return ErrNotRunning
	}
	select {
	case err := <-result:
		return err
	case <-e.loopDone:
		return ErrNotRunning
	}
}

func (e *Engine) setState(s State) {
	if State(e.state.Swap(int32(s))) == s {
		return
	}
	e.metrics.SessionState.Set(float64(s))
	e.logger.Debug("state changed", zap.Stringer("state", s))
	e.observer.StateChanged(s)
}

func (e *Engine) setSpeaking(speaking bool) {
	if e.speaking.Swap(speaking) == speaking {
		return
	}
	e.observer.SpeakingChanged(speaking)
}

func (e *Engine) setNotice(notice string) {
	e.noticeMutex.Lock()
	e.notice = notice
	e.noticeMutex.Unlock()

	if notice != "" {
		e.observer.Notice(notice)
	}
}
