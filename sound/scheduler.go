package sound

import (
	"go.uber.org/zap"

	"github.com/d1nch8g/lingolive/pcm"
)

// playback tracks one chunk handed to the output context
type playback struct {
	source   Source
	start    float64
	duration float64
}

// Scheduler chains response chunks back-to-back on the output clock and
// supports immediate interruption.
//
// A Scheduler is not safe for concurrent use: every method, and every
// function passed to post, must run on the owner's event loop.
type Scheduler struct {
	ctx        Context
	post       func(func())
	onSpeaking func(bool)
	logger     *zap.Logger

	nextStart float64
	active    map[*playback]struct{}
}

// NewScheduler creates a scheduler on ctx. Completion notifications from the
// audio thread are delivered through post.
func NewScheduler(ctx Context, post func(func()), logger *zap.Logger) *Scheduler {
	return &Scheduler{
		ctx:        ctx,
		post:       post,
		onSpeaking: func(bool) {},
		logger:     logger.With(zap.String("component", "scheduler")),
		active:     make(map[*playback]struct{}),
	}
}

// OnSpeaking registers the callback told when playback starts or drains
func (s *Scheduler) OnSpeaking(fn func(speaking bool)) {
	if fn == nil {
		fn = func(bool) {}
	}
	s.onSpeaking = fn
}

// Schedule plays chunk immediately after everything already scheduled and
// returns its start time on the output clock.
func (s *Scheduler) Schedule(chunk *pcm.Chunk) (float64, error) {
	// Clamped on every call, not only at utterance start; a no-op while the
	// timeline is ahead of the clock.
	if now := s.ctx.CurrentTime(); now > s.nextStart {
		s.nextStart = now
	}

	p := &playback{duration: chunk.Duration()}
	source, err := s.ctx.Play(chunk, s.nextStart, func() {
		s.post(func() { s.finished(p) })
	})
	if err != nil {
		return 0, err
	}
	// The clock may have passed nextStart before Play placed the chunk.
	p.source = source
	p.start = source.Start()

	s.nextStart = p.start + p.duration
	s.active[p] = struct{}{}
	s.onSpeaking(true)

	s.logger.Debug("chunk scheduled",
		zap.Float64("start", p.start),
		zap.Float64("duration", p.duration),
		zap.Int("active", len(s.active)),
	)
	return p.start, nil
}

// Interrupt stops every scheduled chunk and resets the timeline
func (s *Scheduler) Interrupt() {
	for p := range s.active {
		if err := p.source.Stop(); err != nil {
			s.logger.Debug("stop scheduled chunk", zap.Error(err))
		}
	}
	clear(s.active)
	s.nextStart = 0
	s.onSpeaking(false)
}

// Teardown interrupts playback and releases the output context
func (s *Scheduler) Teardown() error {
	s.Interrupt()
	if s.ctx.Closed() {
		return nil
	}
	return s.ctx.Close()
}

// Active returns the number of chunks scheduled and not yet finished
func (s *Scheduler) Active() int {
	return len(s.active)
}

// NextStartTime returns the earliest start of the next chunk
func (s *Scheduler) NextStartTime() float64 {
	return s.nextStart
}

func (s *Scheduler) finished(p *playback) {
	if _, ok := s.active[p]; !ok {
		return
	}
	delete(s.active, p)
	if len(s.active) == 0 {
		s.onSpeaking(false)
	}
}
