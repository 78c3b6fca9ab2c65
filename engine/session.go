package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/d1nch8g/lingolive/audio"
	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/pcm"
	"github.com/d1nch8g/lingolive/sound"
	"github.com/d1nch8g/lingolive/tutor"
)

// session holds the resources of one learning session
type session struct {
	gen       uint64
	settings  tutor.Settings
	startedAt time.Time

	micOpen    bool
	scheduler  *sound.Scheduler
	cancelDial context.CancelFunc
	conn       live.Session
	pipeline   *audio.Pipeline
}

func (e *Engine) start(settings tutor.Settings) error {
	if e.State() != StateIdle {
		return ErrSessionActive
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	e.setNotice("")

	apiKey, err := e.credentials()
	if err == nil && apiKey == "" {
		err = errors.New("API key is not set")
	}
	if err != nil {
		err = &live.ConnectionError{Op: "credentials", Err: err}
		e.metrics.SessionErrors.WithLabelValues(errorKind(err)).Inc()
		e.setNotice(NoticeConnection)
		e.logger.Error("failed to read credentials", zap.Error(err))
		return err
	}

	e.generation++
	s := &session{gen: e.generation, settings: settings, startedAt: time.Now()}
	e.sess = s
	e.metrics.SessionsStarted.Inc()
	e.setState(StateConnecting)

	if err := e.mic.Open(float64(e.config.CaptureSampleRate), e.config.FramesPerBuffer); err != nil {
		e.fail(fmt.Errorf("failed to open microphone: %w", err))
		return err
	}
	s.micOpen = true

	output, err := e.speakers(float64(e.config.PlaybackSampleRate))
	if err != nil {
		e.fail(fmt.Errorf("failed to open audio output: %w", err))
		return err
	}
	gen := s.gen
	s.scheduler = sound.NewScheduler(output, func(fn func()) { e.postSession(gen, fn) }, e.logger)
	s.scheduler.OnSpeaking(e.setSpeaking)

	cfg := live.Config{
		Model:                      e.config.Model,
		APIKey:                     apiKey,
		AudioResponseRequested:     true,
		Voice:                      e.config.Voice,
		CaptureInputTranscription:  true,
		CaptureOutputTranscription: true,
		SystemPrompt:               tutor.SystemPrompt(settings),
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), e.config.ConnectTimeout)
	s.cancelDial = cancel
	go e.dial(dialCtx, s, cfg)

	e.logger.Info("learning session connecting",
		zap.String("native", string(settings.Native)),
		zap.String("target", string(settings.Target)),
		zap.String("level", string(settings.Level)),
	)
	return nil
}

func (e *Engine) dial(ctx context.Context, s *session, cfg live.Config) {
	conn, err := e.dialer.Dial(ctx, cfg)

	posted := e.post(func() {
		if !e.current(s.gen) {
			// The session was stopped while dialing.
			if conn != nil {
				conn.Close()
			}
			return
		}
		e.opened(conn, err)
	})
	if !posted && conn != nil {
		conn.Close()
	}
}

func (e *Engine) opened(conn live.Session, err error) {
	s := e.sess
	s.cancelDial()

	if err != nil {
		var connErr *live.ConnectionError
		if !errors.As(err, &connErr) {
			err = &live.ConnectionError{Op: "dial", Err: err}
		}
		e.fail(err)
		return
	}
	s.conn = conn

	e.metrics.ConnectDuration.Observe(time.Since(s.startedAt).Seconds())
	e.setState(StateOpen)
	e.logger.Info("learning session open")

	go e.receive(s.gen, conn)

	gen := s.gen
	s.pipeline = audio.NewPipeline(e.mic, e.config.FramesPerBuffer, e.logger)
	s.pipeline.Start(func(frame []float32) {
		posted := e.post(func() {
			if !e.current(gen) || e.sess.conn == nil {
				e.metrics.FramesDropped.Inc()
				return
			}
			e.sendFrame(frame)
		})
		if !posted {
			e.metrics.FramesDropped.Inc()
		}
	})
}

func (e *Engine) receive(gen uint64, conn live.Session) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			e.postSession(gen, func() { e.transportEnded(err) })
			return
		}
		if !e.postSession(gen, func() { e.handleMessage(msg) }) {
			return
		}
	}
}

func (e *Engine) sendFrame(frame []float32) {
	blob := pcm.EncodeRate(frame, e.config.CaptureSampleRate)
	if err := e.sess.conn.SendAudio(blob); err != nil {
		if errors.Is(err, live.ErrClosed) {
			e.metrics.FramesDropped.Inc()
			return
		}
		e.fail(fmt.Errorf("failed to send audio: %w", err))
		return
	}
	e.metrics.FramesSent.Inc()
}

func (e *Engine) transportEnded(err error) {
	var closed *live.TransportClosedError
	switch {
	case errors.Is(err, live.ErrClosed):
	case errors.As(err, &closed):
		e.logger.Info("learning session closed by remote",
			zap.Int("code", closed.Code),
			zap.String("reason", closed.Reason),
		)
		e.teardown()
	default:
		e.fail(err)
	}
}

// fail tears the session down and surfaces a notice matching the error
func (e *Engine) fail(err error) {
	e.setState(StateErrored)
	e.metrics.SessionErrors.WithLabelValues(errorKind(err)).Inc()
	e.logger.Error("learning session failed", zap.Error(err))

	switch errorKind(err) {
	case "permission":
		e.setNotice(NoticePermission)
	case "connection":
		e.setNotice(NoticeConnection)
	default:
		e.setNotice(NoticeGeneric)
	}

	e.teardown()
}

func errorKind(err error) string {
	var permErr *audio.PermissionError
	var connErr *live.ConnectionError
	switch {
	case errors.As(err, &permErr):
		return "permission"
	case errors.As(err, &connErr):
		return "connection"
	default:
		return "generic"
	}
}

// teardown releases every resource of the current session. Each step runs
// even when an earlier one fails or panics. Safe to call in any state.
func (e *Engine) teardown() {
	s := e.sess
	e.sess = nil

	if s != nil {
		e.setState(StateClosing)

		var errs error
		step := func(name string, fn func() error) {
			defer func() {
				if r := recover(); r != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s: panic: %v", name, r))
				}
			}()
			if err := fn(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}

		step("cancel dial", func() error {
			if s.cancelDial != nil {
				s.cancelDial()
			}
			return nil
		})
		step("close session", func() error {
			if s.conn == nil {
				return nil
			}
			return s.conn.Close()
		})
		step("stop capture", func() error {
			if s.pipeline != nil {
				s.pipeline.Stop()
			}
			return nil
		})
		step("close microphone", func() error {
			if !s.micOpen {
				return nil
			}
			return e.mic.Close()
		})
		step("stop playback", func() error {
			if s.scheduler == nil {
				return nil
			}
			return s.scheduler.Teardown()
		})

		if errs != nil {
			e.logger.Warn("learning session cleanup incomplete", zap.Error(errs))
		} else {
			e.logger.Info("learning session closed")
		}
	}

	e.userText.Reset()
	e.aiText.Reset()
	e.setSpeaking(false)
	e.setState(StateIdle)
}
