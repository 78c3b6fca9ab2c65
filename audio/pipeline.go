package audio

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pipeline continuously reads fixed-size frames from a microphone and hands
// each one to a sink in capture order.
type Pipeline struct {
	mic       Microphone
	frameSize int
	logger    *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPipeline(mic Microphone, frameSize int, logger *zap.Logger) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		mic:       mic,
		frameSize: frameSize,
		logger:    logger.With(zap.String("component", "capture")),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start launches the reader. The sink receives a fresh copy of every frame
// and must not block for longer than one frame period.
func (p *Pipeline) Start(sink func(frame []float32)) {
	p.startOnce.Do(func() {
		go p.run(sink)
	})
}

// Stop ends capture. Safe to call any number of times, before or after Start.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.startOnce.Do(func() { close(p.done) })
	})
}

// Done is closed once the reader has exited
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func (p *Pipeline) run(sink func(frame []float32)) {
	defer close(p.done)

	buffer := make([]float32, p.frameSize)
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		if err := p.mic.Read(buffer); err != nil {
			if p.ctx.Err() == nil {
				p.logger.Warn("error reading audio", zap.Error(err))
			}
			return
		}

		// Frames read while stopping belong to a closed session.
		if p.ctx.Err() != nil {
			return
		}

		frame := make([]float32, len(buffer))
		copy(frame, buffer)
		sink(frame)
	}
}
