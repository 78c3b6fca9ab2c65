package sound

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/d1nch8g/lingolive/pcm"
)

// ContextConfig holds the output stream parameters
type ContextConfig struct {
	SampleRate      float64
	FramesPerBuffer int
}

// PortaudioContext plays scheduled chunks through the default output device
type PortaudioContext struct {
	stream *portaudio.Stream
	mixer  *mixer
	config ContextConfig
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ Context = (*PortaudioContext)(nil)

func NewPortaudioContext(config ContextConfig, logger *zap.Logger) *PortaudioContext {
	return &PortaudioContext{
		config: config,
		mixer:  newMixer(config.SampleRate),
		logger: logger.With(zap.String("component", "output")),
	}
}

// PortaudioOpener returns an Opener producing started portaudio contexts
func PortaudioOpener(framesPerBuffer int, logger *zap.Logger) Opener {
	return func(sampleRate float64) (Context, error) {
		ctx := NewPortaudioContext(ContextConfig{
			SampleRate:      sampleRate,
			FramesPerBuffer: framesPerBuffer,
		}, logger)
		if err := ctx.Open(); err != nil {
			ctx.mixer.close()
			return nil, err
		}
		return ctx, nil
	}
}

// Open initializes portaudio and starts the output callback
func (c *PortaudioContext) Open() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		0,
		1,
		c.config.SampleRate,
		c.config.FramesPerBuffer,
		c.mixer.render,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start output stream: %w", err)
	}

	c.stream = stream
	c.logger.Debug("output opened", zap.Float64("sample_rate", c.config.SampleRate))
	return nil
}

func (c *PortaudioContext) CurrentTime() float64 {
	return c.mixer.currentTime()
}

func (c *PortaudioContext) Play(chunk *pcm.Chunk, when float64, onEnded func()) (Source, error) {
	v, err := c.mixer.add(chunk, when, onEnded)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *PortaudioContext) Close() error {
	c.closeOnce.Do(func() {
		c.mixer.close()
		if c.stream == nil {
			return
		}
		if err := c.stream.Stop(); err != nil {
			c.closeErr = err
		}
		if err := c.stream.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
		portaudio.Terminate()
	})
	return c.closeErr
}

func (c *PortaudioContext) Closed() bool {
	return c.mixer.isClosed()
}
