// Package genaisdk opens Live sessions through the google.golang.org/genai
// client instead of a hand-built websocket.
package genaisdk

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/pcm"
)

// Dialer creates a genai client per session, since the credential is read
// again on every start.
type Dialer struct {
	logger *zap.Logger
}

var _ live.Dialer = (*Dialer)(nil)

func NewDialer(logger *zap.Logger) *Dialer {
	return &Dialer{logger: logger.With(zap.String("component", "genai"))}
}

func (d *Dialer) Dial(ctx context.Context, cfg live.Config) (live.Session, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &live.ConnectionError{Op: "dial", Err: fmt.Errorf("create genai client: %w", err)}
	}

	sess, err := client.Live.Connect(ctx, cfg.Model, connectConfig(cfg))
	if err != nil {
		return nil, &live.ConnectionError{Op: "dial", Err: err}
	}

	if err := awaitSetup(ctx, sess); err != nil {
		sess.Close()
		return nil, err
	}

	d.logger.Info("live session open", zap.String("model", cfg.Model))
	return &session{sess: sess, logger: d.logger}, nil
}

// awaitSetup blocks until the server acknowledges the configuration
func awaitSetup(ctx context.Context, sess *genai.Session) error {
	stop := context.AfterFunc(ctx, func() { sess.Close() })
	defer stop()

	for {
		msg, err := sess.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return classify("setup", err)
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

func connectConfig(cfg live.Config) *genai.LiveConnectConfig {
	cc := &genai.LiveConnectConfig{}

	if cfg.AudioResponseRequested {
		cc.ResponseModalities = []genai.Modality{genai.ModalityAudio}
	}
	if cfg.Voice != "" {
		cc.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.SystemPrompt != "" {
		cc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemPrompt}}}
	}
	if cfg.CaptureInputTranscription {
		cc.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.CaptureOutputTranscription {
		cc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	return cc
}

// messageFromServer flattens an SDK message. The SDK hands out decoded
// bytes; they are re-encoded so both drivers deliver the same payload shape.
func messageFromServer(msg *genai.LiveServerMessage) live.Message {
	var out live.Message
	if msg == nil || msg.ServerContent == nil {
		return out
	}
	c := msg.ServerContent

	if c.ModelTurn != nil {
		for _, p := range c.ModelTurn.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			if p.InlineData.MIMEType != "" && !strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
				continue
			}
			out.AudioPayload = base64.StdEncoding.EncodeToString(p.InlineData.Data)
			break
		}
	}

	out.Interrupted = c.Interrupted
	if c.InputTranscription != nil {
		out.InputTranscriptionDelta = c.InputTranscription.Text
	}
	if c.OutputTranscription != nil {
		out.OutputTranscriptionDelta = c.OutputTranscription.Text
	}
	out.TurnComplete = c.TurnComplete

	return out
}

func blobFromPCM(b pcm.Blob) (*genai.Blob, error) {
	data, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, fmt.Errorf("decode frame payload: %w", err)
	}
	return &genai.Blob{MIMEType: b.MIMEType, Data: data}, nil
}

// classify maps SDK transport errors onto live errors. The SDK surfaces the
// underlying gorilla/websocket errors, wrapped or not.
func classify(op string, err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			if op != "setup" {
				return &live.TransportClosedError{Code: closeErr.Code, Reason: closeErr.Text}
			}
		}
		return &live.ConnectionError{Op: op, CloseCode: closeErr.Code, Err: err}
	}
	return &live.ConnectionError{Op: op, Err: err}
}

type session struct {
	sess   *genai.Session
	logger *zap.Logger

	sendMu    sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

func (s *session) SendAudio(b pcm.Blob) error {
	if s.closed.Load() {
		return live.ErrClosed
	}

	audio, err := blobFromPCM(b)
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.sess.SendRealtimeInput(genai.LiveRealtimeInput{Audio: audio}); err != nil {
		if s.closed.Load() {
			return live.ErrClosed
		}
		return classify("send", err)
	}
	return nil
}

func (s *session) Receive() (live.Message, error) {
	for {
		msg, err := s.sess.Receive()
		if err != nil {
			if s.closed.Load() {
				return live.Message{}, live.ErrClosed
			}
			return live.Message{}, classify("receive", err)
		}
		if msg.GoAway != nil {
			s.logger.Info("server going away")
		}

		out := messageFromServer(msg)
		if out.Empty() {
			continue
		}
		return out, nil
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.sess.Close()
	})
	return s.closeErr
}
