// Package gemini speaks the Gemini Live BidiGenerateContent protocol over a
// websocket.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/pcm"
)

const (
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultSetupTimeout = 15 * time.Second
	defaultWriteTimeout = 5 * time.Second
	closeWriteTimeout   = 2 * time.Second
)

// Dialer opens Live sessions over gorilla/websocket
type Dialer struct {
	Endpoint     string
	SetupTimeout time.Duration
	// WriteTimeout bounds each outbound frame; a peer that stops reading
	// fails the send instead of stalling the caller.
	WriteTimeout    time.Duration
	WebsocketDialer *websocket.Dialer

	logger *zap.Logger
}

var _ live.Dialer = (*Dialer)(nil)

func NewDialer(endpoint string, logger *zap.Logger) *Dialer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Dialer{
		Endpoint:        endpoint,
		SetupTimeout:    defaultSetupTimeout,
		WriteTimeout:    defaultWriteTimeout,
		WebsocketDialer: websocket.DefaultDialer,
		logger:          logger.With(zap.String("component", "gemini")),
	}
}

// Dial connects, sends the setup message and waits for setupComplete
func (d *Dialer) Dial(ctx context.Context, cfg live.Config) (live.Session, error) {
	endpoint, err := d.endpointURL(cfg.APIKey)
	if err != nil {
		return nil, &live.ConnectionError{Op: "dial", Err: err}
	}

	dialer := d.WebsocketDialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		connErr := &live.ConnectionError{Op: "dial", Err: err}
		if resp != nil {
			connErr.StatusCode = resp.StatusCode
		}
		return nil, connErr
	}

	if err := d.setup(ctx, conn, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	d.logger.Info("live session open", zap.String("model", cfg.Model))
	return newSession(conn, writeTimeout, d.logger), nil
}

func (d *Dialer) setup(ctx context.Context, conn *websocket.Conn, cfg live.Config) error {
	// ReadMessage ignores ctx, so cancellation closes the connection instead.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	timeout := d.SetupTimeout
	if timeout <= 0 {
		timeout = defaultSetupTimeout
	}
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(newSetupMessage(cfg)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &live.ConnectionError{Op: "setup", Err: err}
	}
	conn.SetReadDeadline(deadline)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			connErr := &live.ConnectionError{Op: "setup", Err: err}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				connErr.CloseCode = closeErr.Code
			}
			return connErr
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return &live.ConnectionError{Op: "setup", Err: fmt.Errorf("decode setup response: %w", err)}
		}
		if msg.SetupComplete != nil {
			break
		}
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	return nil
}

func (d *Dialer) endpointURL(apiKey string) (string, error) {
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("key", apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// session is an open Live websocket
type session struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	logger       *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

func newSession(conn *websocket.Conn, writeTimeout time.Duration, logger *zap.Logger) *session {
	return &session{conn: conn, writeTimeout: writeTimeout, logger: logger}
}

func (s *session) SendAudio(b pcm.Blob) error {
	if s.closed.Load() {
		return live.ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteJSON(newAudioMessage(b)); err != nil {
		if s.closed.Load() {
			return live.ErrClosed
		}
		return &live.ConnectionError{Op: "send", Err: err}
	}
	return nil
}

func (s *session) Receive() (live.Message, error) {
	for {
		// Server content arrives as text or binary frames, both JSON.
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return live.Message{}, s.readError(err)
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("skipping malformed server message", zap.Error(err))
			continue
		}
		if msg.GoAway != nil {
			s.logger.Info("server going away", zap.String("time_left", msg.GoAway.TimeLeft))
		}

		out := msg.toMessage()
		if out.Empty() {
			continue
		}
		return out, nil
	}
}

func (s *session) readError(err error) error {
	if s.closed.Load() {
		return live.ErrClosed
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return &live.TransportClosedError{Code: closeErr.Code, Reason: closeErr.Text}
		}
		return &live.ConnectionError{Op: "receive", CloseCode: closeErr.Code, Err: err}
	}
	return &live.ConnectionError{Op: "receive", Err: err}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// A send stuck on a peer that stopped reading holds writeMu. Skip the
		// close frame then; closing the socket fails the pending write.
		if s.writeMu.TryLock() {
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeWriteTimeout),
			)
			s.writeMu.Unlock()
		}
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
