package sdk

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SessionStatus is the lifecycle state of a DuplexSession.
type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusConnected    SessionStatus = "connected"
	StatusError        SessionStatus = "error"
)

const defaultHandshakeTimeout = 15 * time.Second

// DuplexConfig configures a DuplexSession. Client is required; everything
// else has working defaults (real mic, real speaker, no callbacks).
type DuplexConfig struct {
	// Mic acquires the capture source on connect. Defaults to NewMicSource.
	Mic func() (CaptureSource, error)

	// Speaker acquires the playback sink on connect. Defaults to NewSpeaker.
	Speaker func() (PlaybackSink, error)

	// OnStatus is invoked synchronously on every lifecycle transition with
	// a human-readable detail for the error state.
	OnStatus func(status SessionStatus, detail string)

	// OnMessage receives normalized text events from the voice stream.
	OnMessage func(msg VoiceMessage)

	// Dialer overrides the websocket dialer.
	Dialer *websocket.Dialer

	Logger *slog.Logger
}

// DuplexSession is one bidirectional voice conversation: mic frames go up
// the websocket, agent audio comes down into the playback scheduler, text
// events surface through OnMessage. One websocket per session; a dropped
// connection is never redialed automatically, the caller decides when to
// reconnect.
type DuplexSession struct {
	client *Client

	mic       func() (CaptureSource, error)
	speaker   func() (PlaybackSink, error)
	onStatus  func(SessionStatus, string)
	onMessage func(VoiceMessage)
	dialer    *websocket.Dialer
	logger    *slog.Logger

	mu       sync.Mutex
	status   SessionStatus
	conn     *websocket.Conn
	capture  *AudioCapture
	playback *PlaybackScheduler
	gen      int

	writeMu sync.Mutex
}

// NewDuplexSession creates a disconnected session bound to the client's
// backend and session state.
func NewDuplexSession(client *Client, cfg DuplexConfig) *DuplexSession {
	s := &DuplexSession{
		client:    client,
		mic:       cfg.Mic,
		speaker:   cfg.Speaker,
		onStatus:  cfg.OnStatus,
		onMessage: cfg.OnMessage,
		dialer:    cfg.Dialer,
		logger:    cfg.Logger,
		status:    StatusDisconnected,
	}
	if s.mic == nil {
		s.mic = func() (CaptureSource, error) { return NewMicSource() }
	}
	if s.speaker == nil {
		s.speaker = func() (PlaybackSink, error) { return NewSpeaker() }
	}
	if s.dialer == nil {
		s.dialer = &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Status returns the current lifecycle state.
func (s *DuplexSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect acquires the mic and speaker, dials the voice stream and starts
// the capture and read loops. The known session identifier rides along as
// a query parameter so the backend can inject editor context. Calling
// Connect while connecting or connected is a no-op.
func (s *DuplexSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusConnecting || s.status == StatusConnected {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.status = StatusConnecting
	cb := s.onStatus
	s.mu.Unlock()
	if cb != nil {
		cb(StatusConnecting, "")
	}

	mic, err := s.mic()
	if err != nil {
		s.setStatusIfCurrent(gen, StatusError, "microphone unavailable: "+err.Error())
		return err
	}
	sink, err := s.speaker()
	if err != nil {
		_ = mic.Close()
		s.setStatusIfCurrent(gen, StatusError, "audio output unavailable: "+err.Error())
		return err
	}

	u := s.client.WebSocketURL("/api/voice/stream")
	if id := s.client.Session().SessionID(); id != "" {
		u += "?session_id=" + url.QueryEscape(id)
	}

	conn, resp, err := s.dialer.DialContext(ctx, u, nil)
	if err != nil {
		_ = mic.Close()
		_ = sink.Close()
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		s.setStatusIfCurrent(gen, StatusError, "connection failed: "+err.Error())
		return &TransportError{Op: "dial", URL: u, Err: err}
	}

	playback := NewPlaybackScheduler(sink, s.logger)
	capture := NewAudioCapture(s.logger)

	s.mu.Lock()
	if s.gen != gen {
		// Disconnect won the race while the dial was in flight; its state
		// stands and this attempt releases everything it acquired.
		s.mu.Unlock()
		_ = conn.Close()
		_ = mic.Close()
		_ = playback.Close()
		return nil
	}
	s.conn = conn
	s.capture = capture
	s.playback = playback
	s.status = StatusConnected
	cb = s.onStatus
	s.mu.Unlock()
	if cb != nil {
		cb(StatusConnected, "")
	}

	capture.Start(mic, s)
	go s.readLoop(conn, playback, gen)
	return nil
}

func (s *DuplexSession) readLoop(conn *websocket.Conn, playback *PlaybackScheduler, gen int) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.teardown(gen, StatusDisconnected, "")
			} else {
				s.teardown(gen, StatusError, "connection error: "+err.Error())
			}
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			playback.Enqueue(data)
		case websocket.TextMessage:
			msg, perr := ParseVoiceMessage(data)
			if perr != nil {
				s.logger.Warn("dropping malformed voice frame", "error", perr)
				continue
			}
			if s.onMessage != nil {
				s.onMessage(msg)
			}
		}
	}
}

// teardown releases resources after the read loop ends. A stale generation
// means Disconnect already cleaned up and decided the final state.
func (s *DuplexSession) teardown(gen int, status SessionStatus, detail string) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	capture, conn, playback := s.capture, s.conn, s.playback
	s.capture, s.conn, s.playback = nil, nil, nil
	s.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if playback != nil {
		playback.Reset()
		_ = playback.Close()
	}
	s.setStatus(status, detail)
}

// Disconnect tears the session down: capture stops, the socket closes, the
// playback queue and cursor reset, the audio sink is released. Safe to call
// in any state, any number of times.
func (s *DuplexSession) Disconnect() {
	s.mu.Lock()
	if s.status == StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.gen++
	capture, conn, playback := s.capture, s.conn, s.playback
	s.capture, s.conn, s.playback = nil, nil, nil
	s.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	if playback != nil {
		playback.Reset()
		_ = playback.Close()
	}
	s.setStatus(StatusDisconnected, "")
}

// Send marshals v as a JSON text frame. When the session is not open the
// message is dropped with a warning; voice traffic is only meaningful on a
// live connection.
func (s *DuplexSession) Send(v any) error {
	s.mu.Lock()
	conn := s.conn
	open := s.status == StatusConnected
	s.mu.Unlock()
	if !open || conn == nil {
		s.logger.Warn("dropping outbound message, session not connected")
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Ready implements FrameSink: mic frames flow only while connected.
func (s *DuplexSession) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusConnected && s.conn != nil
}

// SendFrame implements FrameSink.
func (s *DuplexSession) SendFrame(pcm []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// setStatusIfCurrent applies a transition only when gen is still the live
// connection attempt, so a raced Disconnect keeps the state it decided.
func (s *DuplexSession) setStatusIfCurrent(gen int, status SessionStatus, detail string) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.status = status
	cb := s.onStatus
	s.mu.Unlock()
	if cb != nil {
		cb(status, detail)
	}
}

func (s *DuplexSession) setStatus(status SessionStatus, detail string) {
	s.mu.Lock()
	s.status = status
	cb := s.onStatus
	s.mu.Unlock()
	if cb != nil {
		cb(status, detail)
	}
}
