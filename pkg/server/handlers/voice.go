package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicecode-ai/mentor/pkg/server/elevenlabs"
	"github.com/voicecode-ai/mentor/pkg/server/metrics"
	"github.com/voicecode-ai/mentor/pkg/server/mw"
	"github.com/voicecode-ai/mentor/pkg/server/session"
)

const (
	// maxClientFrameBytes bounds inbound client frames.
	maxClientFrameBytes = 1 << 20

	// contextCodeChars caps how much code rides along in the injected
	// context message.
	contextCodeChars = 800

	relayCloseGrace = time.Second
)

// VoiceHandler relays one client websocket to the vendor's conversational
// endpoint: client binary PCM becomes base64 JSON upstream, upstream audio
// events become binary PCM downstream, other text passes through.
type VoiceHandler struct {
	Vendor  elevenlabs.Config
	Store   session.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// UpstreamURL overrides the vendor endpoint, for tests.
	UpstreamURL string

	// Dialer overrides the upstream dialer.
	Dialer *websocket.Dialer

	active     atomic.Int64
	totalChars atomic.Int64
}

var relayUpgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	// Browser clients connect from the app origin; CORS policy is enforced
	// on the HTTP surface, not the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Register attaches the voice routes to mux.
func (h *VoiceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/voice/stream", h.stream)
	mux.HandleFunc("GET /api/voice/health", h.health)
	mux.HandleFunc("GET /api/voice/stats", h.stats)
}

func (h *VoiceHandler) stream(w http.ResponseWriter, r *http.Request) {
	client, err := relayUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer client.Close()
	client.SetReadLimit(maxClientFrameBytes)

	if !h.Vendor.Configured() {
		h.sendStatus(client, "voice service is not configured")
		h.closeWith(client, websocket.ClosePolicyViolation, "voice service unavailable")
		return
	}

	upstreamURL := h.UpstreamURL
	if upstreamURL == "" {
		upstreamURL = h.Vendor.ConnectionURL()
	}
	dialer := h.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	}
	upstream, resp, err := dialer.DialContext(r.Context(), upstreamURL, h.Vendor.AuthHeader())
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		h.Logger.Error("voice upstream dial failed", "error", err)
		h.sendStatus(client, "voice service connection failed")
		h.closeWith(client, websocket.CloseTryAgainLater, "upstream unavailable")
		return
	}
	defer upstream.Close()

	h.active.Add(1)
	if h.Metrics != nil {
		h.Metrics.VoiceConnections.Inc()
	}
	start := time.Now()
	var chars atomic.Int64
	defer func() {
		h.active.Add(-1)
		if h.Metrics != nil {
			h.Metrics.VoiceConnections.Dec()
		}
		used := chars.Load()
		h.totalChars.Add(used)
		h.Logger.Info("voice session closed",
			"duration_s", int(time.Since(start).Seconds()),
			"characters", used,
			"estimated_cost_usd", fmt.Sprintf("%.4f", elevenlabs.EstimateCostUSD(int(used))),
		)
	}()

	// Prime the agent with what the user is working on before any audio.
	if ctxMsg := h.contextMessage(r); ctxMsg != nil {
		if err := upstream.WriteMessage(websocket.TextMessage, ctxMsg); err != nil {
			h.Logger.Warn("context injection failed", "error", err)
		}
	}

	errc := make(chan error, 2)
	go h.pumpClientToUpstream(client, upstream, errc)
	go h.pumpUpstreamToClient(upstream, client, &chars, errc)

	err = <-errc
	if err != nil && !isExpectedClose(err) {
		h.Logger.Warn("voice relay ended", "error", err)
	}
	// Closing both sockets unblocks the surviving pump.
}

func (h *VoiceHandler) pumpClientToUpstream(client, upstream *websocket.Conn, errc chan<- error) {
	for {
		msgType, data, err := client.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			if h.Metrics != nil {
				h.Metrics.VoiceAudioBytes.WithLabelValues("up").Add(float64(len(data)))
			}
			frame, err := encodeUserAudio(data)
			if err != nil {
				errc <- err
				return
			}
			if err := upstream.WriteMessage(websocket.TextMessage, frame); err != nil {
				errc <- err
				return
			}
		case websocket.TextMessage:
			if err := upstream.WriteMessage(websocket.TextMessage, data); err != nil {
				errc <- err
				return
			}
		}
	}
}

func (h *VoiceHandler) pumpUpstreamToClient(upstream, client *websocket.Conn, chars *atomic.Int64, errc chan<- error) {
	var writeMu sync.Mutex
	for {
		msgType, data, err := upstream.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		pcm, agentChars, err := translateUpstream(data)
		if err != nil {
			h.Logger.Warn("dropping malformed upstream frame", "error", err)
			continue
		}
		if agentChars > 0 {
			chars.Add(int64(agentChars))
			if h.Metrics != nil {
				h.Metrics.VoiceCharacters.Add(float64(agentChars))
			}
		}

		writeMu.Lock()
		if pcm != nil {
			if h.Metrics != nil {
				h.Metrics.VoiceAudioBytes.WithLabelValues("down").Add(float64(len(pcm)))
			}
			err = client.WriteMessage(websocket.BinaryMessage, pcm)
		} else {
			err = client.WriteMessage(websocket.TextMessage, data)
		}
		writeMu.Unlock()
		if err != nil {
			errc <- err
			return
		}
	}
}

// contextMessage builds the contextual update injected before the
// conversation starts, from the synced session named in the query string.
func (h *VoiceHandler) contextMessage(r *http.Request) []byte {
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" || h.Store == nil {
		return nil
	}
	sess, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			h.Logger.Warn("session lookup for context injection failed", "error", err)
		}
		return nil
	}

	var b strings.Builder
	b.WriteString("The student is working on a coding problem.")
	if sess.ProblemTitle != "" {
		fmt.Fprintf(&b, " Problem: %s.", sess.ProblemTitle)
	} else if sess.ProblemID != "" {
		fmt.Fprintf(&b, " Problem: %s.", sess.ProblemID)
	}
	if sess.Language != "" {
		fmt.Fprintf(&b, " Language: %s.", sess.Language)
	}
	if code := strings.TrimSpace(sess.Code); code != "" {
		if runes := []rune(code); len(runes) > contextCodeChars {
			code = string(runes[:contextCodeChars])
		}
		fmt.Fprintf(&b, " Their current code:\n%s", code)
	}

	msg, err := json.Marshal(map[string]string{
		"type": "contextual_update",
		"text": b.String(),
	})
	if err != nil {
		return nil
	}
	return msg
}

func (h *VoiceHandler) sendStatus(conn *websocket.Conn, message string) {
	frame, err := json.Marshal(map[string]string{"type": "status", "message": message})
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, frame)
}

func (h *VoiceHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(relayCloseGrace))
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// encodeUserAudio wraps client PCM in the vendor's base64 JSON frame.
func encodeUserAudio(pcm []byte) ([]byte, error) {
	return json.Marshal(userAudioChunk{UserAudioChunk: base64.StdEncoding.EncodeToString(pcm)})
}

type upstreamFrame struct {
	Type string `json:"type"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`
}

// translateUpstream inspects one upstream text frame. Audio events return
// decoded PCM for a binary downstream frame; everything else is forwarded
// verbatim (pcm nil). Agent responses report their character count for
// cost tracking.
func translateUpstream(data []byte) (pcm []byte, agentChars int, err error) {
	var f upstreamFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, 0, fmt.Errorf("malformed upstream frame: %w", err)
	}
	if f.AudioEvent != nil && f.AudioEvent.AudioBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(f.AudioEvent.AudioBase64)
		if err != nil {
			return nil, 0, fmt.Errorf("bad audio payload: %w", err)
		}
		return raw, 0, nil
	}
	if f.AgentResponseEvent != nil {
		return nil, len(f.AgentResponseEvent.AgentResponse), nil
	}
	return nil, 0, nil
}

func (h *VoiceHandler) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.Vendor.Configured() {
		status = "unconfigured"
	}
	mw.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"configured": h.Vendor.Configured(),
	})
}

func (h *VoiceHandler) stats(w http.ResponseWriter, r *http.Request) {
	used := h.totalChars.Load()
	mw.WriteJSON(w, http.StatusOK, map[string]any{
		"active_connections": h.active.Load(),
		"total_characters":   used,
		"estimated_cost_usd": elevenlabs.EstimateCostUSD(int(used)),
		"estimated_minutes":  elevenlabs.EstimateMinutes(int(used)),
	})
}
