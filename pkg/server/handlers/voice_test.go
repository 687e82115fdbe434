package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicecode-ai/mentor/pkg/server/elevenlabs"
	"github.com/voicecode-ai/mentor/pkg/server/session"
)

func TestEncodeUserAudio(t *testing.T) {
	frame, err := encodeUserAudio([]byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("encodeUserAudio: %v", err)
	}
	var out struct {
		UserAudioChunk string `json:"user_audio_chunk"`
	}
	if err := json.Unmarshal(frame, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(out.UserAudioChunk)
	if err != nil || !bytes.Equal(raw, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("payload %v err %v", raw, err)
	}
}

func TestTranslateUpstream(t *testing.T) {
	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	audioFrame := `{"type":"audio","audio_event":{"audio_base_64":"` + base64.StdEncoding.EncodeToString(pcm) + `"}}`
	got, chars, err := translateUpstream([]byte(audioFrame))
	if err != nil || chars != 0 || !bytes.Equal(got, pcm) {
		t.Fatalf("audio frame: pcm %v chars %d err %v", got, chars, err)
	}

	respFrame := `{"type":"agent_response","agent_response_event":{"agent_response":"hello there"}}`
	got, chars, err = translateUpstream([]byte(respFrame))
	if err != nil || got != nil || chars != len("hello there") {
		t.Fatalf("response frame: pcm %v chars %d err %v", got, chars, err)
	}

	pingFrame := `{"type":"ping"}`
	got, chars, err = translateUpstream([]byte(pingFrame))
	if err != nil || got != nil || chars != 0 {
		t.Fatalf("ping frame: pcm %v chars %d err %v", got, chars, err)
	}

	if _, _, err := translateUpstream([]byte(`{"bad`)); err == nil {
		t.Fatal("malformed frame accepted")
	}
}

// fakeUpstream plays the vendor side: records inbound frames and scripts
// outbound ones.
type fakeUpstream struct {
	mu       sync.Mutex
	received [][]byte
	send     []string
	apiKey   string
	srv      *httptest.Server
}

func newFakeUpstream(t *testing.T, send []string) *fakeUpstream {
	t.Helper()
	fu := &fakeUpstream{send: send}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	fu.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fu.mu.Lock()
		fu.apiKey = r.Header.Get("xi-api-key")
		fu.mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, frame := range fu.send {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fu.mu.Lock()
			fu.received = append(fu.received, data)
			fu.mu.Unlock()
		}
	}))
	t.Cleanup(fu.srv.Close)
	return fu
}

func (fu *fakeUpstream) frames() [][]byte {
	fu.mu.Lock()
	defer fu.mu.Unlock()
	return append([][]byte(nil), fu.received...)
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestVoiceRelayRoundTrip(t *testing.T) {
	pcmDown := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	upstream := newFakeUpstream(t, []string{
		`{"type":"audio","audio_event":{"audio_base_64":"` + base64.StdEncoding.EncodeToString(pcmDown) + `"}}`,
		`{"type":"agent_response","agent_response_event":{"agent_response":"Think about sorting."}}`,
	})

	store := session.NewMemoryStore(20)
	sess, _, _ := store.Sync(t.Context(), "", session.SyncInput{
		ProblemTitle: "Two Sum", Language: "python", Code: "def solve():",
	})

	h := &VoiceHandler{
		Vendor:      elevenlabs.Config{APIKey: "test-key", AgentID: "agent-1"},
		Store:       store,
		Logger:      slog.Default(),
		UpstreamURL: wsURL(upstream.srv.URL),
	}
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL)+"/api/voice/stream?session_id="+sess.ID, nil)
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer client.Close()

	// Downstream: audio event arrives as a binary frame.
	msgType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read downstream: %v", err)
	}
	if msgType != websocket.BinaryMessage || !bytes.Equal(data, pcmDown) {
		t.Fatalf("downstream frame type %d data %v", msgType, data)
	}

	// Non-audio text is forwarded verbatim.
	msgType, data, err = client.ReadMessage()
	if err != nil {
		t.Fatalf("read forwarded text: %v", err)
	}
	if msgType != websocket.TextMessage || !strings.Contains(string(data), "Think about sorting.") {
		t.Fatalf("forwarded frame type %d data %s", msgType, data)
	}

	// Upstream: binary mic audio becomes a base64 JSON frame after the
	// injected context message.
	if err := client.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write mic frame: %v", err)
	}
	waitFor(t, "upstream frames", func() bool { return len(upstream.frames()) >= 2 })

	frames := upstream.frames()
	var ctxFrame struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(frames[0], &ctxFrame); err != nil {
		t.Fatalf("decode context frame: %v", err)
	}
	if ctxFrame.Type != "contextual_update" || !strings.Contains(ctxFrame.Text, "Two Sum") {
		t.Fatalf("context frame %+v", ctxFrame)
	}
	var audioFrame struct {
		UserAudioChunk string `json:"user_audio_chunk"`
	}
	if err := json.Unmarshal(frames[1], &audioFrame); err != nil {
		t.Fatalf("decode audio frame: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(audioFrame.UserAudioChunk)
	if !bytes.Equal(raw, []byte{0x01, 0x02}) {
		t.Fatalf("upstream audio %v", raw)
	}

	upstream.mu.Lock()
	apiKey := upstream.apiKey
	upstream.mu.Unlock()
	if apiKey != "test-key" {
		t.Fatalf("upstream saw api key %q", apiKey)
	}
}

func TestVoiceRelayUnconfigured(t *testing.T) {
	h := &VoiceHandler{Logger: slog.Default()}
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL)+"/api/voice/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer client.Close()

	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if !strings.Contains(string(data), "not configured") {
		t.Fatalf("status frame %s", data)
	}
	// Next read sees the close handshake.
	if _, _, err := client.ReadMessage(); err == nil {
		t.Fatal("connection stayed open without vendor config")
	}
}

func TestVoiceHealthAndStats(t *testing.T) {
	h := &VoiceHandler{
		Vendor: elevenlabs.Config{APIKey: "k", AgentID: "a"},
		Logger: slog.Default(),
	}
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/voice/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"configured":true`) {
		t.Fatalf("health %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/voice/stats", nil))
	var stats struct {
		ActiveConnections int `json:"active_connections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ActiveConnections != 0 {
		t.Fatalf("stats %+v", stats)
	}
}
