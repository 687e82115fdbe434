package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voicecode-ai/mentor/pkg/server/session"
)

func newContextMux(store session.Store) *http.ServeMux {
	mux := http.NewServeMux()
	h := &ContextHandler{Store: store, Logger: slog.Default(), SessionTTL: 24 * time.Hour}
	h.Register(mux)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSyncCreatesSession(t *testing.T) {
	store := session.NewMemoryStore(20)
	mux := newContextMux(store)

	rec := postJSON(t, mux, "/api/context/sync", "", `{"code":"print(1)","problem_id":"two-sum","language":"python","hint_level":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var resp struct {
		SessionID string `json:"session_id"`
		Synced    bool   `json:"synced"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" || !resp.Synced || resp.Message != "session created" {
		t.Fatalf("response %+v", resp)
	}

	// Second sync with the id updates instead of creating.
	rec = postJSON(t, mux, "/api/context/sync", resp.SessionID, `{"code":"print(2)","problem_id":"two-sum"}`)
	var resp2 struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp2); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if resp2.SessionID != resp.SessionID || resp2.Message != "context updated" {
		t.Fatalf("second response %+v", resp2)
	}

	sess, err := store.Get(t.Context(), resp.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Code != "print(2)" || sess.Language != "python" {
		t.Fatalf("stored session %+v", sess)
	}
}

func TestAddMessageValidation(t *testing.T) {
	store := session.NewMemoryStore(20)
	mux := newContextMux(store)

	// No header: 400 with string detail.
	rec := postJSON(t, mux, "/api/context/message", "", `{"role":"user","content":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing header status = %d", rec.Code)
	}
	var env struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Detail != "X-Session-ID header required" {
		t.Fatalf("detail = %q", env.Detail)
	}

	// Unknown session: 404.
	rec = postJSON(t, mux, "/api/context/message", "ghost", `{"role":"user","content":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", rec.Code)
	}

	// Happy path.
	sess, _, _ := store.Sync(t.Context(), "", session.SyncInput{})
	rec = postJSON(t, mux, "/api/context/message", sess.ID, `{"role":"user","content":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add message status = %d body %s", rec.Code, rec.Body)
	}
	var out struct {
		Success      bool `json:"success"`
		MessageCount int  `json:"message_count"`
		HistorySize  int  `json:"history_size"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.MessageCount != 1 || out.HistorySize != 1 {
		t.Fatalf("response %+v", out)
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	store := session.NewMemoryStore(20)
	mux := newContextMux(store)
	sess, _, _ := store.Sync(t.Context(), "", session.SyncInput{ProblemID: "p1"})

	req := httptest.NewRequest(http.MethodGet, "/api/context/session/"+sess.ID, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/context/stats", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var st session.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.ActiveSessions != 1 {
		t.Fatalf("stats %+v", st)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/context/session/"+sess.ID, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/context/session/"+sess.ID, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}
