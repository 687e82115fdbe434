package sdk

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const headerSessionID = "X-Session-ID"

// defaultSyncInterval is how often the editor state is considered for a
// push to the backend.
const defaultSyncInterval = 5 * time.Second

// EditorState is a snapshot of what the user is working on.
type EditorState struct {
	Code         string `json:"code"`
	ProblemID    string `json:"problem_id"`
	ProblemTitle string `json:"problem_title,omitempty"`
	Language     string `json:"language,omitempty"`
	HintLevel    int    `json:"hint_level"`
}

type syncResponse struct {
	SessionID string `json:"session_id"`
	Synced    bool   `json:"synced"`
	Message   string `json:"message,omitempty"`
}

// ContextSync periodically pushes the editor state to the backend so the
// mentor always sees current code. Pushes happen only when code or problem
// changed since the last successful one; the backend-issued session
// identifier is persisted through the client's SessionContext.
type ContextSync struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewContextSync creates a synchronizer with the standard 5 s interval.
// A non-positive interval falls back to the default.
func NewContextSync(client *Client, interval time.Duration) *ContextSync {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &ContextSync{
		client:   client,
		interval: interval,
		logger:   client.logger,
	}
}

// Start begins the periodic loop. getState is called on every tick to
// snapshot the editor. Calling Start while running is a no-op.
func (cs *ContextSync) Start(getState func() EditorState) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.stop != nil {
		return
	}
	cs.stop = make(chan struct{})
	cs.stopped = make(chan struct{})
	go cs.loop(getState, cs.stop, cs.stopped)
}

func (cs *ContextSync) loop(getState func() EditorState, stop, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			state := getState()
			if !cs.client.Session().Changed(state.Code, state.ProblemID) {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), cs.interval)
			cs.publish(ctx, state)
			cancel()
		}
	}
}

// ForceSync pushes the state immediately, bypassing change detection. Used
// before opening a voice session so the backend context is fresh. Never
// panics; returns false when the push failed.
func (cs *ContextSync) ForceSync(ctx context.Context, state EditorState) bool {
	return cs.publish(ctx, state)
}

// Stop halts the periodic loop and waits for it to exit. Idempotent.
func (cs *ContextSync) Stop() {
	cs.mu.Lock()
	stop, stopped := cs.stop, cs.stopped
	cs.stop, cs.stopped = nil, nil
	cs.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

func (cs *ContextSync) publish(ctx context.Context, state EditorState) bool {
	headers := http.Header{}
	if id := cs.client.Session().SessionID(); id != "" {
		headers.Set(headerSessionID, id)
	}

	var out syncResponse
	if err := cs.client.postJSON(ctx, "/api/context/sync", headers, state, &out); err != nil {
		cs.logger.Warn("context sync failed", "error", err)
		return false
	}
	if out.SessionID != "" {
		cs.client.Session().SetSessionID(out.SessionID)
	}
	cs.client.Session().MarkSynced(state.Code, state.ProblemID)
	return true
}
