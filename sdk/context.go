package sdk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SessionContext owns the mutable client-side session state: the backend
// session identifier and the markers of the last successfully synced editor
// state. It is shared by ContextSync (which writes after a sync) and
// DuplexSession (which reads the identifier when dialing), so all access is
// mutex guarded. State is persisted as JSON under a state directory so the
// identifier survives process restarts.
type SessionContext struct {
	mu   sync.Mutex
	path string

	sessionID     string
	lastCode      string
	lastProblemID string
}

type sessionState struct {
	SessionID string `json:"session_id"`
}

// NewSessionContext loads persisted state from dir, if any. An empty dir
// disables persistence and the state lives only in memory.
func NewSessionContext(dir string) (*SessionContext, error) {
	sc := &SessionContext{}
	if dir == "" {
		return sc, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	sc.path = filepath.Join(dir, "session.json")

	data, err := os.ReadFile(sc.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sc, nil
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}
	var st sessionState
	if err := json.Unmarshal(data, &st); err != nil {
		// Corrupt state file: start over rather than refusing to run.
		return sc, nil
	}
	sc.sessionID = strings.TrimSpace(st.SessionID)
	return sc, nil
}

// SessionID returns the current backend session identifier, empty when no
// sync has completed yet.
func (sc *SessionContext) SessionID() string {
	if sc == nil {
		return ""
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sessionID
}

// SetSessionID stores and persists the backend-issued identifier.
// Last write wins.
func (sc *SessionContext) SetSessionID(id string) {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.sessionID = strings.TrimSpace(id)
	sc.persistLocked()
}

// Changed reports whether code or problem id differ from the last
// successful sync.
func (sc *SessionContext) Changed(code, problemID string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return code != sc.lastCode || problemID != sc.lastProblemID
}

// MarkSynced records the editor state that was last pushed successfully.
// Only called after the backend acknowledged the sync.
func (sc *SessionContext) MarkSynced(code, problemID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lastCode = code
	sc.lastProblemID = problemID
}

// Clear drops the session identifier and sync markers, in memory and on
// disk. The next sync starts a fresh backend session.
func (sc *SessionContext) Clear() {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.sessionID = ""
	sc.lastCode = ""
	sc.lastProblemID = ""
	sc.persistLocked()
}

func (sc *SessionContext) persistLocked() {
	if sc.path == "" {
		return
	}
	data, err := json.Marshal(sessionState{SessionID: sc.sessionID})
	if err != nil {
		return
	}
	_ = os.WriteFile(sc.path, data, 0o600)
}
