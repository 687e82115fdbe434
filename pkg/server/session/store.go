// Package session stores per-user coding sessions: the code being worked
// on, the active problem and a capped conversation history. Two backends
// exist, in-memory for development and postgres for real deployments.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned for unknown session identifiers.
var ErrNotFound = errors.New("session not found")

// Message is one conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the cached editor and conversation state for one user.
type Session struct {
	ID           string    `json:"session_id"`
	UserIP       string    `json:"user_ip,omitempty"`
	ProblemID    string    `json:"problem_id"`
	ProblemTitle string    `json:"problem_title"`
	Code         string    `json:"current_code"`
	Language     string    `json:"language"`
	HintLevel    int       `json:"hint_level"`
	MessageCount int       `json:"message_count"`
	History      []Message `json:"conversation_history"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
}

// SyncInput is the editor state pushed by a context sync.
type SyncInput struct {
	Code         string
	ProblemID    string
	ProblemTitle string
	Language     string
	HintLevel    int
	UserIP       string
}

// Stats summarizes the store for the stats endpoint.
type Stats struct {
	ActiveSessions int `json:"active_sessions"`
	TotalMessages  int `json:"total_messages"`
}

// Store is the session persistence interface.
type Store interface {
	// Sync upserts the editor state. An empty id creates a new session and
	// the bool result reports creation.
	Sync(ctx context.Context, id string, in SyncInput) (*Session, bool, error)

	// Get returns a session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// AddMessage appends one conversation turn, trimming history beyond
	// the store's cap.
	AddMessage(ctx context.Context, id, role, content string) (*Session, error)

	// Delete removes a session. Deleting an unknown id is ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Cleanup removes sessions idle longer than maxAge and reports how
	// many were dropped.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)

	// Stats summarizes the store.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// ConversationSummary renders the most recent exchanges for prompt
// context: up to maxTurns messages, each truncated to maxChars runes.
func (s *Session) ConversationSummary(maxTurns, maxChars int) string {
	if s == nil || len(s.History) == 0 {
		return ""
	}
	start := len(s.History) - maxTurns
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, m := range s.History[start:] {
		content := m.Content
		if runes := []rune(content); len(runes) > maxChars {
			content = string(runes[:maxChars]) + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, content)
	}
	return strings.TrimRight(b.String(), "\n")
}
