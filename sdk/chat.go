package sdk

import (
	"context"
	"net/http"
	"strings"
)

// ChatRequest is the payload for POST /api/chat. Code and ProblemID are
// optional; when omitted the backend falls back to the session's last
// synced state.
type ChatRequest struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	ProblemID string `json:"problem_id,omitempty"`
	Language  string `json:"language,omitempty"`
	HintLevel int    `json:"hint_level"`
}

// ChatResponse is the mentor's reply.
type ChatResponse struct {
	Response   string `json:"response"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
	SessionID  string `json:"session_id,omitempty"`
}

// Chat sends a text message to the mentor and returns its reply. The
// session identifier, when known, rides along in the X-Session-ID header so
// the backend can fill in cached editor context.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	headers := http.Header{}
	if id := c.session.SessionID(); id != "" {
		headers.Set(headerSessionID, id)
	}
	var out ChatResponse
	if err := c.postJSON(ctx, "/api/chat", headers, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type addMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AddMessageResult reports the server-side history counters after an append.
type AddMessageResult struct {
	Success      bool `json:"success"`
	MessageCount int  `json:"message_count"`
	HistorySize  int  `json:"history_size"`
}

// AddMessage appends one conversation turn to the backend session history.
// Empty content is skipped without a network call, mirroring how transcript
// events with no text are not worth recording.
func (c *Client) AddMessage(ctx context.Context, role, content string) (*AddMessageResult, error) {
	if strings.TrimSpace(content) == "" {
		return &AddMessageResult{}, nil
	}
	headers := http.Header{}
	if id := c.session.SessionID(); id != "" {
		headers.Set(headerSessionID, id)
	}
	var out AddMessageResult
	if err := c.postJSON(ctx, "/api/context/message", headers, addMessageRequest{Role: role, Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
