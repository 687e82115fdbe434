// Package handlers implements the mentor server's HTTP and websocket
// endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voicecode-ai/mentor/pkg/core"
	"github.com/voicecode-ai/mentor/pkg/server/metrics"
	"github.com/voicecode-ai/mentor/pkg/server/mw"
	"github.com/voicecode-ai/mentor/pkg/server/ratelimit"
	"github.com/voicecode-ai/mentor/pkg/server/session"
)

const headerSessionID = "X-Session-ID"

// summary window used for prompts and the summary endpoint.
const (
	summaryTurns    = 10
	summaryMaxChars = 150
)

// ContextHandler serves the /api/context endpoints backed by the session
// store.
type ContextHandler struct {
	Store      session.Store
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	SessionTTL time.Duration
}

// Register attaches the context routes to mux.
func (h *ContextHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/context/sync", h.sync)
	mux.HandleFunc("POST /api/context/message", h.addMessage)
	mux.HandleFunc("GET /api/context/session/{id}", h.getSession)
	mux.HandleFunc("DELETE /api/context/session/{id}", h.deleteSession)
	mux.HandleFunc("GET /api/context/summary/{id}", h.summary)
	mux.HandleFunc("GET /api/context/stats", h.stats)
	mux.HandleFunc("POST /api/context/cleanup", h.cleanup)
}

type syncRequest struct {
	Code         string `json:"code"`
	ProblemID    string `json:"problem_id"`
	ProblemTitle string `json:"problem_title"`
	Language     string `json:"language"`
	HintLevel    int    `json:"hint_level"`
}

type syncResponse struct {
	SessionID string `json:"session_id"`
	Synced    bool   `json:"synced"`
	Message   string `json:"message"`
}

func (h *ContextHandler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mw.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := strings.TrimSpace(r.Header.Get(headerSessionID))
	sess, created, err := h.Store.Sync(r.Context(), id, session.SyncInput{
		Code:         req.Code,
		ProblemID:    req.ProblemID,
		ProblemTitle: req.ProblemTitle,
		Language:     req.Language,
		HintLevel:    req.HintLevel,
		UserIP:       ratelimit.ClientIP(r),
	})
	if err != nil {
		h.Logger.Error("context sync failed", "error", err)
		mw.WriteError(w, http.StatusInternalServerError, core.NewInternalError("failed to sync context"))
		return
	}

	result, message := "updated", "context updated"
	if created {
		result, message = "created", "session created"
	}
	if h.Metrics != nil {
		h.Metrics.ContextSyncs.WithLabelValues(result).Inc()
	}
	mw.WriteJSON(w, http.StatusOK, syncResponse{SessionID: sess.ID, Synced: true, Message: message})
}

type addMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type addMessageResponse struct {
	Success      bool `json:"success"`
	MessageCount int  `json:"message_count"`
	HistorySize  int  `json:"history_size"`
}

func (h *ContextHandler) addMessage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(headerSessionID))
	if id == "" {
		mw.WriteErrorMessage(w, http.StatusBadRequest, "X-Session-ID header required")
		return
	}

	var req addMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mw.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Role) == "" || strings.TrimSpace(req.Content) == "" {
		mw.WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestErrorWithParam("role and content are required", "content"))
		return
	}

	sess, err := h.Store.AddMessage(r.Context(), id, req.Role, req.Content)
	if errors.Is(err, session.ErrNotFound) {
		mw.WriteErrorMessage(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.Logger.Error("add message failed", "error", err)
		mw.WriteError(w, http.StatusInternalServerError, core.NewInternalError("failed to record message"))
		return
	}
	mw.WriteJSON(w, http.StatusOK, addMessageResponse{
		Success:      true,
		MessageCount: sess.MessageCount,
		HistorySize:  len(sess.History),
	})
}

func (h *ContextHandler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		mw.WriteErrorMessage(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.Logger.Error("get session failed", "error", err)
		mw.WriteError(w, http.StatusInternalServerError, core.NewInternalError("failed to load session"))
		return
	}
	mw.WriteJSON(w, http.StatusOK, sess)
}

func (h *ContextHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := h.Store.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		mw.WriteErrorMessage(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.Logger.Error("delete session failed", "error", err)
		mw.WriteError(w, http.StatusInternalServerError, core.NewInternalError("failed to delete session"))
		return
	}
	mw.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ContextHandler) summary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		mw.WriteErrorMessage(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.Logger.Error("summary failed", "error", err)
		mw.WriteError(w, http.StatusInternalServerError, core.NewInternalError("failed to load session"))
		return
	}
	mw.WriteJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"summary":    sess.ConversationSummary(summaryTurns, summaryMaxChars),
	})
}

func (h *ContextHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.Stats(r.Context())
	if err != nil {
		h.Logger.Error("stats failed", "error", err)
		mw.WriteError(w, http.StatusInternalServerError, core.NewInternalError("failed to load stats"))
		return
	}
	mw.WriteJSON(w, http.StatusOK, st)
}

func (h *ContextHandler) cleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := h.SessionTTL
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	removed, err := h.Store.Cleanup(r.Context(), maxAge)
	if err != nil {
		h.Logger.Error("cleanup failed", "error", err)
		mw.WriteError(w, http.StatusInternalServerError, core.NewInternalError("failed to clean up sessions"))
		return
	}
	mw.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
